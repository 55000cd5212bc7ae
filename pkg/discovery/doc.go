// Package discovery finds network attached Z-Stack coordinators with
// mDNS/DNS-SD and advertises serial bridges.
//
// A service name such as "slzb-06" maps to the DNS-SD type "_slzb-06._tcp"
// in the "local" domain. TXT records follow the convention of Zigbee
// network coordinators:
//
//   - radio_type: "znp" for Z-Stack firmware
//   - baud_rate: UART speed between the bridge and the chip
//   - serial_number, fw: optional identification
//
// Transport paths of the form "mdns://<service>" are resolved with
// Browser.Resolve.
package discovery
