// Package transport opens the byte stream to a Z-Stack coordinator.
//
// A link path selects the medium:
//
//	/dev/ttyACM0            serial port, 8N1 at the configured baud rate
//	auto                    first serial port with a known Z-Stack USB bridge
//	tcp://host:port         serial-over-TCP bridge
//	mdns://<service>        bridge resolved with mDNS, then dialed over TCP
//
// KeepAlive pings the chip on an open link and reports a dead link after a
// number of consecutive failures.
package transport
