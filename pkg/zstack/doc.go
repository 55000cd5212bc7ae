// Package zstack operates a Zigbee network through a Z-Stack coordinator.
//
// An Adapter drives a znp.Znp. Start brings the coordinator onto the
// configured network and reports how:
//
//   - resumed: the chip already holds the configured network
//   - resetted: the chip was wiped and the network formed again
//   - restored: a backup was written to an unconfigured chip
//
// Firmware differences between Z-Stack 1.2 and the Z-Stack 3 builds are
// kept in one table selected from the SYS version product code.
//
// Data plane sends and ZDO queries toward the same device are serialized
// through a queue.Executor. Inbound ZCL frames first resolve pending
// response waits; frames nobody waits for are published to observers as
// ZclData.
package zstack
