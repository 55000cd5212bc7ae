// Package persistence stores coordinator backups.
//
// A Backup captures the NV items that define a Z-Stack 3 network so a
// replacement chip can take over the same network. Backups are stored as
// JSON with byte values written as arrays of numbers.
package persistence
