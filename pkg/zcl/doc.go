// Package zcl encodes and decodes Zigbee Cluster Library frame headers.
//
// Command payloads are carried as opaque bytes. The command table knows,
// for global commands and a few cluster-specific ones, which command a
// peer answers with, so the data plane can correlate responses.
package zcl
