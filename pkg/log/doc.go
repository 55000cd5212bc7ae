// Package log provides structured protocol capture for the ZNP adapter.
//
// It is separate from operational logging (slog). A protocol Logger receives
// one Event per captured item: raw UNPI frames at the transport layer,
// decoded MT commands at the ZNP layer, and commissioning state changes and
// errors at the adapter layer.
//
// # Basic Usage
//
//	// Console output through slog
//	znpCfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture for later inspection with "znpctl log view"
//	fl, _ := log.NewFileLogger("/var/log/znp/session.zlog")
//	znpCfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded Event values using integer map
// keys. Reader iterates over a file with an optional Filter.
package log
