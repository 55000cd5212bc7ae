// Package unpi implements the UNPI link-layer framing used by Z-Stack
// network processors (the MT serial protocol).
//
// Every frame on the wire has the layout
//
//	[SOF 0xFE][LEN][CTRL][CMD][DATA ... LEN bytes][FCS]
//
// where CTRL packs the frame type in its three high bits and the MT
// subsystem in its five low bits, and FCS is the XOR of LEN, CTRL, CMD and
// every data byte.
//
// # Decoding
//
// Parser is stream oriented: bytes are fed with Write and complete frames
// are taken with Next. Bytes before a start marker are discarded. A frame
// whose checksum does not verify is reported as a *ProtocolError and the
// parser resynchronizes on the next start marker; nothing of the rejected
// frame is kept. Reader wraps an io.Reader around a Parser.
package unpi
