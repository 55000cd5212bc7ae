package unpi

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/claudegel/zigbee-herdsman/pkg/log"
)

// Parser extracts frames from a byte stream.
type Parser struct {
	buf []byte
}

// Write appends stream bytes. It never fails.
func (p *Parser) Write(b []byte) (int, error) {
	p.buf = append(p.buf, b...)
	return len(b), nil
}

// Buffered returns the number of bytes waiting for a complete frame.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset drops all buffered bytes.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// Next returns the next complete frame, or nil when more bytes are needed.
// A *ProtocolError is returned for a frame that fails validation; the
// offending start marker is skipped so the following call resumes scanning.
func (p *Parser) Next() (*Frame, error) {
	i := bytes.IndexByte(p.buf, SOF)
	if i < 0 {
		p.buf = p.buf[:0]
		return nil, nil
	}
	p.consume(i)

	if len(p.buf) < 2 {
		return nil, nil
	}
	length := int(p.buf[1])
	if length > MaxDataLength {
		raw := append([]byte(nil), p.buf[:2]...)
		p.consume(1)
		return nil, &ProtocolError{Err: ErrDataTooLarge, Raw: raw}
	}
	total := MinFrameSize + length
	if len(p.buf) < total {
		return nil, nil
	}

	f, err := frameFromRaw(p.buf[:total])
	if err != nil {
		p.consume(1)
		return nil, err
	}
	p.consume(total)
	return f, nil
}

func (p *Parser) consume(n int) {
	if n == 0 {
		return
	}
	rest := copy(p.buf, p.buf[n:])
	p.buf = p.buf[:rest]
}

// Reader reads frames from an underlying byte stream.
type Reader struct {
	r       io.Reader
	parser  Parser
	chunk   []byte
	readErr error

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewReader creates a frame reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, chunk: make([]byte, 256)}
}

// SetLogger configures frame capture. Pass nil to disable.
func (fr *Reader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// ReadFrame blocks until a complete frame is available. Validation failures
// are returned as *ProtocolError and reading may continue afterwards. When
// the stream ends mid-frame ErrFrameTruncated is returned before io.EOF.
func (fr *Reader) ReadFrame() (*Frame, error) {
	for {
		f, err := fr.parser.Next()
		if err != nil {
			return nil, err
		}
		if f != nil {
			if fr.logger != nil {
				raw, _ := f.Encode()
				fr.logger.Log(frameEvent(fr.connID, log.DirectionIn, raw))
			}
			return f, nil
		}

		if fr.readErr != nil {
			if errors.Is(fr.readErr, io.EOF) && fr.parser.Buffered() > 0 {
				raw := append([]byte(nil), fr.parser.buf...)
				fr.parser.Reset()
				return nil, &ProtocolError{Err: ErrFrameTruncated, Raw: raw}
			}
			return nil, fr.readErr
		}

		n, err := fr.r.Read(fr.chunk)
		if n > 0 {
			fr.parser.Write(fr.chunk[:n])
		}
		if err != nil {
			fr.readErr = err
		}
	}
}

// Writer writes frames to an underlying byte stream.
type Writer struct {
	w  io.Writer
	mu sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewWriter creates a frame writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetLogger configures frame capture. Pass nil to disable.
func (fw *Writer) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame encodes and writes f in a single Write call.
// Safe for concurrent use.
func (fw *Writer) WriteFrame(f *Frame) error {
	raw, err := f.Encode()
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(raw); err != nil {
		return err
	}
	if fw.logger != nil {
		fw.logger.Log(frameEvent(fw.connID, log.DirectionOut, raw))
	}
	return nil
}

func frameEvent(connID string, dir log.Direction, raw []byte) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        log.NewFrameEvent(raw),
	}
}
