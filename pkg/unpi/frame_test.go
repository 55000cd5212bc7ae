package unpi

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/claudegel/zigbee-herdsman/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SYS version request, as sent by every Z-Stack host on startup.
var versionReq = []byte{0xFE, 0x00, 0x21, 0x02, 0x23}

func TestFrameEncode(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  []byte
	}{
		{
			name:  "sys version",
			frame: NewFrame(SREQ, SYS, 0x02, nil),
			want:  versionReq,
		},
		{
			name:  "sys reset soft",
			frame: NewFrame(AREQ, SYS, 0x00, []byte{0x01}),
			want:  []byte{0xFE, 0x01, 0x41, 0x00, 0x01, 0x41},
		},
		{
			name:  "zdo permit join",
			frame: NewFrame(SREQ, ZDO, 0x36, []byte{0x0F, 0xFC, 0xFF, 0xFE, 0x00}),
			want:  []byte{0xFE, 0x05, 0x25, 0x36, 0x0F, 0xFC, 0xFF, 0xFE, 0x00, 0xE4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.frame.Encode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrameEncodeTooLarge(t *testing.T) {
	_, err := NewFrame(SREQ, AF, 0x01, make([]byte, MaxDataLength+1)).Encode()
	assert.ErrorIs(t, err, ErrDataTooLarge)
}

func TestControlByte(t *testing.T) {
	f := NewFrame(SRSP, APPConfig, 0x05, nil)
	assert.Equal(t, byte(0x6F), f.Control())

	raw, err := f.Encode()
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, SRSP, got.Type)
	assert.Equal(t, APPConfig, got.Subsystem)
}

func TestDecode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f, err := Decode([]byte{0xFE, 0x01, 0x61, 0x09, 0x00, 0x69})
		require.NoError(t, err)
		assert.Equal(t, SRSP, f.Type)
		assert.Equal(t, SYS, f.Subsystem)
		assert.Equal(t, uint8(0x09), f.CommandID)
		assert.Equal(t, []byte{0x00}, f.Data)
	})

	t.Run("bad checksum", func(t *testing.T) {
		_, err := Decode([]byte{0xFE, 0x00, 0x21, 0x02, 0x24})
		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Decode([]byte{0xFE, 0x03, 0x21, 0x02, 0x00})
		assert.ErrorIs(t, err, ErrFrameTruncated)
	})

	t.Run("no marker", func(t *testing.T) {
		_, err := Decode([]byte{0x00, 0x21})
		assert.ErrorIs(t, err, ErrNoStartMarker)
	})
}

func TestParserSplitInput(t *testing.T) {
	var p Parser
	raw := []byte{0xFE, 0x03, 0x45, 0xC0, 0x09, 0x00, 0x00}
	raw = append(raw, Checksum(raw[1:]))

	for i := 0; i < len(raw)-1; i++ {
		p.Write(raw[i : i+1])
		f, err := p.Next()
		require.NoError(t, err)
		require.Nil(t, f, "frame returned before byte %d", i)
	}
	p.Write(raw[len(raw)-1:])

	f, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, AREQ, f.Type)
	assert.Equal(t, ZDO, f.Subsystem)
	assert.Equal(t, uint8(0xC0), f.CommandID)
	assert.Zero(t, p.Buffered())
}

func TestParserDiscardsGarbageAndResyncs(t *testing.T) {
	var p Parser
	bad := []byte{0xFE, 0x00, 0x21, 0x02, 0x00}
	stream := append([]byte{0x11, 0x22}, bad...)
	stream = append(stream, versionReq...)
	p.Write(stream)

	_, err := p.Next()
	assert.ErrorIs(t, err, ErrChecksum)

	f, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, uint8(0x02), f.CommandID)

	f, err = p.Next()
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestParserMultipleFrames(t *testing.T) {
	var p Parser
	p.Write(append(append([]byte{}, versionReq...), versionReq...))

	for i := 0; i < 2; i++ {
		f, err := p.Next()
		require.NoError(t, err)
		require.NotNil(t, f)
	}
	f, err := p.Next()
	assert.NoError(t, err)
	assert.Nil(t, f)
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestReaderWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := &captureLogger{}

	w := NewWriter(&buf)
	w.SetLogger(logger, "conn-1")
	require.NoError(t, w.WriteFrame(NewFrame(SREQ, SYS, 0x08, []byte{0x84, 0x00, 0x00})))
	require.NoError(t, w.WriteFrame(NewFrame(AREQ, AF, 0x80, []byte{0x00, 0x01, 0x05})))

	r := NewReader(&buf)
	r.SetLogger(logger, "conn-1")

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, SYS, f.Subsystem)
	assert.Equal(t, []byte{0x84, 0x00, 0x00}, f.Data)

	f, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, AF, f.Subsystem)

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, logger.events, 4)
	assert.Equal(t, log.DirectionOut, logger.events[0].Direction)
	assert.Equal(t, log.DirectionIn, logger.events[2].Direction)
	assert.Equal(t, log.LayerTransport, logger.events[2].Layer)
	assert.Equal(t, 8, logger.events[0].Frame.Size)
}

func TestReaderTruncatedAtEOF(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFE, 0x05, 0x21}))

	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTruncated)

	_, err = r.ReadFrame()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReaderContinuesAfterProtocolError(t *testing.T) {
	stream := append([]byte{0xFE, 0x00, 0x21, 0x02, 0xFF}, versionReq...)
	r := NewReader(bytes.NewReader(stream))

	_, err := r.ReadFrame()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x02), f.CommandID)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "SREQ", SREQ.String())
	assert.Equal(t, "APP_CNF", APPConfig.String())
	assert.Equal(t, "SUBSYSTEM(30)", Subsystem(30).String())
	assert.Equal(t, "TYPE(7)", Type(7).String())
}
