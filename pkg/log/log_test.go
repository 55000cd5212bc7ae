package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func writeCapture(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture", "session.zlog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestEncodeDecodeMessageEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	ev := Event{
		Timestamp:    ts,
		ConnectionID: "conn-1",
		Direction:    DirectionOut,
		Layer:        LayerZNP,
		Category:     CategoryMessage,
		Port:         "/dev/ttyACM0",
		Message: &MessageEvent{
			Type:      "SREQ",
			Subsystem: "SYS",
			Command:   "osalNvRead",
			CommandID: 0x08,
			Payload:   map[string]any{"id": uint64(0x84), "offset": uint64(0)},
		},
	}

	data, err := EncodeEvent(ev)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(ts))
	assert.Equal(t, "conn-1", got.ConnectionID)
	assert.Equal(t, DirectionOut, got.Direction)
	assert.Equal(t, "/dev/ttyACM0", got.Port)
	require.NotNil(t, got.Message)
	assert.Equal(t, "osalNvRead", got.Message.Command)
	assert.Equal(t, uint8(0x08), got.Message.CommandID)
	assert.EqualValues(t, 0x84, got.Message.Payload["id"])
}

func TestDecodeNestedPayload(t *testing.T) {
	type route struct {
		DestinationAddr uint16
		NextHop         uint16
	}
	ev := Event{
		Timestamp: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		Layer:     LayerZNP,
		Category:  CategoryMessage,
		Message: &MessageEvent{
			Type:      "AREQ",
			Subsystem: "ZDO",
			Command:   "mgmtRtgRsp",
			Payload: map[string]any{
				"routingtablelist": []route{{DestinationAddr: 10001, NextHop: 5}},
				"value":            []byte{0x01, 0x02},
			},
		},
	}

	data, err := EncodeEvent(ev)
	require.NoError(t, err)
	got, err := DecodeEvent(data)
	require.NoError(t, err)

	list, ok := got.Message.Payload["routingtablelist"].([]any)
	require.True(t, ok, "list decoded as %T", got.Message.Payload["routingtablelist"])
	entry, ok := list[0].(map[string]any)
	require.True(t, ok, "entry decoded as %T", list[0])
	assert.EqualValues(t, 10001, entry["DestinationAddr"])
	assert.Equal(t, []byte{0x01, 0x02}, got.Message.Payload["value"])

	_, err = json.Marshal(got.Message.Payload)
	assert.NoError(t, err)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "IN", DirectionIn.String())
	assert.Equal(t, "OUT", DirectionOut.String())
	assert.Equal(t, "UNKNOWN", Direction(9).String())
	assert.Equal(t, "TRANSPORT", LayerTransport.String())
	assert.Equal(t, "ZNP", LayerZNP.String())
	assert.Equal(t, "ADAPTER", LayerAdapter.String())
	assert.Equal(t, "STATE", CategoryState.String())
	assert.Equal(t, "COMMISSIONING", StateEntityCommissioning.String())
}

func TestNewFrameEventTruncates(t *testing.T) {
	small := NewFrameEvent([]byte{0xFE, 0x00, 0x21, 0x01, 0x20})
	assert.Equal(t, 5, small.Size)
	assert.False(t, small.Truncated)
	assert.Len(t, small.Data, 5)

	big := NewFrameEvent(make([]byte, MaxFrameData+10))
	assert.Equal(t, MaxFrameData+10, big.Size)
	assert.True(t, big.Truncated)
	assert.Len(t, big.Data, MaxFrameData)
}

func TestFileLogger(t *testing.T) {
	t.Run("appends across sessions", func(t *testing.T) {
		path := writeCapture(t, []Event{{ConnectionID: "a"}})

		logger, err := NewFileLogger(path)
		require.NoError(t, err)
		logger.Log(Event{ConnectionID: "b"})
		require.NoError(t, logger.Close())

		r, err := NewReader(path)
		require.NoError(t, err)
		defer r.Close()
		events := readAll(t, r)
		require.Len(t, events, 2)
		assert.Equal(t, "a", events[0].ConnectionID)
		assert.Equal(t, "b", events[1].ConnectionID)
	})

	t.Run("log after close is dropped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.zlog")
		logger, err := NewFileLogger(path)
		require.NoError(t, err)
		require.NoError(t, logger.Close())
		require.NoError(t, logger.Close())
		logger.Log(Event{ConnectionID: "late"})

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Zero(t, info.Size())
	})

	t.Run("concurrent writers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.zlog")
		logger, err := NewFileLogger(path)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					logger.Log(Event{ConnectionID: "c", Frame: NewFrameEvent([]byte{1, 2, 3})})
				}
			}()
		}
		wg.Wait()
		require.NoError(t, logger.Close())

		r, err := NewReader(path)
		require.NoError(t, err)
		defer r.Close()
		assert.Len(t, readAll(t, r), 200)
	})
}

func TestReaderFilter(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := DirectionIn
	state := CategoryState
	events := []Event{
		{Timestamp: base, ConnectionID: "c1", Direction: DirectionOut, Layer: LayerZNP,
			Message: &MessageEvent{Type: "SREQ", Subsystem: "SYS", Command: "version"}},
		{Timestamp: base.Add(time.Second), ConnectionID: "c1", Direction: DirectionIn, Layer: LayerZNP,
			Message: &MessageEvent{Type: "AREQ", Subsystem: "ZDO", Command: "stateChangeInd"}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "c2", Direction: DirectionIn, Layer: LayerAdapter,
			Category: CategoryState, StateChange: &StateChangeEvent{Entity: StateEntityCommissioning, NewState: "READY"}},
	}
	path := writeCapture(t, events)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"connection", Filter{ConnectionID: "c1"}, 2},
		{"direction", Filter{Direction: &in}, 2},
		{"category", Filter{Category: &state}, 1},
		{"subsystem", Filter{Subsystem: "ZDO"}, 1},
		{"command", Filter{Command: "version"}, 1},
		{"time window", Filter{TimeStart: ptrTime(base.Add(time.Second)), TimeEnd: ptrTime(base.Add(2 * time.Second))}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			require.NoError(t, err)
			defer r.Close()
			assert.Len(t, readAll(t, r), tt.want)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewSlogAdapter(logger)

	adapter.Log(Event{
		ConnectionID: "conn-9",
		Direction:    DirectionIn,
		Layer:        LayerZNP,
		Message:      &MessageEvent{Type: "AREQ", Subsystem: "AF", Command: "dataConfirm", Payload: map[string]any{"status": 0}},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "protocol", entry["msg"])
	assert.Equal(t, "conn-9", entry["conn_id"])
	assert.Equal(t, "IN", entry["direction"])
	assert.Equal(t, "AF", entry["subsystem"])
	assert.Equal(t, "dataConfirm", entry["command"])
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	multi := NewMultiLogger(a, nil, b, NoopLogger{})
	multi.Log(Event{ConnectionID: "x"})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "x", b.events[0].ConnectionID)
}
