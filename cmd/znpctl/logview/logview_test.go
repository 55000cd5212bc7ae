package logview

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/claudegel/zigbee-herdsman/pkg/log"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

var baseTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp:    baseTime,
			ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			Port:         "/dev/ttyUSB0",
			Frame:        &log.FrameEvent{Size: 5, Data: []byte{0xfe, 0x00, 0x21, 0x01, 0x20}},
		},
		{
			Timestamp:    baseTime.Add(time.Millisecond),
			ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
			Direction:    log.DirectionIn,
			Layer:        log.LayerZNP,
			Category:     log.CategoryMessage,
			Message: &log.MessageEvent{
				Type:      "SRSP",
				Subsystem: "SYS",
				Command:   "ping",
				CommandID: 0x01,
				Payload:   map[string]any{"capabilities": uint64(0x0659)},
			},
		},
		{
			Timestamp:    baseTime.Add(2 * time.Second),
			ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
			Layer:        log.LayerAdapter,
			Category:     log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityCommissioning,
				OldState: "RESUME",
				NewState: "READY",
			},
		},
		{
			Timestamp:    baseTime.Add(3 * time.Second),
			ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
			Layer:        log.LayerZNP,
			Category:     log.CategoryError,
			Error:        &log.ErrorEventData{Layer: log.LayerZNP, Message: "SRSP timeout", Context: "SYS ping"},
		},
	}
}

func TestFormatFrameEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"OUT",
		"TRANSPORT Frame",
		"Size: 5 bytes",
		"Data: fe00210120",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatMessageEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[1])
	output := buf.String()

	for _, want := range []string{"IN ", "ZNP SRSP SYS ping", "CommandID: 0x01", "capabilities: 1625"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatStateAndError(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[2])
	formatEvent(&buf, sampleEvents()[3])
	output := buf.String()

	for _, want := range []string{"COMMISSIONING", "RESUME -> READY", "Message: SRSP timeout", "Context: SYS ping"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatValue(t *testing.T) {
	if got := formatValue([]byte{0x01, 0xab}); got != "01ab" {
		t.Errorf("bytes: got %q", got)
	}
	if got := formatValue("0x00124b0012345678"); got != "0x00124b0012345678" {
		t.Errorf("string: got %q", got)
	}
	if got := formatValue([]any{uint64(1), uint64(2)}); got != "[1,2]" {
		t.Errorf("list: got %q", got)
	}
}

func TestRunViewFiltersByLayer(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, Options{Layer: "znp"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()
	if strings.Contains(output, "TRANSPORT") {
		t.Errorf("transport event not filtered: %s", output)
	}
	if !strings.Contains(output, "SYS ping") || !strings.Contains(output, "SRSP timeout") {
		t.Errorf("expected znp events, got: %s", output)
	}
}

func TestRunViewFiltersByCommand(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, Options{Subsystem: "SYS", Command: "ping"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if n := strings.Count(buf.String(), "[conn:"); n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}
}

func TestRunViewInvalidFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	if err := RunView(path, Options{Layer: "wire"}, io.Discard); err == nil {
		t.Error("expected error for invalid layer")
	}
	if err := RunView(path, Options{Direction: "sideways"}, io.Discard); err == nil {
		t.Error("expected error for invalid direction")
	}
	if err := RunView(path, Options{TimeStart: "yesterday"}, io.Discard); err == nil {
		t.Error("expected error for invalid time")
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "errors.zlog")

	n, err := RunFilter(path, out, Options{Category: "error"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()
	event, err := reader.Next()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if event.Error == nil || event.Error.Message != "SRSP timeout" {
		t.Errorf("unexpected event: %+v", event)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestRunFilterTimeRange(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "late.zlog")

	n, err := RunFilter(path, out, Options{TimeStart: "2026-01-28T10:15:34Z"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := Collect(path)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 4 {
		t.Errorf("expected 4 events, got %d", stats.TotalEvents)
	}
	if stats.EventsByLayer[log.LayerZNP] != 2 {
		t.Errorf("expected 2 ZNP events, got %d", stats.EventsByLayer[log.LayerZNP])
	}
	if stats.Commands["SYS ping"] != 1 {
		t.Errorf("expected SYS ping counted, got %v", stats.Commands)
	}
	if stats.Errors != 1 {
		t.Errorf("expected 1 error, got %d", stats.Errors)
	}
	conn := stats.Connections["abc12345-6789-0123-4567-890abcdef012"]
	if conn == nil || conn.Port != "/dev/ttyUSB0" || conn.LastState != "READY" {
		t.Errorf("unexpected connection stats: %+v", conn)
	}

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Total Events: 4", "ZNP:", "SYS ping", "Sessions: 1", "Port: /dev/ttyUSB0", "Errors: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "jsonl", &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	var event log.Event
	if err := json.Unmarshal([]byte(lines[1]), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if event.Message == nil || event.Message.Command != "ping" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "csv", &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header and 4 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,connection_id") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], ",frame,,,5") {
		t.Errorf("unexpected frame row: %s", lines[1])
	}
	if !strings.Contains(lines[2], ",SRSP,SYS,ping,") {
		t.Errorf("unexpected message row: %s", lines[2])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	if err := RunExport(path, "xml", io.Discard); err == nil {
		t.Error("expected error for unknown format")
	}
}
