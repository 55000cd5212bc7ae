package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// AdapterType is the adapter tag written by this package.
const AdapterType = "zStack"

// Backup is a snapshot of the coordinator's network NV items.
type Backup struct {
	// AdapterType names the adapter family the backup was taken from.
	AdapterType string `json:"adapterType"`

	// Time is when the backup was taken.
	Time Timestamp `json:"time"`

	Meta Meta `json:"meta"`

	// Data maps symbolic NV names (ZCD_NV_*) to their items.
	Data map[string]NVItem `json:"data"`
}

// Meta describes the firmware a backup was taken from.
type Meta struct {
	// Product is the firmware product code reported by SYS version.
	Product uint8 `json:"product"`
}

// NVItem is one slot of NV memory. Its identity is (ID, Offset).
type NVItem struct {
	ID     uint16 `json:"id"`
	Offset uint8  `json:"offset"`
	Value  Bytes  `json:"value"`
	Len    int    `json:"len"`
}

// Item returns the item stored under name.
func (b *Backup) Item(name string) (NVItem, error) {
	item, ok := b.Data[name]
	if !ok {
		return NVItem{}, fmt.Errorf("backup has no item %s", name)
	}
	return item, nil
}

// Names returns the item names in sorted order.
func (b *Backup) Names() []string {
	names := make([]string, 0, len(b.Data))
	for name := range b.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// timestampLayout is the HTTP date format backup files carry,
// e.g. "Mon, 19 Aug 2019 16:21:55 GMT".
const timestampLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// timestampLayouts are accepted when reading, in order.
var timestampLayouts = []string{timestampLayout, time.RFC1123, time.RFC1123Z, time.RFC3339Nano}

// Timestamp is a backup time. It is written as an HTTP date in UTC and read
// from an HTTP date or RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp returns t as a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON writes the HTTP date form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timestampLayout))
}

// UnmarshalJSON reads any of the accepted layouts. An empty string or null
// leaves the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("backup time: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("backup time %q: unknown format", s)
}

// Bytes is a byte string encoded in JSON as an array of numbers.
type Bytes []byte

// MarshalJSON writes b as [n, n, ...].
func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON reads an array of numbers in 0..255.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("byte value %d out of range at index %d", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// FileStore keeps a backup in a JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backup file path.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the backup, creating the parent directory if needed.
func (s *FileStore) Save(backup *Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	if backup.Time.IsZero() {
		backup.Time = NewTimestamp(time.Now())
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return err
	}

	// The previous backup stays intact until the new one is complete.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the backup. Returns nil, nil if the file doesn't exist.
func (s *FileStore) Load() (*Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	backup := &Backup{}
	if err := json.Unmarshal(data, backup); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", s.path, err)
	}
	return backup, nil
}

// Clear removes the backup file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
