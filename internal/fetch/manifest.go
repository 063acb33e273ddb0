package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Entry records one fetched date in the manifest.
type Entry struct {
	File      string    `json:"file"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256"`
	RunID     string    `json:"run_id"`
	FetchedAt time.Time `json:"fetched_at"`
}

type manifestData struct {
	UpdatedAt time.Time        `json:"updated_at"`
	Entries   map[string]Entry `json:"entries"` // keyed by YYYY-MM-DD
}

// Manifest tracks which dates the archive already holds. All methods are
// goroutine-safe; FetchRange records from concurrent workers.
type Manifest struct {
	mu   sync.RWMutex
	path string
	data manifestData
}

// OpenManifest loads the manifest at path, or starts an empty one when the
// file does not exist yet.
func OpenManifest(path string) (*Manifest, error) {
	m := &Manifest{
		path: path,
		data: manifestData{Entries: make(map[string]Entry)},
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(raw, &m.data); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.data.Entries == nil {
		m.data.Entries = make(map[string]Entry)
	}
	return m, nil
}

// Has reports whether a date (YYYY-MM-DD) is already recorded.
func (m *Manifest) Has(date string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data.Entries[date]
	return ok
}

// Get returns the entry for a date.
func (m *Manifest) Get(date string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data.Entries[date]
	return e, ok
}

// Len returns the number of recorded dates.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data.Entries)
}

// Record stores an entry and persists the manifest.
func (m *Manifest) Record(date string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Entries[date] = e
	return m.save()
}

// save writes via a temp file then renames, so a crash mid-write never
// leaves a truncated manifest. Caller holds the lock.
func (m *Manifest) save() error {
	m.data.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing manifest temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}
