package metrics

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/straja-ai/mailsieve/internal/store"
)

// Entry is one evaluation run in the history file.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Metrics   Metrics   `json:"metrics"`
	Skipped   int       `json:"skipped,omitempty"`
}

// History is a JSON array file that only grows. One History value
// serializes its own appends.
type History struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewHistory(path string) *History {
	return &History{path: path, now: time.Now}
}

// WithClock replaces the timestamp source.
func (h *History) WithClock(now func() time.Time) *History {
	h.now = now
	return h
}

// Append stamps the entry with an ID and time, then rewrites the file with
// the entry at the end. A missing or unreadable file starts a new history.
func (h *History) Append(source string, m Metrics, skipped int) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.read()
	if err != nil {
		log.Printf("metrics: history %s unreadable, starting fresh: %v", h.path, err)
		entries = nil
	}

	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: h.now().UTC(),
		Source:    source,
		Metrics:   m,
		Skipped:   skipped,
	}
	entries = append(entries, e)
	if err := store.WriteJSON(h.path, entries); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Entries returns the stored history, oldest first.
func (h *History) Entries() ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read()
}

func (h *History) read() ([]Entry, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
