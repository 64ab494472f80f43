package logbuf

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is a single log entry captured from slog. Seq is assigned by the
// buffer on write and increases strictly, independent of clock resolution.
type Entry struct {
	Seq     uint64         `json:"seq,omitempty"`
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Filter constrains buffer queries. The zero value matches everything.
type Filter struct {
	Since    time.Time
	AfterSeq uint64 // only entries with Seq > AfterSeq
	MinLevel slog.Level
	// Attrs must all be present on the entry with matching string form.
	// Lets the CLI pull the log trail of one trip or session.
	Attrs map[string]string
	Limit int // newest N after filtering; 0 = all
}

func (f Filter) matches(e Entry) bool {
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if f.AfterSeq > 0 && e.Seq <= f.AfterSeq {
		return false
	}
	if ParseLevel(e.Level) < f.MinLevel {
		return false
	}
	for k, want := range f.Attrs {
		got, ok := e.Attrs[k]
		if !ok || !attrEqual(got, want) {
			return false
		}
	}
	return true
}

// Buffer is a thread-safe ring buffer for log entries.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int
	seq     uint64
}

// New creates a new ring buffer that holds up to size entries.
func New(size int) *Buffer {
	return &Buffer{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Write appends an entry to the ring buffer, stamping its sequence number.
func (b *Buffer) Write(e Entry) {
	b.mu.Lock()
	b.seq++
	e.Seq = b.seq
	b.entries[b.pos] = e
	b.pos = (b.pos + 1) % b.size
	if b.count < b.size {
		b.count++
	}
	b.mu.Unlock()
}

// Query returns entries matching the filter, oldest first.
func (b *Buffer) Query(f Filter) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Walk the ring oldest-first.
	start := 0
	if b.count == b.size {
		start = b.pos
	}

	var result []Entry
	for i := 0; i < b.count; i++ {
		e := b.entries[(start+i)%b.size]
		if f.matches(e) {
			result = append(result, e)
		}
	}

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result
}

func attrEqual(got any, want string) bool {
	if s, ok := got.(string); ok {
		return s == want
	}
	return strings.EqualFold(slog.AnyValue(got).String(), want)
}

// ParseLevel converts a level string back to slog.Level.
func ParseLevel(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
