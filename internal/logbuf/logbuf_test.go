package logbuf

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestBufferWriteAndQuery(t *testing.T) {
	buf := New(5)
	now := time.Now()

	for i := 0; i < 3; i++ {
		buf.Write(Entry{
			Time:    now.Add(time.Duration(i) * time.Second),
			Level:   "INFO",
			Message: "msg",
		})
	}

	entries := buf.Query(Filter{MinLevel: slog.LevelDebug})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestBufferRingOverwrite(t *testing.T) {
	buf := New(3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		buf.Write(Entry{
			Time:    now.Add(time.Duration(i) * time.Second),
			Level:   "INFO",
			Message: "msg",
			Attrs:   map[string]any{"i": i},
		})
	}

	entries := buf.Query(Filter{})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (ring buffer size), got %d", len(entries))
	}
	// Oldest-first walk lands on entries 2, 3, 4.
	if entries[0].Attrs["i"] != 2 {
		t.Fatalf("expected first entry i=2, got %v", entries[0].Attrs["i"])
	}
	if entries[2].Attrs["i"] != 4 {
		t.Fatalf("expected last entry i=4, got %v", entries[2].Attrs["i"])
	}
}

func TestBufferQuerySince(t *testing.T) {
	buf := New(10)
	now := time.Now()

	for i := 0; i < 5; i++ {
		buf.Write(Entry{
			Time:    now.Add(time.Duration(i) * time.Second),
			Level:   "INFO",
			Message: "msg",
		})
	}

	entries := buf.Query(Filter{Since: now.Add(3 * time.Second)})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries since t+3s, got %d", len(entries))
	}
}

func TestBufferQueryLevel(t *testing.T) {
	buf := New(10)
	now := time.Now()

	buf.Write(Entry{Time: now, Level: "DEBUG", Message: "debug"})
	buf.Write(Entry{Time: now, Level: "INFO", Message: "info"})
	buf.Write(Entry{Time: now, Level: "WARN", Message: "warn"})
	buf.Write(Entry{Time: now, Level: "ERROR", Message: "error"})

	entries := buf.Query(Filter{MinLevel: slog.LevelWarn})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at WARN+, got %d", len(entries))
	}
	if entries[0].Message != "warn" || entries[1].Message != "error" {
		t.Fatalf("unexpected entries: %v", entries)
	}
}

func TestBufferQueryAttrs(t *testing.T) {
	buf := New(10)
	now := time.Now()

	buf.Write(Entry{Time: now, Level: "INFO", Message: "a", Attrs: map[string]any{"trip": "trip-1"}})
	buf.Write(Entry{Time: now, Level: "INFO", Message: "b", Attrs: map[string]any{"trip": "trip-2"}})
	buf.Write(Entry{Time: now, Level: "INFO", Message: "c", Attrs: map[string]any{"trip": "trip-1", "session": "s-9"}})

	entries := buf.Query(Filter{Attrs: map[string]string{"trip": "trip-1"}})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for trip-1, got %d", len(entries))
	}
	if entries[0].Message != "a" || entries[1].Message != "c" {
		t.Fatalf("unexpected entries: %v", entries)
	}

	entries = buf.Query(Filter{Attrs: map[string]string{"trip": "trip-1", "session": "s-9"}})
	if len(entries) != 1 || entries[0].Message != "c" {
		t.Fatalf("expected only the session-tagged entry, got %v", entries)
	}
}

func TestBufferQueryLimit(t *testing.T) {
	buf := New(10)
	now := time.Now()

	for i := 0; i < 8; i++ {
		buf.Write(Entry{Time: now.Add(time.Duration(i) * time.Second), Level: "INFO", Message: "msg"})
	}

	entries := buf.Query(Filter{Limit: 3})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries with limit, got %d", len(entries))
	}
}

func TestHandlerCaptures(t *testing.T) {
	buf := New(10)
	inner := slog.NewTextHandler(&discardWriter{}, nil)
	logger := slog.New(NewHandler(inner, buf))

	logger.Info("hello", "key", "value")
	logger.Warn("warning")

	entries := buf.Query(Filter{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "hello" {
		t.Fatalf("expected 'hello', got %q", entries[0].Message)
	}
	if entries[0].Attrs["key"] != "value" {
		t.Fatalf("expected attr key=value, got %v", entries[0].Attrs)
	}
	if entries[1].Level != "WARN" {
		t.Fatalf("expected WARN level, got %q", entries[1].Level)
	}
}

func TestHandlerWithAttrs(t *testing.T) {
	buf := New(10)
	inner := slog.NewTextHandler(&discardWriter{}, nil)
	logger := slog.New(NewHandler(inner, buf)).With("session", "s-1")

	logger.Info("msg")

	entries := buf.Query(Filter{Attrs: map[string]string{"session": "s-1"}})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestHandlerCapturesAllLevels(t *testing.T) {
	buf := New(10)
	// Inner handler only allows WARN+; the buffer still sees everything.
	inner := slog.NewTextHandler(&discardWriter{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	handler := NewHandler(inner, buf)
	logger := slog.New(handler)

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected DEBUG to be enabled (buffer captures all)")
	}

	logger.Debug("debug msg")
	logger.Info("info msg")
	logger.Warn("warn msg")

	entries := buf.Query(Filter{})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries in buffer, got %d", len(entries))
	}
}

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }
