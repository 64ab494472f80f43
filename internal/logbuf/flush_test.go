package logbuf

import (
	"errors"
	"testing"
	"time"
)

type memSink struct {
	entries []Entry
	err     error
}

func (m *memSink) AppendLogEntries(entries []Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func TestFlushOnceDrainsOnlyNewEntries(t *testing.T) {
	buf := New(10)
	sink := &memSink{}
	f := &Flusher{Buf: buf, Sink: sink}

	base := time.Now()
	buf.Write(Entry{Time: base, Level: "INFO", Message: "one"})
	buf.Write(Entry{Time: base.Add(time.Second), Level: "INFO", Message: "two"})

	n, err := f.FlushOnce()
	if err != nil || n != 2 {
		t.Fatalf("first flush = %d, %v, want 2 entries", n, err)
	}

	// Nothing new: the second flush must not re-send.
	if n, _ := f.FlushOnce(); n != 0 {
		t.Fatalf("second flush re-sent %d entries", n)
	}

	buf.Write(Entry{Time: base.Add(2 * time.Second), Level: "WARN", Message: "three"})
	if n, _ := f.FlushOnce(); n != 1 {
		t.Fatalf("third flush = %d, want just the new entry", n)
	}
	if len(sink.entries) != 3 {
		t.Errorf("sink holds %d entries, want 3", len(sink.entries))
	}
}

func TestFlushOnceDeliversSameTimestampEntries(t *testing.T) {
	buf := New(10)
	sink := &memSink{}
	f := &Flusher{Buf: buf, Sink: sink}

	// All entries share one clock reading, as happens under a coarse clock.
	now := time.Now()
	buf.Write(Entry{Time: now, Level: "INFO", Message: "one"})
	if n, _ := f.FlushOnce(); n != 1 {
		t.Fatalf("first flush = %d", n)
	}

	buf.Write(Entry{Time: now, Level: "INFO", Message: "two"})
	buf.Write(Entry{Time: now, Level: "INFO", Message: "three"})
	if n, _ := f.FlushOnce(); n != 2 {
		t.Fatalf("second flush = %d, want both same-timestamp entries", n)
	}
	if len(sink.entries) != 3 {
		t.Errorf("sink holds %d entries, want 3", len(sink.entries))
	}
}

func TestFlushOnceKeepsCursorOnSinkError(t *testing.T) {
	buf := New(10)
	sink := &memSink{err: errors.New("disk full")}
	f := &Flusher{Buf: buf, Sink: sink}

	buf.Write(Entry{Time: time.Now(), Level: "INFO", Message: "one"})
	if _, err := f.FlushOnce(); err == nil {
		t.Fatal("expected sink error")
	}

	// The entry is retried once the sink recovers.
	sink.err = nil
	if n, err := f.FlushOnce(); err != nil || n != 1 {
		t.Fatalf("retry flush = %d, %v, want the held-back entry", n, err)
	}
}
