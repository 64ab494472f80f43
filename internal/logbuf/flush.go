package logbuf

import (
	"context"
	"log/slog"
	"time"
)

const defaultFlushInterval = 30 * time.Second

// Sink receives drained entries for durable storage.
type Sink interface {
	AppendLogEntries(entries []Entry) error
}

// Flusher periodically drains new buffer entries into a sink so another
// process can tail the daemon's log trail. The cursor is the sequence number
// of the last flushed entry, so entries sharing a clock timestamp are never
// skipped.
type Flusher struct {
	Buf      *Buffer
	Sink     Sink
	Interval time.Duration // 0 = 30s
	Logger   *slog.Logger

	lastSeq uint64
}

// FlushOnce drains entries newer than the previous flush and reports how
// many were written.
func (f *Flusher) FlushOnce() (int, error) {
	entries := f.Buf.Query(Filter{AfterSeq: f.lastSeq})
	if len(entries) == 0 {
		return 0, nil
	}
	if err := f.Sink.AppendLogEntries(entries); err != nil {
		return 0, err
	}
	f.lastSeq = entries[len(entries)-1].Seq
	return len(entries), nil
}

// Run flushes on the interval until ctx is cancelled, then flushes one last
// time so shutdown lines survive.
func (f *Flusher) Run(ctx context.Context) {
	interval := f.Interval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := f.FlushOnce(); err != nil {
				logger.Warn("log flush failed", "error", err)
			}
		case <-ctx.Done():
			f.FlushOnce()
			return
		}
	}
}
