// Package pool bounds how many negotiation sessions a trip runs at once.
//
// Vendors are admitted in rank order as slots free up. The first session to
// report a win cancels every sibling still on the line; the caller collects
// per-slot results itself.
package pool

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultCap is the number of simultaneous calls when none is configured.
const DefaultCap = 3

// SessionFunc runs one session for the vendor at rank i. It must honor ctx
// cancellation and return true only when the session produced an accepted
// deal.
type SessionFunc func(ctx context.Context, i int) bool

// Controller admits sessions under a fixed concurrency cap.
type Controller struct {
	Cap    int // 0 = DefaultCap
	Logger *slog.Logger
}

func (c *Controller) cap() int {
	if c.Cap > 0 {
		return c.Cap
	}
	return DefaultCap
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Run invokes fn for ranks 0..n-1, at most Cap at a time, admitting strictly
// in rank order. It blocks until every admitted session returns and reports
// the winning rank, or -1 when nothing won. When several sessions win before
// the cancellation lands, the best rank takes it.
func (c *Controller) Run(ctx context.Context, n int, fn SessionFunc) int {
	if n <= 0 {
		return -1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, c.cap())
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner = -1
	)

	for i := 0; i < n; i++ {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			if !fn(runCtx, i) {
				return
			}
			mu.Lock()
			if winner == -1 || i < winner {
				winner = i
			}
			mu.Unlock()
			c.logger().Info("session won, cancelling siblings", "rank", i)
			cancel()
		}(i)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return winner
}
