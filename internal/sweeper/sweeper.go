// Package sweeper periodically picks up active trips and drives them to a
// terminal phase. It is the daemon's work intake: freshly created trips and
// trips interrupted by a restart both resume through the same sweep.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/tolmol-io/tolmol/internal/store"
	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "@every 1m"

// RunFunc drives one trip to completion.
type RunFunc func(ctx context.Context, t *protocol.TripState) error

// Sweeper schedules the resume sweep.
type Sweeper struct {
	store  store.Store
	run    RunFunc
	cron   *cron.Cron
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a sweeper over the given store and trip runner.
func New(st store.Store, run RunFunc, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    st,
		run:      run,
		cron:     cron.New(),
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// Start registers the sweep on the schedule, runs one sweep immediately, and
// blocks until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	_, err := s.cron.AddFunc(schedule, func() { s.Sweep(ctx) })
	if err != nil {
		return fmt.Errorf("sweeper: invalid schedule %q: %w", schedule, err)
	}

	s.logger.Info("sweeper started", "schedule", schedule)
	s.Sweep(ctx)

	s.cron.Start()
	<-ctx.Done()
	s.cron.Stop()
	s.logger.Info("sweeper stopped")
	return ctx.Err()
}

// Sweep runs every active trip that is not already being worked on, in
// parallel, and returns when they are done. A trip still in flight from a
// previous sweep is skipped.
func (s *Sweeper) Sweep(ctx context.Context) {
	trips, err := s.store.ListTrips(store.TripFilter{Active: true})
	if err != nil {
		s.logger.Error("sweep: list trips", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, t := range trips {
		if !s.claim(t.ID) {
			continue
		}
		wg.Add(1)
		go func(t *protocol.TripState) {
			defer wg.Done()
			defer s.release(t.ID)

			s.logger.Info("sweeping trip", "trip", t.ID, "phase", t.Phase)
			if err := s.run(ctx, t); err != nil {
				s.logger.Warn("trip run interrupted", "trip", t.ID, "error", err)
			}
		}(t)
	}
	wg.Wait()
}

func (s *Sweeper) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] {
		return false
	}
	s.inflight[id] = true
	return true
}

func (s *Sweeper) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
