// Package discovery finds candidate vendors for a trip and merges the raw
// listings from all sources into one deduplicated, ranked vendor list with
// a market-rate estimate.
package discovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// Source is one vendor listing provider. Sources are queried independently;
// a failing source contributes nothing and must not abort the others.
type Source interface {
	Name() string
	Search(ctx context.Context, category protocol.VendorCategory, location string) ([]protocol.Candidate, error)
}

// Fetch queries every source concurrently and returns the union of their
// candidates. Per-source failures are logged and swallowed; the candidate
// order is the source registration order, so downstream tie-breaking stays
// deterministic.
func Fetch(ctx context.Context, sources []Source, category protocol.VendorCategory, location string, logger *slog.Logger) []protocol.Candidate {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([][]protocol.Candidate, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			cands, err := src.Search(ctx, category, location)
			if err != nil {
				logger.Warn("discovery source failed",
					"source", src.Name(),
					"category", category,
					"location", location,
					"error", err,
				)
				return
			}
			results[i] = cands
			logger.Debug("discovery source done", "source", src.Name(), "candidates", len(cands))
		}(i, src)
	}
	wg.Wait()

	var union []protocol.Candidate
	for _, r := range results {
		union = append(union, r...)
	}
	return union
}
