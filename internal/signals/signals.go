// Package signals computes the derived confidence/integrity/status views
// that onboard() and status() surface: continuity-confidence score,
// integrity audit, rehydrate checklist, and a Markdown-like render. All of
// it is read-only over an already-fetched node set.
package signals

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/andburman/graphkeep/internal/types"
)

// Bundle is the full set of derived signals for one project, computed
// concurrently since each computation only reads the already-fetched node
// and knowledge slices (no transaction held, no shared mutable state).
type Bundle struct {
	Confidence Confidence
	Integrity  Integrity
	Checklist  []ChecklistItem
}

// Compute fans out the three independent signal computations via
// errgroup.Group and assembles them once all three return.
func Compute(ctx context.Context, all []*types.Node, knowledge []*types.KnowledgeEntry, claimAgent string, now time.Time) (Bundle, error) {
	var b Bundle
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.Confidence = ComputeConfidence(all, knowledge, now)
		return nil
	})
	g.Go(func() error {
		b.Integrity = ComputeIntegrity(all, now)
		return nil
	})
	g.Go(func() error {
		b.Checklist = ComputeChecklist(all, knowledge, claimAgent, now)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Bundle{}, err
	}
	return b, nil
}
