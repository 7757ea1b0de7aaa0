package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/signals"
)

// StatusParams is graph_status's input.
type StatusParams struct {
	Project string
	Agent   string
}

// StatusResult is graph_status's output: the rendered view plus the raw
// signals it was built from, for a caller that wants the numbers directly.
type StatusResult struct {
	Rendered string           `json:"rendered"`
	Bundle   signals.Bundle   `json:"signals"`
}

// Status implements graph_status: a read-only Markdown-like snapshot of a
// project, built from the same actionability/signals machinery onboard()
// uses, without mutating anything.
func (h *Handlers) Status(ctx context.Context, p StatusParams) (*StatusResult, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	root, all, err := findRootAndAll(ctx, h.store(), p.Project)
	if err != nil {
		return nil, err
	}
	knowledge, err := h.store().ListKnowledge(ctx, p.Project)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", p.Project, err)
	}

	now := timeNow()
	bundle, err := signals.Compute(ctx, all, knowledge, p.Agent, now)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", p.Project, err)
	}

	actionable, err := graph.ActionableNodes(ctx, h.store(), all)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", p.Project, err)
	}
	actionableIDs := make(map[string]bool, len(actionable))
	for _, n := range actionable {
		actionableIDs[n.ID] = true
	}

	keys := make([]string, 0, len(knowledge))
	for _, e := range knowledge {
		keys = append(keys, e.Key)
	}

	rendered := signals.RenderStatus(p.Project, root, all, actionableIDs, bundle.Confidence, bundle.Integrity, keys)
	return &StatusResult{Rendered: rendered, Bundle: bundle}, nil
}
