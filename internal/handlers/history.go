package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/types"
)

// HistoryParams is graph_history's input.
type HistoryParams struct {
	NodeID string
	Limit  int
	Cursor string
}

// History implements graph_history: a newest-first paginated read of a
// node's append-only event log.
func (h *Handlers) History(ctx context.Context, p HistoryParams) (*types.EventPage, error) {
	if err := requireNonEmpty("node_id", p.NodeID); err != nil {
		return nil, err
	}
	if _, err := h.store().GetNode(ctx, p.NodeID); err != nil {
		return nil, engineerr.NodeNotFound(p.NodeID)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	page, err := h.store().GetEvents(ctx, p.NodeID, limit, p.Cursor)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", p.NodeID, err)
	}
	return &page, nil
}
