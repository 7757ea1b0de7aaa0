package handlers_test

import (
	"context"
	"testing"

	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/handlers"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
	"github.com/andburman/graphkeep/internal/types"
)

func newTestHandlers(t *testing.T) *handlers.Handlers {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return handlers.New(graph.New(store, 0))
}

// markDiscoveryDone flips a node's discovery to done so plan may add
// children under it; open() creates roots with discovery=pending.
func markDiscoveryDone(t *testing.T, h *handlers.Handlers, nodeID string) {
	t.Helper()
	done := types.DiscoveryDone
	if _, err := h.Update(context.Background(), handlers.UpdateParams{
		Agent:   "agent-a",
		Updates: []handlers.UpdateEntry{{NodeID: nodeID, Discovery: &done}},
	}); err != nil {
		t.Fatalf("flip discovery on %s: %v", nodeID, err)
	}
}
