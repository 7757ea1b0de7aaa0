package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
	"github.com/andburman/graphkeep/internal/types"
)

func TestIsActionableRootNeverActionable(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	root := createTestNode(t, store, "proj", "root", now)

	all, _ := store.AllNodes(context.Background(), "proj")
	actionable, err := graph.IsActionable(context.Background(), store, root, all)
	if err != nil {
		t.Fatalf("IsActionable: %v", err)
	}
	if actionable {
		t.Fatal("a root node should never be actionable")
	}
}

func TestIsActionableWaitsForChildren(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	root := createTestNode(t, store, "proj", "root", now)
	var child *types.Node
	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		child, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Parent: root.ID, Summary: "child",
		}, now)
		return err
	})

	all, _ := store.AllNodes(context.Background(), "proj")
	rootActionable, err := graph.IsActionable(context.Background(), store, root, all)
	if err != nil {
		t.Fatalf("IsActionable(root): %v", err)
	}
	if rootActionable {
		t.Fatal("root with an unresolved child should not be actionable")
	}

	childActionable, err := graph.IsActionable(context.Background(), store, child, all)
	if err != nil {
		t.Fatalf("IsActionable(child): %v", err)
	}
	if !childActionable {
		t.Fatal("leaf child with no blockers should be actionable")
	}
}

func TestRankActionablePriorityDepthThenAge(t *testing.T) {
	now := time.Now()
	low := &types.Node{ID: "low", Properties: types.PropertyBag{"priority": types.Int(1)}, Depth: 1, UpdatedAt: now}
	high := &types.Node{ID: "high", Properties: types.PropertyBag{"priority": types.Int(5)}, Depth: 1, UpdatedAt: now}
	deeper := &types.Node{ID: "deeper", Properties: types.PropertyBag{"priority": types.Int(5)}, Depth: 3, UpdatedAt: now}
	older := &types.Node{ID: "older", Properties: types.PropertyBag{"priority": types.Int(5)}, Depth: 3, UpdatedAt: now.Add(-time.Hour)}

	ranked := graph.RankActionable([]*types.Node{low, high, deeper, older})
	if ranked[0].ID != "older" {
		t.Fatalf("expected older (same priority+depth, earlier updated_at) first, got %s", ranked[0].ID)
	}
	if ranked[len(ranked)-1].ID != "low" {
		t.Fatalf("expected low-priority node last, got %s", ranked[len(ranked)-1].ID)
	}
}
