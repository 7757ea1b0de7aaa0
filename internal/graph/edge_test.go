package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
	"github.com/andburman/graphkeep/internal/types"
)

func createTestNode(t *testing.T, store *sqlite.SQLiteStorage, project, summary string, now time.Time) *types.Node {
	t.Helper()
	var n *types.Node
	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		n, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: project, Summary: summary,
		}, now)
		return err
	})
	return n
}

func TestAddEdgeRejectsDuplicate(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	a := createTestNode(t, store, "proj", "a", now)
	b := createTestNode(t, store, "proj", "b", now)

	withTx(t, store, func(tx storage.Transaction) error {
		_, err := graph.AddEdge(context.Background(), tx, a.ID, b.ID, types.EdgeDependsOn, "agent", now)
		return err
	})

	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := graph.AddEdge(context.Background(), tx, a.ID, b.ID, types.EdgeDependsOn, "agent", now)
		return err
	})
	if err == nil {
		t.Fatal("expected a duplicate_edge error")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok || ee.Code != engineerr.CodeDuplicateEdge {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	a := createTestNode(t, store, "proj", "a", now)
	b := createTestNode(t, store, "proj", "b", now)

	withTx(t, store, func(tx storage.Transaction) error {
		_, err := graph.AddEdge(context.Background(), tx, a.ID, b.ID, types.EdgeDependsOn, "agent", now)
		return err
	})

	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := graph.AddEdge(context.Background(), tx, b.ID, a.ID, types.EdgeDependsOn, "agent", now)
		return err
	})
	if err == nil {
		t.Fatal("expected a cycle_detected error")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok || ee.Code != engineerr.CodeCycleDetected {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveDependencyThenFindNewlyActionable(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	root := createTestNode(t, store, "proj", "root", now)
	var a, b *types.Node
	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		a, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{Project: "proj", Parent: root.ID, Summary: "a"}, now)
		if err != nil {
			return err
		}
		b, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{Project: "proj", Parent: root.ID, Summary: "b"}, now)
		return err
	})

	withTx(t, store, func(tx storage.Transaction) error {
		_, err := graph.AddEdge(context.Background(), tx, a.ID, b.ID, types.EdgeDependsOn, "agent", now)
		return err
	})

	// a depends on b, which is unresolved, so a is blocked.
	all, err := store.AllNodes(context.Background(), "proj")
	if err != nil {
		t.Fatalf("AllNodes: %v", err)
	}
	actionable, err := graph.IsActionable(context.Background(), store, a, all)
	if err != nil {
		t.Fatalf("IsActionable: %v", err)
	}
	if actionable {
		t.Fatal("expected a to be blocked by its depends_on target")
	}

	resolved := true
	withTx(t, store, func(tx storage.Transaction) error {
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID:      b.ID,
			Resolved:    &resolved,
			AddEvidence: []types.Evidence{{Type: types.EvidenceNote, Ref: "done"}},
		}, now)
		return err
	})

	var newlyActionable []types.NewlyActionable
	withTx(t, store, func(tx storage.Transaction) error {
		all, err := tx.AllNodes(context.Background(), "proj")
		if err != nil {
			return err
		}
		newlyActionable, err = graph.FindNewlyActionable(context.Background(), tx, "proj", all, []string{b.ID})
		return err
	})
	if len(newlyActionable) != 1 || newlyActionable[0].ID != a.ID {
		t.Fatalf("expected a to become newly actionable, got %+v", newlyActionable)
	}
}
