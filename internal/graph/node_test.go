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

func newStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func withTx(t *testing.T, store *sqlite.SQLiteStorage, fn func(tx storage.Transaction) error) {
	t.Helper()
	if err := store.RunInTransaction(context.Background(), fn); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestCreateNodeRootAndChild(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	var root, child *types.Node

	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		root, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Summary: "root task", Agent: "agent-1",
		}, now)
		return err
	})
	if root.Depth != 0 || !root.IsRoot() {
		t.Fatalf("expected a depth-0 root, got %+v", root)
	}
	if root.Rev != 1 {
		t.Fatalf("rev = %d, want 1", root.Rev)
	}

	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		child, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Parent: root.ID, Summary: "child task", Agent: "agent-1",
		}, now)
		return err
	})
	if child.Depth != 1 {
		t.Fatalf("child depth = %d, want 1", child.Depth)
	}
}

func TestCreateNodeRejectsPendingParent(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	var root *types.Node

	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		root, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Summary: "root", Discovery: types.DiscoveryPending,
		}, now)
		return err
	})

	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Parent: root.ID, Summary: "child",
		}, now)
		return err
	})
	if err == nil {
		t.Fatal("expected an error creating a child under a discovery=pending parent")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok || ee.Code != engineerr.CodeDiscoveryPending {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateNodeResolveRequiresEvidence(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	var n *types.Node

	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		n, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Summary: "leaf",
		}, now)
		return err
	})

	resolved := true
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID: n.ID, Resolved: &resolved,
		}, now)
		return err
	})
	if err == nil {
		t.Fatal("expected evidence_required error")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok || ee.Code != engineerr.CodeEvidenceRequired {
		t.Fatalf("unexpected error: %v", err)
	}

	err = store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID:      n.ID,
			Resolved:    &resolved,
			AddEvidence: []types.Evidence{{Type: types.EvidenceNote, Ref: "done"}},
		}, now)
		return err
	})
	if err != nil {
		t.Fatalf("expected resolve to succeed with evidence: %v", err)
	}
}

func TestUpdateNodeRevMismatch(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	var n *types.Node

	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		n, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Summary: "leaf",
		}, now)
		return err
	})

	stale := int64(99)
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		summary := "renamed"
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID: n.ID, ExpectedRev: &stale, Summary: &summary,
		}, now)
		return err
	})
	if err == nil {
		t.Fatal("expected a rev mismatch error")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok || ee.Code != engineerr.CodeRevMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateNodeUnresolvedChildrenBlocksResolve(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	var root, child *types.Node

	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		root, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Summary: "root",
		}, now)
		return err
	})
	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		child, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Parent: root.ID, Summary: "child",
		}, now)
		return err
	})
	_ = child

	resolved := true
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID:      root.ID,
			Resolved:    &resolved,
			AddEvidence: []types.Evidence{{Type: types.EvidenceNote, Ref: "done"}},
		}, now)
		return err
	})
	if err == nil {
		t.Fatal("expected unresolved_children error")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok || ee.Code != engineerr.CodeUnresolvedChildren {
		t.Fatalf("unexpected error: %v", err)
	}
}
