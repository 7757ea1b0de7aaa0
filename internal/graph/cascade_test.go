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

func TestAutoResolveCascadeResolvesParentWhenAllChildrenDone(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	root := createTestNode(t, store, "proj", "root", now)
	var c1, c2 *types.Node
	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		c1, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{Project: "proj", Parent: root.ID, Summary: "c1"}, now)
		if err != nil {
			return err
		}
		c2, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{Project: "proj", Parent: root.ID, Summary: "c2"}, now)
		return err
	})

	resolved := true
	withTx(t, store, func(tx storage.Transaction) error {
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID: c1.ID, Resolved: &resolved, AddEvidence: []types.Evidence{{Type: types.EvidenceNote, Ref: "done"}},
		}, now)
		return err
	})
	withTx(t, store, func(tx storage.Transaction) error {
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID: c2.ID, Resolved: &resolved, AddEvidence: []types.Evidence{{Type: types.EvidenceNote, Ref: "done"}},
		}, now)
		return err
	})

	var autoResolved []string
	withTx(t, store, func(tx storage.Transaction) error {
		all, err := tx.AllNodes(context.Background(), "proj")
		if err != nil {
			return err
		}
		autoResolved, err = graph.AutoResolveCascade(context.Background(), tx, all, []string{c1.ID, c2.ID}, "agent", now)
		return err
	})

	if len(autoResolved) != 1 || autoResolved[0] != root.ID {
		t.Fatalf("expected root to auto-resolve, got %+v", autoResolved)
	}
	got, err := store.GetNode(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if !got.Resolved {
		t.Fatal("root should be marked resolved after cascade")
	}
}

func TestAutoResolveCascadeSkipsWhenDisabled(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	var root, child *types.Node
	withTx(t, store, func(tx storage.Transaction) error {
		var err error
		root, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{
			Project: "proj", Summary: "root",
			Properties: map[string]types.Value{"auto_resolve": types.Bool(false)},
		}, now)
		if err != nil {
			return err
		}
		child, err = graph.CreateNode(context.Background(), tx, sqlite.NewNodeID, graph.CreateNodeParams{Project: "proj", Parent: root.ID, Summary: "child"}, now)
		return err
	})

	resolved := true
	withTx(t, store, func(tx storage.Transaction) error {
		_, err := graph.UpdateNode(context.Background(), tx, graph.UpdateParams{
			NodeID: child.ID, Resolved: &resolved, AddEvidence: []types.Evidence{{Type: types.EvidenceNote, Ref: "done"}},
		}, now)
		return err
	})

	var autoResolved []string
	withTx(t, store, func(tx storage.Transaction) error {
		all, err := tx.AllNodes(context.Background(), "proj")
		if err != nil {
			return err
		}
		autoResolved, err = graph.AutoResolveCascade(context.Background(), tx, all, []string{child.ID}, "agent", now)
		return err
	})
	if len(autoResolved) != 0 {
		t.Fatalf("expected no auto-resolve when auto_resolve=false, got %+v", autoResolved)
	}
}
