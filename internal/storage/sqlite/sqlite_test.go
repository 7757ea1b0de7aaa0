package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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

func TestNewIsIdempotentAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.db")

	first, err := sqlite.New(context.Background(), path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	now := time.Now()
	n := &types.Node{ID: "n1", Rev: 1, Project: "proj", Summary: "persisted", CreatedAt: now, UpdatedAt: now}
	if err := first.CreateNode(context.Background(), n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first: %v", err)
	}

	second, err := sqlite.New(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen (re-running migrations): %v", err)
	}
	defer func() { _ = second.Close() }()

	got, err := second.GetNode(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetNode after reopen: %v", err)
	}
	if got.Summary != "persisted" {
		t.Fatalf("expected persisted data to survive reopen, got %+v", got)
	}
}

func TestCreateGetUpdateDeleteNode(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	n := &types.Node{ID: "n1", Rev: 1, Project: "proj", Summary: "first", CreatedAt: now, UpdatedAt: now}
	if err := store.CreateNode(context.Background(), n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	got, err := store.GetNode(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Summary != "first" {
		t.Fatalf("summary = %q, want %q", got.Summary, "first")
	}

	got.Summary = "renamed"
	got.Rev = 2
	if err := store.UpdateNode(context.Background(), got); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	reGot, err := store.GetNode(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetNode after update: %v", err)
	}
	if reGot.Summary != "renamed" || reGot.Rev != 2 {
		t.Fatalf("unexpected node after update: %+v", reGot)
	}

	if err := store.DeleteNode(context.Background(), "n1"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, err := store.GetNode(context.Background(), "n1"); err == nil {
		t.Fatal("expected GetNode to fail after delete")
	}
}

func TestEdgeLifecycle(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	a := &types.Node{ID: "a", Rev: 1, Project: "proj", Summary: "a", CreatedAt: now, UpdatedAt: now}
	b := &types.Node{ID: "b", Rev: 1, Project: "proj", Summary: "b", CreatedAt: now, UpdatedAt: now}
	if err := store.CreateNode(context.Background(), a); err != nil {
		t.Fatalf("CreateNode a: %v", err)
	}
	if err := store.CreateNode(context.Background(), b); err != nil {
		t.Fatalf("CreateNode b: %v", err)
	}

	e := &types.Edge{FromNode: "a", ToNode: "b", Type: types.EdgeDependsOn, CreatedAt: now}
	if err := store.AddEdge(context.Background(), e); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	exists, err := store.EdgeExists(context.Background(), "a", "b", types.EdgeDependsOn)
	if err != nil {
		t.Fatalf("EdgeExists: %v", err)
	}
	if !exists {
		t.Fatal("expected edge to exist")
	}

	reachable, err := store.ReachableFrom(context.Background(), "a", types.EdgeDependsOn)
	if err != nil {
		t.Fatalf("ReachableFrom: %v", err)
	}
	if !reachable["b"] {
		t.Fatalf("expected b reachable from a, got %v", reachable)
	}

	if err := store.RemoveEdge(context.Background(), "a", "b", types.EdgeDependsOn); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	exists, err = store.EdgeExists(context.Background(), "a", "b", types.EdgeDependsOn)
	if err != nil {
		t.Fatalf("EdgeExists after remove: %v", err)
	}
	if exists {
		t.Fatal("expected edge removed")
	}
}

func TestEventLogAndCursor(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	n := &types.Node{ID: "n1", Rev: 1, Project: "proj", Summary: "n", CreatedAt: now, UpdatedAt: now}
	if err := store.CreateNode(context.Background(), n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.LogEvent(context.Background(), &types.Event{NodeID: "n1", Action: types.ActionUpdated, Timestamp: now.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
	}
	page, err := store.GetEvents(context.Background(), "n1", 2, "")
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(page.Events) != 2 {
		t.Fatalf("expected 2 events in first page, got %d", len(page.Events))
	}

	if err := store.DeleteEventsForNode(context.Background(), "n1"); err != nil {
		t.Fatalf("DeleteEventsForNode: %v", err)
	}
	afterDelete, err := store.GetEvents(context.Background(), "n1", 10, "")
	if err != nil {
		t.Fatalf("GetEvents after delete: %v", err)
	}
	if len(afterDelete.Events) != 0 {
		t.Fatalf("expected no events after DeleteEventsForNode, got %d", len(afterDelete.Events))
	}
}

func TestKnowledgeCRUD(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	e := &types.KnowledgeEntry{Project: "proj", Key: "k", Content: "v", Category: types.CategoryGeneral, CreatedAt: now, UpdatedAt: now}
	if err := store.WriteKnowledge(context.Background(), e); err != nil {
		t.Fatalf("WriteKnowledge: %v", err)
	}

	got, err := store.GetKnowledge(context.Background(), "proj", "k")
	if err != nil {
		t.Fatalf("GetKnowledge: %v", err)
	}
	if got.Content != "v" {
		t.Fatalf("content = %q, want %q", got.Content, "v")
	}

	all, err := store.ListKnowledge(context.Background(), "proj")
	if err != nil {
		t.Fatalf("ListKnowledge: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}

	deleted, err := store.DeleteKnowledge(context.Background(), "proj", "k")
	if err != nil {
		t.Fatalf("DeleteKnowledge: %v", err)
	}
	if deleted.Key != "k" {
		t.Fatalf("unexpected deleted entry: %+v", deleted)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := newStore(t)
	now := time.Now()

	wantErr := context.Canceled
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		n := &types.Node{ID: "rollback-me", Rev: 1, Project: "proj", Summary: "n", CreatedAt: now, UpdatedAt: now}
		if err := tx.CreateNode(context.Background(), n); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("RunInTransaction error = %v, want %v", err, wantErr)
	}

	if _, err := store.GetNode(context.Background(), "rollback-me"); err == nil {
		t.Fatal("expected the create inside the rolled-back transaction to not persist")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	store := newStore(t)
	if err := store.SetConfig(context.Background(), "claim_ttl_minutes", "90"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	got, err := store.GetConfig(context.Background(), "claim_ttl_minutes")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got != "90" {
		t.Fatalf("GetConfig = %q, want %q", got, "90")
	}
}
