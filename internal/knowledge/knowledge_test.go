package knowledge_test

import (
	"context"
	"testing"
	"time"

	"github.com/andburman/graphkeep/internal/knowledge"
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

func TestWriteCreateThenUpdateLogsOnce(t *testing.T) {
	store := newStore(t)
	now := time.Now()

	withTx(t, store, func(tx storage.Transaction) error {
		res, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{
			Project: "proj", Key: "auth-design", Content: "uses JWT",
		}, now)
		if err != nil {
			return err
		}
		if !res.LoggedMutation {
			t.Fatal("create should log a mutation")
		}
		return nil
	})

	// Identical content on update must not log a mutation.
	withTx(t, store, func(tx storage.Transaction) error {
		res, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{
			Project: "proj", Key: "auth-design", Content: "uses JWT",
		}, now)
		if err != nil {
			return err
		}
		if res.LoggedMutation {
			t.Fatal("identical-content update should not log a mutation")
		}
		return nil
	})

	withTx(t, store, func(tx storage.Transaction) error {
		res, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{
			Project: "proj", Key: "auth-design", Content: "uses OAuth2 now",
		}, now)
		if err != nil {
			return err
		}
		if !res.LoggedMutation {
			t.Fatal("changed-content update should log a mutation")
		}
		return nil
	})
}

func TestWriteRejectsInvalidCategory(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		_, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{
			Project: "proj", Key: "k", Content: "c", Category: types.KnowledgeCategory("bogus"),
		}, now)
		return err
	})
	if err == nil {
		t.Fatal("expected an invalid_category error")
	}
}

func TestWriteFlagsSimilarKeys(t *testing.T) {
	store := newStore(t)
	now := time.Now()

	withTx(t, store, func(tx storage.Transaction) error {
		_, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{
			Project: "proj", Key: "auth-design", Content: "uses JWT", Category: types.CategoryArchitecture,
		}, now)
		return err
	})

	withTx(t, store, func(tx storage.Transaction) error {
		res, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{
			Project: "proj", Key: "authdesign", Content: "duplicate-ish key", Category: types.CategoryArchitecture,
		}, now)
		if err != nil {
			return err
		}
		if len(res.SimilarKeys) != 1 || res.SimilarKeys[0] != "auth-design" {
			t.Fatalf("expected auth-design flagged similar, got %v", res.SimilarKeys)
		}
		if len(res.CategoryClash) != 1 {
			t.Fatalf("expected same-category clash flagged, got %v", res.CategoryClash)
		}
		return nil
	})
}

func TestDeleteLogsOldContent(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	withTx(t, store, func(tx storage.Transaction) error {
		_, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{Project: "proj", Key: "k", Content: "v"}, now)
		return err
	})

	withTx(t, store, func(tx storage.Transaction) error {
		deleted, err := knowledge.Delete(context.Background(), tx, "proj", "k", "agent", now)
		if err != nil {
			return err
		}
		if deleted.Content != "v" {
			t.Fatalf("expected deleted entry content preserved, got %q", deleted.Content)
		}
		return nil
	})

	withTx(t, store, func(tx storage.Transaction) error {
		_, err := knowledge.Delete(context.Background(), tx, "proj", "k", "agent", now)
		if err == nil {
			t.Fatal("expected an error deleting an already-deleted key")
		}
		return nil
	})
}

func TestSearchMatchesKeyOrContentCaseInsensitive(t *testing.T) {
	store := newStore(t)
	now := time.Now()
	withTx(t, store, func(tx storage.Transaction) error {
		_, err := knowledge.Write(context.Background(), tx, knowledge.WriteParams{Project: "proj", Key: "db-schema", Content: "Postgres tables"}, now)
		return err
	})

	withTx(t, store, func(tx storage.Transaction) error {
		results, err := knowledge.Search(context.Background(), tx, "proj", "POSTGRES")
		if err != nil {
			return err
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 match, got %d", len(results))
		}
		return nil
	})
}

func TestOverlapCandidatesFlagsSimilarPairs(t *testing.T) {
	entries := []*types.KnowledgeEntry{
		{Key: "auth-design", Category: types.CategoryArchitecture},
		{Key: "authdesign", Category: types.CategoryArchitecture},
		{Key: "unrelated-topic", Category: types.CategoryGeneral},
	}
	pairs := knowledge.OverlapCandidates(entries)
	if len(pairs) != 1 {
		t.Fatalf("expected exactly 1 overlapping pair, got %v", pairs)
	}
	if pairs[0][0] != "auth-design" || pairs[0][1] != "authdesign" {
		t.Fatalf("unexpected pair: %v", pairs[0])
	}
}
