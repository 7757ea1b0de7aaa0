package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andburman/graphkeep/internal/handlers"
	"github.com/andburman/graphkeep/internal/types"
)

func TestContextReturnsAncestorsChildrenAndDependencies(t *testing.T) {
	h := newTestHandlers(t)
	root, leaf := seedLeaf(t, h, "demo", "leaf", "a task")
	other, err := h.Plan(context.Background(), handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{{Ref: "other", ParentRef: root.ID, Summary: "other task"}},
	})
	require.NoError(t, err)
	_, err = h.Connect(context.Background(), handlers.ConnectParams{
		Agent: "agent-a",
		Edges: []handlers.EdgeOp{{From: leaf, To: other.RefToID["other"], Type: types.EdgeDependsOn}},
	})
	require.NoError(t, err)

	res, err := h.Context(context.Background(), handlers.ContextParams{NodeID: leaf, Depth: 1})
	require.NoError(t, err)
	require.Equal(t, leaf, res.Node.ID)
	require.Len(t, res.Ancestors, 1)
	require.Equal(t, root.ID, res.Ancestors[0].ID)
	require.Len(t, res.Dependencies, 1)
	require.Equal(t, other.RefToID["other"], res.Dependencies[0].Node.ID)
}

func TestHistoryReturnsEventsNewestFirst(t *testing.T) {
	h := newTestHandlers(t)
	_, leaf := seedLeaf(t, h, "demo", "leaf", "a task")

	summary := "renamed once"
	_, err := h.Update(context.Background(), handlers.UpdateParams{
		Agent:   "agent-a",
		Updates: []handlers.UpdateEntry{{NodeID: leaf, Summary: &summary}},
	})
	require.NoError(t, err)

	page, err := h.History(context.Background(), handlers.HistoryParams{NodeID: leaf, Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, page.Events)
}

func TestKnowledgeReadSearchDeleteRoundTrip(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.Open(context.Background(), handlers.OpenParams{Project: "kb"})
	require.NoError(t, err)
	_, err = h.KnowledgeWrite(context.Background(), handlers.KnowledgeWriteParams{
		Project: "kb", Key: "schema", Content: "postgres tables", Category: types.CategoryArchitecture,
	})
	require.NoError(t, err)

	all, err := h.KnowledgeRead(context.Background(), handlers.KnowledgeReadParams{Project: "kb"})
	require.NoError(t, err)
	require.Len(t, all, 1)

	found, err := h.KnowledgeSearch(context.Background(), handlers.KnowledgeSearchParams{Project: "kb", Query: "postgres"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	deleted, err := h.KnowledgeDelete(context.Background(), handlers.KnowledgeDeleteParams{Project: "kb", Key: "schema", Agent: "agent-a"})
	require.NoError(t, err)
	require.Equal(t, "postgres tables", deleted.Content)

	afterDelete, err := h.KnowledgeRead(context.Background(), handlers.KnowledgeReadParams{Project: "kb"})
	require.NoError(t, err)
	require.Empty(t, afterDelete)
}
