package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andburman/graphkeep/internal/handlers"
	"github.com/andburman/graphkeep/internal/types"
)

func TestOpenCreatesRootOnFirstCall(t *testing.T) {
	h := newTestHandlers(t)
	res, err := h.Open(context.Background(), handlers.OpenParams{Project: "demo", Goal: "ship the thing", Agent: "agent-a"})
	require.NoError(t, err)
	require.NotNil(t, res.Root)
	require.Equal(t, types.DiscoveryPending, res.Root.Discovery)

	again, err := h.Open(context.Background(), handlers.OpenParams{Project: "demo"})
	require.NoError(t, err)
	require.Equal(t, res.Root.ID, again.Root.ID, "a second open must return the same root")
}

func TestOpenWithNoProjectListsAll(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.Open(context.Background(), handlers.OpenParams{Project: "demo"})
	require.NoError(t, err)

	res, err := h.Open(context.Background(), handlers.OpenParams{})
	require.NoError(t, err)
	require.Len(t, res.Projects, 1)
}

func TestPlanCreatesBatchAndWiresDependsOn(t *testing.T) {
	h := newTestHandlers(t)
	opened, err := h.Open(context.Background(), handlers.OpenParams{Project: "demo", Goal: "ship"})
	require.NoError(t, err)
	root := opened.Root
	markDiscoveryDone(t, h, root.ID)

	plan, err := h.Plan(context.Background(), handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{
			{Ref: "backend", ParentRef: root.ID, Summary: "build the backend"},
			{Ref: "frontend", ParentRef: root.ID, Summary: "build the frontend", DependsOn: []string{"backend"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Created, 2)
	require.Contains(t, plan.RefToID, "backend")
}

func TestNextRanksAndClaims(t *testing.T) {
	h := newTestHandlers(t)
	opened, err := h.Open(context.Background(), handlers.OpenParams{Project: "demo"})
	require.NoError(t, err)
	root := opened.Root
	markDiscoveryDone(t, h, root.ID)

	_, err = h.Plan(context.Background(), handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{
			{Ref: "leaf", ParentRef: root.ID, Summary: "do the work"},
		},
	})
	require.NoError(t, err)

	res, err := h.Next(context.Background(), handlers.NextParams{Project: "demo", Count: 1, Claim: true, Agent: "agent-a"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	require.Equal(t, "agent-a", res.Candidates[0].Node.ClaimedBy())
}
