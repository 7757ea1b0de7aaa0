package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/handlers"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
	"github.com/andburman/graphkeep/internal/types"
)

// TestScenarioDeepLinearChain walks a five-level dependency chain
// (L1 depends on nothing, L2 depends on L1, ... L5 depends on L4) and
// asserts only the head of the chain starts actionable, with resolving
// each link unblocking exactly the next one.
func TestScenarioDeepLinearChain(t *testing.T) {
	h := newTestHandlers(t)
	opened, err := h.Open(context.Background(), handlers.OpenParams{Project: "chain"})
	require.NoError(t, err)
	markDiscoveryDone(t, h, opened.Root.ID)

	nodes := []handlers.PlanNodeInput{
		{Ref: "L1", ParentRef: opened.Root.ID, Summary: "level 1"},
		{Ref: "L2", ParentRef: opened.Root.ID, Summary: "level 2", DependsOn: []string{"L1"}},
		{Ref: "L3", ParentRef: opened.Root.ID, Summary: "level 3", DependsOn: []string{"L2"}},
		{Ref: "L4", ParentRef: opened.Root.ID, Summary: "level 4", DependsOn: []string{"L3"}},
		{Ref: "L5", ParentRef: opened.Root.ID, Summary: "level 5", DependsOn: []string{"L4"}},
	}
	plan, err := h.Plan(context.Background(), handlers.PlanParams{Agent: "agent-a", Nodes: nodes})
	require.NoError(t, err)

	next, err := h.Next(context.Background(), handlers.NextParams{Project: "chain", Count: 10})
	require.NoError(t, err)
	require.Len(t, next.Candidates, 1)
	require.Equal(t, plan.RefToID["L1"], next.Candidates[0].Node.ID)

	wantNext := map[string]string{"L1": "L2", "L2": "L3", "L3": "L4", "L4": "L5"}
	for _, ref := range []string{"L1", "L2", "L3", "L4"} {
		resolved := true
		_, err := h.Update(context.Background(), handlers.UpdateParams{
			Agent: "agent-a",
			Updates: []handlers.UpdateEntry{{
				NodeID:      plan.RefToID[ref],
				Resolved:    &resolved,
				AddEvidence: []types.Evidence{{Type: types.EvidenceGit, Ref: "commit-for-" + ref}},
			}},
		})
		require.NoErrorf(t, err, "resolve %s", ref)

		next, err := h.Next(context.Background(), handlers.NextParams{Project: "chain", Count: 10})
		require.NoErrorf(t, err, "Next after resolving %s", ref)
		require.Lenf(t, next.Candidates, 1, "after resolving %s", ref)
		require.Equal(t, plan.RefToID[wantNext[ref]], next.Candidates[0].Node.ID)
	}
}

// TestScenarioReplanUnblocksSiblings builds an auth/api/ui/migration
// fan-out where ui and migration both depend on api, which depends on
// auth, and confirms resolving auth unblocks api alone, then resolving
// api unblocks both ui and migration together.
func TestScenarioReplanUnblocksSiblings(t *testing.T) {
	h := newTestHandlers(t)
	opened, err := h.Open(context.Background(), handlers.OpenParams{Project: "replan"})
	require.NoError(t, err)
	markDiscoveryDone(t, h, opened.Root.ID)

	plan, err := h.Plan(context.Background(), handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{
			{Ref: "auth", ParentRef: opened.Root.ID, Summary: "build auth layer"},
			{Ref: "api", ParentRef: opened.Root.ID, Summary: "build api", DependsOn: []string{"auth"}},
			{Ref: "ui", ParentRef: opened.Root.ID, Summary: "build ui", DependsOn: []string{"api"}},
			{Ref: "migration", ParentRef: opened.Root.ID, Summary: "data migration", DependsOn: []string{"api"}},
		},
	})
	require.NoError(t, err)

	resolved := true
	_, err = h.Update(context.Background(), handlers.UpdateParams{
		Agent: "agent-a",
		Updates: []handlers.UpdateEntry{{
			NodeID:      plan.RefToID["auth"],
			Resolved:    &resolved,
			AddEvidence: []types.Evidence{{Type: types.EvidenceGit, Ref: "auth-commit"}},
		}},
	})
	require.NoError(t, err)

	next, err := h.Next(context.Background(), handlers.NextParams{Project: "replan", Count: 10})
	require.NoError(t, err)
	require.Len(t, next.Candidates, 1)
	require.Equal(t, plan.RefToID["api"], next.Candidates[0].Node.ID)

	apiUpdate, err := h.Update(context.Background(), handlers.UpdateParams{
		Agent: "agent-a",
		Updates: []handlers.UpdateEntry{{
			NodeID:      plan.RefToID["api"],
			Resolved:    &resolved,
			AddEvidence: []types.Evidence{{Type: types.EvidenceGit, Ref: "api-commit"}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, apiUpdate.NewlyActionable, 2)

	next, err = h.Next(context.Background(), handlers.NextParams{Project: "replan", Count: 10})
	require.NoError(t, err)
	require.Len(t, next.Candidates, 2)
}

// TestScenarioTwoAgentContention claims a node under a zero-minute claim
// TTL engine, then confirms a second agent sees the claim gone on the
// very next call (TTL 0 expires immediately) and can reclaim it.
func TestScenarioTwoAgentContention(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()
	h := handlers.New(&graph.Engine{Store: store, ClaimTTL: 0})

	opened, err := h.Open(ctx, handlers.OpenParams{Project: "contention"})
	require.NoError(t, err)
	markDiscoveryDone(t, h, opened.Root.ID)
	plan, err := h.Plan(ctx, handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{{Ref: "leaf", ParentRef: opened.Root.ID, Summary: "contended task"}},
	})
	require.NoError(t, err)

	first, err := h.Next(ctx, handlers.NextParams{Project: "contention", Count: 1, Claim: true, Agent: "agent-a"})
	require.NoError(t, err)
	require.Len(t, first.Candidates, 1)
	require.Equal(t, plan.RefToID["leaf"], first.Candidates[0].Node.ID)

	second, err := h.Next(ctx, handlers.NextParams{Project: "contention", Count: 1, Claim: true, Agent: "agent-b"})
	require.NoError(t, err)
	require.Len(t, second.Candidates, 1, "a zero-TTL claim must be immediately reclaimable")
	require.Equal(t, plan.RefToID["leaf"], second.Candidates[0].Node.ID)
	require.Equal(t, "agent-b", second.Candidates[0].Node.ClaimedBy())
}

// TestScenarioDropCascade drops a subtree and confirms every descendant
// ends up resolved, and that the drop's affected-id count reflects the
// whole subtree.
func TestScenarioDropCascade(t *testing.T) {
	h := newTestHandlers(t)
	opened, err := h.Open(context.Background(), handlers.OpenParams{Project: "drop"})
	require.NoError(t, err)
	markDiscoveryDone(t, h, opened.Root.ID)

	plan, err := h.Plan(context.Background(), handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{
			{Ref: "feature", ParentRef: opened.Root.ID, Summary: "feature branch of work"},
		},
	})
	require.NoError(t, err)
	markDiscoveryDone(t, h, plan.RefToID["feature"])
	child, err := h.Plan(context.Background(), handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{
			{Ref: "subtask", ParentRef: plan.RefToID["feature"], Summary: "a subtask"},
		},
	})
	require.NoError(t, err)

	res, err := h.Restructure(context.Background(), handlers.RestructureParams{
		Op: handlers.RestructureDrop, NodeID: plan.RefToID["feature"], Reason: "deprioritized", Agent: "agent-a",
	})
	require.NoError(t, err)
	require.Len(t, res.AffectedIDs, 2)

	got, err := h.Query(context.Background(), types.QueryFilter{Project: "drop"})
	require.NoError(t, err)
	byID := map[string]*types.Node{}
	for _, n := range got.Nodes {
		byID[n.ID] = n
	}
	require.True(t, byID[plan.RefToID["feature"]].Resolved)
	require.True(t, byID[child.RefToID["subtask"]].Resolved)
}

// TestScenarioOptimisticConcurrency simulates two agents racing to
// update the same node from the same observed revision: the first
// update must win and the second must fail with a revision mismatch.
func TestScenarioOptimisticConcurrency(t *testing.T) {
	h := newTestHandlers(t)
	opened, err := h.Open(context.Background(), handlers.OpenParams{Project: "race"})
	require.NoError(t, err)
	markDiscoveryDone(t, h, opened.Root.ID)
	plan, err := h.Plan(context.Background(), handlers.PlanParams{
		Agent: "agent-a",
		Nodes: []handlers.PlanNodeInput{{Ref: "leaf", ParentRef: opened.Root.ID, Summary: "contended edit"}},
	})
	require.NoError(t, err)

	next, err := h.Next(context.Background(), handlers.NextParams{Project: "race", Count: 1})
	require.NoError(t, err)
	observedRev := next.Candidates[0].Node.Rev

	summaryA := "agent-a's edit"
	_, err = h.Update(context.Background(), handlers.UpdateParams{
		Agent:   "agent-a",
		Updates: []handlers.UpdateEntry{{NodeID: plan.RefToID["leaf"], ExpectedRev: &observedRev, Summary: &summaryA}},
	})
	require.NoError(t, err)

	summaryB := "agent-b's stale edit"
	_, err = h.Update(context.Background(), handlers.UpdateParams{
		Agent:   "agent-b",
		Updates: []handlers.UpdateEntry{{NodeID: plan.RefToID["leaf"], ExpectedRev: &observedRev, Summary: &summaryB}},
	})
	var ee *engineerr.Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, engineerr.CodeRevMismatch, ee.Code)
}

// TestScenarioKnowledgeOverlapWarning writes two near-duplicate
// knowledge keys for the same project and confirms the second write
// surfaces the first as a similar-key warning.
func TestScenarioKnowledgeOverlapWarning(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.Open(context.Background(), handlers.OpenParams{Project: "kb"})
	require.NoError(t, err)

	_, err = h.KnowledgeWrite(context.Background(), handlers.KnowledgeWriteParams{
		Project: "kb", Key: "auth-design", Content: "JWT based", Category: types.CategoryArchitecture,
	})
	require.NoError(t, err)

	res, err := h.KnowledgeWrite(context.Background(), handlers.KnowledgeWriteParams{
		Project: "kb", Key: "authdesign", Content: "a near-duplicate note", Category: types.CategoryArchitecture,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"auth-design"}, res.SimilarKeys)
}
