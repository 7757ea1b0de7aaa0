package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// retroNudgeThreshold is the number of resolutions since the last retro
// entry that triggers a nudge on next()'s response.
const retroNudgeThreshold = 10

// NextParams is graph_next's input.
type NextParams struct {
	Project       string
	Scope         string // node id; restrict to descendants
	Property      string // ancestor-filter property path
	PropertyValue types.Value
	HasProperty   bool
	Count         int
	Claim         bool
	Agent         string
}

// NextCandidate is one ranked actionable node in graph_next's response.
type NextCandidate struct {
	Node               *types.Node      `json:"node"`
	Ancestors          []*types.Node    `json:"ancestors"`
	SelfContextLinks   []string         `json:"self_context_links"`
	InheritedLinks     []string         `json:"inherited_context_links,omitempty"`
	DependencyEvidence []types.Evidence `json:"dependency_evidence,omitempty"`
}

// NextResult is graph_next's output.
type NextResult struct {
	Candidates        []NextCandidate `json:"candidates"`
	ExistingClaims     []*types.Node  `json:"existing_claims,omitempty"`
	NeedsVerification  []*types.Node  `json:"needs_verification,omitempty"`
	RetroNudge         string         `json:"retro_nudge,omitempty"`
}

// Next implements graph_next: the top-N actionable nodes per the §4.5
// ranking, each with its ancestor chain, own vs inherited context links,
// and the evidence of its resolved dependencies, optionally claiming them.
func (h *Handlers) Next(ctx context.Context, p NextParams) (*NextResult, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	count := p.Count
	if count <= 0 {
		count = 1
	}

	now := timeNow()
	store := h.store()
	all, err := store.AllNodes(ctx, p.Project)
	if err != nil {
		return nil, fmt.Errorf("next %s: %w", p.Project, err)
	}

	candidates, err := graph.ActionableNodes(ctx, store, all)
	if err != nil {
		return nil, fmt.Errorf("next %s: %w", p.Project, err)
	}
	candidates = filterByScope(candidates, all, p.Scope)
	candidates = filterByAncestorProperty(candidates, all, p.Property, p.PropertyValue, p.HasProperty)

	var visible []*types.Node
	for _, n := range candidates {
		if graph.IsClaimVisibleTo(n, p.Agent, h.Engine.ClaimTTL, now) {
			visible = append(visible, n)
		}
	}
	ranked := graph.RankActionable(visible)
	if len(ranked) > count {
		ranked = ranked[:count]
	}

	byID := make(map[string]*types.Node, len(all))
	for _, n := range all {
		byID[n.ID] = n
	}

	var result []NextCandidate
	for _, n := range ranked {
		nc := NextCandidate{Node: n}

		if p.Claim {
			claimed, err := h.claimNode(ctx, n.ID, p.Agent, now)
			if err != nil {
				return nil, err
			}
			nc.Node = claimed
		}

		ancestors, err := store.Ancestors(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("next %s: ancestors of %s: %w", p.Project, n.ID, err)
		}
		nc.Ancestors = ancestors
		nc.SelfContextLinks = n.ContextLinks
		nc.InheritedLinks = inheritedContextLinks(ancestors)

		deps, err := store.EdgesFrom(ctx, n.ID, types.EdgeDependsOn)
		if err != nil {
			return nil, fmt.Errorf("next %s: edges of %s: %w", p.Project, n.ID, err)
		}
		for _, e := range deps {
			if target, ok := byID[e.ToNode]; ok {
				nc.DependencyEvidence = append(nc.DependencyEvidence, target.Evidence...)
			}
		}
		result = append(result, nc)
	}

	var existingClaims, needsVerification []*types.Node
	for _, n := range all {
		if !n.Resolved && p.Agent != "" && n.ClaimedBy() == p.Agent {
			existingClaims = append(existingClaims, n)
		}
		if n.NeedsVerification() {
			needsVerification = append(needsVerification, n)
		}
	}

	return &NextResult{
		Candidates:        result,
		ExistingClaims:    existingClaims,
		NeedsVerification: needsVerification,
		RetroNudge:        h.retroNudge(ctx, p.Project, all),
	}, nil
}

// claimNode writes the soft claim onto a node's properties via the node
// layer's generic update path, so the claim change is diffed and logged
// like any other property mutation.
func (h *Handlers) claimNode(ctx context.Context, nodeID, agent string, now time.Time) (*types.Node, error) {
	var claimed *types.Node
	err := h.runTx(ctx, func(tx storage.Transaction) error {
		n, err := tx.GetNode(ctx, nodeID)
		if err != nil {
			return err
		}
		props := graph.Claim(n, agent, now)
		updated, err := graph.UpdateNode(ctx, tx, graph.UpdateParams{
			NodeID: nodeID,
			Agent:  agent,
			SetProperties: map[string]types.Value{
				"_claimed_by": props["_claimed_by"],
				"_claimed_at": props["_claimed_at"],
			},
		}, now)
		if err != nil {
			return err
		}
		claimed = updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", nodeID, err)
	}
	return claimed, nil
}

func filterByScope(candidates, all []*types.Node, scope string) []*types.Node {
	if scope == "" {
		return candidates
	}
	descendants := descendantSet(all, scope)
	var out []*types.Node
	for _, n := range candidates {
		if descendants[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// filterByAncestorProperty restricts candidates to those with an ancestor
// (inclusive of itself) whose properties[path] matches value.
func filterByAncestorProperty(candidates, all []*types.Node, path string, value types.Value, has bool) []*types.Node {
	if !has || path == "" {
		return candidates
	}
	byID := make(map[string]*types.Node, len(all))
	for _, n := range all {
		byID[n.ID] = n
	}
	var out []*types.Node
	for _, n := range candidates {
		cur := n
		for cur != nil {
			if cur.Properties != nil {
				if v, ok := cur.Properties[path]; ok && v.Equal(value) {
					out = append(out, n)
					break
				}
			}
			if cur.Parent == "" {
				break
			}
			cur = byID[cur.Parent]
		}
	}
	return out
}

func descendantSet(all []*types.Node, root string) map[string]bool {
	children := map[string][]string{}
	for _, n := range all {
		children[n.Parent] = append(children[n.Parent], n.ID)
	}
	set := map[string]bool{}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range children[id] {
			if !set[c] {
				set[c] = true
				stack = append(stack, c)
			}
		}
	}
	return set
}

func inheritedContextLinks(ancestors []*types.Node) []string {
	var out []string
	seen := map[string]bool{}
	for i := 0; i < len(ancestors); i++ {
		for _, l := range ancestors[i].ContextLinks {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

// retroNudge surfaces a hint when more than retroNudgeThreshold nodes have
// resolved since the project's last retro-* knowledge entry.
func (h *Handlers) retroNudge(ctx context.Context, project string, all []*types.Node) string {
	lastRetro, err := lastRetroTime(ctx, h.store(), project)
	if err != nil {
		return ""
	}
	resolvedSince := 0
	for _, n := range all {
		if n.Resolved && n.UpdatedAt.After(lastRetro) {
			resolvedSince++
		}
	}
	if resolvedSince > retroNudgeThreshold {
		return fmt.Sprintf("%d tasks resolved since the last retro; consider calling graph_retro", resolvedSince)
	}
	return ""
}
