package handlers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/signals"
	"github.com/andburman/graphkeep/internal/types"
)

// OnboardParams is graph_onboard's input.
type OnboardParams struct {
	Project string
	Agent   string
}

// AgedNode names a node plus how long it has sat in its current state.
type AgedNode struct {
	Node *types.Node   `json:"node"`
	Age  time.Duration `json:"age"`
}

// ClaimedNode names a claimed node, its holder, and claim age.
type ClaimedNode struct {
	Node      *types.Node   `json:"node"`
	ClaimedBy string        `json:"claimed_by"`
	Age       time.Duration `json:"age"`
}

// Recommendation is one ranked actionable node with a one-line rationale.
type Recommendation struct {
	Node      *types.Node `json:"node"`
	Rationale string      `json:"rationale"`
}

// OnboardResult is graph_onboard's output: everything a fresh agent needs
// to pick up a project cold, in one call.
type OnboardResult struct {
	Summary          types.ProjectSummary    `json:"summary"`
	RootProgress     types.SubtreeProgress   `json:"root_progress"`
	RecentEvidence   []string                `json:"recent_evidence,omitempty"`
	ContextLinks     []string                `json:"context_links,omitempty"`
	KnowledgeKeys    []string                `json:"knowledge_keys,omitempty"`
	RecentlyResolved []*types.Node           `json:"recently_resolved,omitempty"`
	LastActivity     time.Time               `json:"last_activity"`
	Blocked          []AgedNode              `json:"blocked,omitempty"`
	Claimed          []ClaimedNode           `json:"claimed,omitempty"`
	Signals          signals.Bundle          `json:"signals"`
	Actionable       []*types.Node           `json:"actionable,omitempty"`
	Recommended      []Recommendation        `json:"recommended,omitempty"`
	Checklist        []signals.ChecklistItem `json:"checklist"`
	Hint             string                  `json:"hint"`
}

const (
	maxEvidenceExcerpt  = 120
	maxOnboardEvidence  = 10
	maxOnboardLinks     = 30
	recentResolveWindow = 24 * time.Hour
)

// Onboard implements graph_onboard: aggregates everything onboard() needs
// to orient a fresh agent — summary counts, evidence/context-link
// excerpts, knowledge keys, recent resolutions, blocked/claimed age,
// derived signals, and ranked actionable recommendations — in one
// read-only call.
func (h *Handlers) Onboard(ctx context.Context, p OnboardParams) (*OnboardResult, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	store := h.store()
	root, all, err := findRootAndAll(ctx, store, p.Project)
	if err != nil {
		return nil, err
	}
	knowledge, err := store.ListKnowledge(ctx, p.Project)
	if err != nil {
		return nil, fmt.Errorf("onboard %s: %w", p.Project, err)
	}

	now := timeNow()
	summary, err := summarizeProject(ctx, store, p.Project, root, all)
	if err != nil {
		return nil, fmt.Errorf("onboard %s: %w", p.Project, err)
	}

	bundle, err := signals.Compute(ctx, all, knowledge, p.Agent, now)
	if err != nil {
		return nil, fmt.Errorf("onboard %s: %w", p.Project, err)
	}

	actionable, err := graph.ActionableNodes(ctx, store, all)
	if err != nil {
		return nil, fmt.Errorf("onboard %s: %w", p.Project, err)
	}
	ranked := graph.RankActionable(actionable)

	result := &OnboardResult{
		Summary:       summary,
		RootProgress:  subtreeProgress(all, root),
		KnowledgeKeys: knowledgeKeys(knowledge),
		Signals:       bundle,
		Actionable:    actionable,
		Checklist:     bundle.Checklist,
	}

	result.RecentEvidence = recentEvidenceExcerpts(all, maxOnboardEvidence)
	result.ContextLinks = dedupedContextLinks(all, maxOnboardLinks)
	result.RecentlyResolved = recentlyResolved(all, now, recentResolveWindow)
	result.LastActivity = lastActivity(all)
	result.Blocked = blockedWithAge(all, now)
	result.Claimed = claimedWithAge(all, now)
	result.Recommended = recommend(ranked, 3)

	switch {
	case root != nil && root.Discovery == types.DiscoveryPending:
		result.Hint = "root has discovery=pending; flip discovery to done with graph_update and decompose it with graph_plan before claiming work"
	case len(result.Recommended) > 0:
		result.Hint = fmt.Sprintf("recommended next: %s", result.Recommended[0].Node.Summary)
	case summary.BlockedNum > 0:
		result.Hint = "nothing actionable; everything open is blocked, review graph_query(is_blocked=true)"
	default:
		result.Hint = "nothing actionable right now; check the checklist for what to do"
	}

	return result, nil
}

func subtreeProgress(all []*types.Node, root *types.Node) types.SubtreeProgress {
	if root == nil {
		return types.SubtreeProgress{}
	}
	resolved, total := 0, 0
	if root.Resolved {
		resolved++
	}
	total++
	for _, n := range all {
		if n.ID == root.ID {
			continue
		}
		total++
		if n.Resolved {
			resolved++
		}
	}
	return types.SubtreeProgress{Resolved: resolved, Total: total}
}

func knowledgeKeys(entries []*types.KnowledgeEntry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys
}

func recentEvidenceExcerpts(all []*types.Node, limit int) []string {
	type dated struct {
		ts   time.Time
		text string
	}
	var entries []dated
	for _, n := range all {
		for _, e := range n.Evidence {
			text := e.Ref
			if len(text) > maxEvidenceExcerpt {
				text = text[:maxEvidenceExcerpt] + "…"
			}
			entries = append(entries, dated{ts: e.Timestamp, text: fmt.Sprintf("%s: %s", n.Summary, text)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.After(entries[j].ts) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.text
	}
	return out
}

func dedupedContextLinks(all []*types.Node, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range all {
		for _, l := range n.ContextLinks {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func recentlyResolved(all []*types.Node, now time.Time, window time.Duration) []*types.Node {
	var out []*types.Node
	for _, n := range all {
		if n.Resolved && now.Sub(n.UpdatedAt) <= window {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func lastActivity(all []*types.Node) time.Time {
	var last time.Time
	for _, n := range all {
		if n.UpdatedAt.After(last) {
			last = n.UpdatedAt
		}
	}
	return last
}

func blockedWithAge(all []*types.Node, now time.Time) []AgedNode {
	var out []AgedNode
	for _, n := range all {
		if n.Blocked && !n.Resolved {
			out = append(out, AgedNode{Node: n, Age: now.Sub(n.UpdatedAt)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Age > out[j].Age })
	return out
}

func claimedWithAge(all []*types.Node, now time.Time) []ClaimedNode {
	var out []ClaimedNode
	for _, n := range all {
		if n.Resolved {
			continue
		}
		if by := n.ClaimedBy(); by != "" {
			out = append(out, ClaimedNode{Node: n, ClaimedBy: by, Age: now.Sub(n.ClaimedAt())})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Age > out[j].Age })
	return out
}

func recommend(ranked []*types.Node, limit int) []Recommendation {
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Recommendation, len(ranked))
	for i, n := range ranked {
		var why string
		switch {
		case n.Priority() > 0:
			why = fmt.Sprintf("highest priority (%.0f) among actionable work", n.Priority())
		case n.Depth > 0:
			why = "deepest ready leaf, closest to completion"
		default:
			why = "next in actionable order"
		}
		out[i] = Recommendation{Node: n, Rationale: why}
	}
	return out
}
