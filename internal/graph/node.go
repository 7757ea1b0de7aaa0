package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// CreateNodeParams mirrors the node-layer create operation's input.
type CreateNodeParams struct {
	Project         string
	Parent          string
	Summary         string
	Properties      map[string]types.Value
	ContextLinks    []string
	Plan            []string
	State           types.Value
	Discovery       types.Discovery
	DecisionContext string
	Agent           string
}

// CreateNode inserts a brand-new node with rev=1, depth derived from its
// parent, resolved/blocked false, and empty evidence, then appends a
// "created" event. A parent with discovery=pending rejects the call: a
// node mid-decomposition-wait may not receive children yet.
func CreateNode(ctx context.Context, tx storage.Transaction, ids func() string, p CreateNodeParams, now time.Time) (*types.Node, error) {
	depth := 0
	if p.Parent != "" {
		parent, err := tx.GetNode(ctx, p.Parent)
		if err != nil {
			return nil, engineerr.New(engineerr.CodeMissingParent, fmt.Sprintf("parent node %s does not exist", p.Parent), "create the parent first or omit parent to create a root")
		}
		if parent.Discovery == types.DiscoveryPending {
			return nil, engineerr.New(engineerr.CodeDiscoveryPending, fmt.Sprintf("parent node %s has discovery=pending", p.Parent), fmt.Sprintf("flip discovery on %s to done before adding children", p.Parent))
		}
		depth = parent.Depth + 1
	}

	props := types.PropertyBag{}
	for k, v := range p.Properties {
		props[k] = v
	}

	n := &types.Node{
		ID:           ids(),
		Rev:          1,
		Parent:       p.Parent,
		Project:      p.Project,
		Summary:      p.Summary,
		Resolved:     false,
		Depth:        depth,
		Discovery:    p.Discovery,
		Blocked:      false,
		Plan:         p.Plan,
		State:        p.State,
		Properties:   props,
		ContextLinks: dedupStrings(p.ContextLinks),
		Evidence:     nil,
		CreatedBy:    p.Agent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := tx.CreateNode(ctx, n); err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}

	if err := tx.LogEvent(ctx, &types.Event{
		NodeID:          n.ID,
		Agent:           p.Agent,
		Action:          types.ActionCreated,
		DecisionContext: p.DecisionContext,
		Timestamp:       now,
	}); err != nil {
		return nil, fmt.Errorf("log created event for %s: %w", n.ID, err)
	}

	return n, nil
}

// UpdateParams mirrors the node-layer update operation's input. Pointer and
// nil-vs-empty-slice fields distinguish "not provided" from "provided as
// zero value" so partial updates only touch what the caller names.
type UpdateParams struct {
	NodeID             string
	Agent              string
	ExpectedRev        *int64
	Summary            *string
	Resolved           *bool
	Blocked            *bool
	BlockedReason      *string
	Discovery          *types.Discovery
	Plan               *[]string
	State              *types.Value
	SetProperties      map[string]types.Value
	DeleteProperties   []string
	AddContextLinks    []string
	RemoveContextLinks []string
	AddEvidence        []types.Evidence
	DecisionContext    string
}

// UpdateNode applies a partial mutation to a single node inside tx,
// enforcing the resolve/block/property/context-link invariants from the
// core design, and appends one event whose Changes list enumerates every
// field actually changed. It does not run the auto-resolve cascade or
// compute newly-actionable results; callers (the update/resolve handlers)
// do that once across a whole batch.
func UpdateNode(ctx context.Context, tx storage.Transaction, p UpdateParams, now time.Time) (*types.Node, error) {
	n, err := tx.GetNode(ctx, p.NodeID)
	if err != nil {
		return nil, engineerr.NodeNotFound(p.NodeID)
	}

	if p.ExpectedRev != nil && *p.ExpectedRev != n.Rev {
		return nil, engineerr.RevMismatch(p.NodeID, *p.ExpectedRev, n.Rev)
	}

	var changes []types.FieldChange
	record := func(field string, before, after types.Value) {
		if !before.Equal(after) {
			changes = append(changes, types.FieldChange{Field: field, Before: before, After: after})
		}
	}

	if len(p.AddEvidence) > 0 {
		for _, e := range p.AddEvidence {
			e.Agent = p.Agent
			e.Timestamp = now
			n.Evidence = append(n.Evidence, e)
		}
		record("evidence", types.Int(int64(len(n.Evidence)-len(p.AddEvidence))), types.Int(int64(len(n.Evidence))))
	}

	if p.Resolved != nil && *p.Resolved != n.Resolved {
		if *p.Resolved && len(n.Evidence) == 0 {
			return nil, engineerr.EvidenceRequired(p.NodeID)
		}
		if *p.Resolved {
			kids, err := tx.Children(ctx, p.NodeID)
			if err != nil {
				return nil, fmt.Errorf("update node %s: %w", p.NodeID, err)
			}
			unresolved := 0
			for _, c := range kids {
				if !c.Resolved {
					unresolved++
				}
			}
			if unresolved > 0 {
				return nil, engineerr.UnresolvedChildren(p.NodeID, unresolved)
			}
		}
		record("resolved", types.Bool(n.Resolved), types.Bool(*p.Resolved))
		n.Resolved = *p.Resolved
	}

	if p.Blocked != nil && *p.Blocked != n.Blocked {
		if *p.Blocked {
			reason := ""
			if p.BlockedReason != nil {
				reason = *p.BlockedReason
			}
			if reason == "" {
				return nil, engineerr.BlockedReasonRequired(p.NodeID)
			}
			record("blocked_reason", types.String(n.BlockedReason), types.String(reason))
			n.BlockedReason = reason
		} else if p.BlockedReason == nil {
			record("blocked_reason", types.String(n.BlockedReason), types.String(""))
			n.BlockedReason = ""
		}
		record("blocked", types.Bool(n.Blocked), types.Bool(*p.Blocked))
		n.Blocked = *p.Blocked
	} else if p.BlockedReason != nil && *p.BlockedReason != n.BlockedReason {
		record("blocked_reason", types.String(n.BlockedReason), types.String(*p.BlockedReason))
		n.BlockedReason = *p.BlockedReason
	}

	if p.Summary != nil && *p.Summary != n.Summary {
		record("summary", types.String(n.Summary), types.String(*p.Summary))
		n.Summary = *p.Summary
	}

	if p.Discovery != nil && *p.Discovery != n.Discovery {
		record("discovery", types.String(string(n.Discovery)), types.String(string(*p.Discovery)))
		n.Discovery = *p.Discovery
	}

	if p.Plan != nil {
		record("plan", stringsValue(n.Plan), stringsValue(*p.Plan))
		n.Plan = *p.Plan
	}

	if p.State != nil && !p.State.Equal(n.State) {
		record("state", n.State, *p.State)
		n.State = *p.State
	}

	if len(p.SetProperties) > 0 || len(p.DeleteProperties) > 0 {
		before := n.Properties
		n.Properties = n.Properties.Merge(p.SetProperties, p.DeleteProperties)
		record("properties", types.Int(int64(len(before))), types.Int(int64(len(n.Properties))))
	}

	if len(p.AddContextLinks) > 0 || len(p.RemoveContextLinks) > 0 {
		before := len(n.ContextLinks)
		n.ContextLinks = applyContextLinks(n.ContextLinks, p.AddContextLinks, p.RemoveContextLinks)
		if before != len(n.ContextLinks) {
			record("context_links", types.Int(int64(before)), types.Int(int64(len(n.ContextLinks))))
		}
	}

	if len(changes) == 0 {
		return n, nil
	}

	n.Rev++
	n.UpdatedAt = now

	if err := tx.UpdateNode(ctx, n); err != nil {
		return nil, fmt.Errorf("update node %s: %w", p.NodeID, err)
	}

	if err := tx.LogEvent(ctx, &types.Event{
		NodeID:          n.ID,
		Agent:           p.Agent,
		Action:          types.ActionUpdated,
		Changes:         changes,
		DecisionContext: p.DecisionContext,
		Timestamp:       now,
	}); err != nil {
		return nil, fmt.Errorf("log updated event for %s: %w", n.ID, err)
	}

	return n, nil
}

// SubtreeProgress returns the (resolved, total) node count for id and all
// of its descendants.
func SubtreeProgress(ctx context.Context, tx storage.Transaction, id string) (types.SubtreeProgress, error) {
	ids, err := tx.SubtreeIDs(ctx, id)
	if err != nil {
		return types.SubtreeProgress{}, fmt.Errorf("subtree progress %s: %w", id, err)
	}
	var progress types.SubtreeProgress
	for _, nodeID := range ids {
		n, err := tx.GetNode(ctx, nodeID)
		if err != nil {
			return types.SubtreeProgress{}, fmt.Errorf("subtree progress %s: %w", id, err)
		}
		progress.Total++
		if n.Resolved {
			progress.Resolved++
		}
	}
	return progress, nil
}

func dedupStrings(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func applyContextLinks(current, add, remove []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, r := range remove {
		removeSet[r] = true
	}
	seen := make(map[string]bool, len(current)+len(add))
	out := make([]string, 0, len(current)+len(add))
	for _, l := range current {
		if removeSet[l] || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	for _, l := range add {
		if removeSet[l] || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func stringsValue(ss []string) types.Value {
	vs := make([]types.Value, len(ss))
	for i, s := range ss {
		vs[i] = types.String(s)
	}
	return types.List(vs...)
}
