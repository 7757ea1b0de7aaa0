package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// AutoResolveCascade runs after a transaction resolves one or more nodes:
// for each just-resolved node's parent, if every child of that parent is
// now resolved, the parent is not itself resolved, and its
// properties.auto_resolve is not explicitly false, the parent is resolved
// automatically with a synthetic auto_resolve evidence entry. The cascade
// ascends one level by default; it keeps climbing only while the
// just-auto-resolved parent has properties.cascade_resolve = true.
// Returns the ids auto-resolved, in ascent order, for the caller to fold
// into its own newly-resolved/newly-actionable accounting.
func AutoResolveCascade(ctx context.Context, tx storage.Transaction, all []*types.Node, justResolvedIDs []string, agent string, now time.Time) ([]string, error) {
	byID := nodesByID(all)
	var autoResolved []string
	resolvedSoFar := map[string]bool{}
	for _, id := range justResolvedIDs {
		resolvedSoFar[id] = true
	}

	frontier := append([]string(nil), justResolvedIDs...)
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			n, ok := byID[id]
			if !ok || n.Parent == "" {
				continue
			}
			parent, ok := byID[n.Parent]
			if !ok || parent.Resolved || !parent.AutoResolveEnabled() {
				continue
			}

			total, resolvedCount := 0, 0
			allChildrenResolved := true
			for _, c := range all {
				if c.Parent != parent.ID {
					continue
				}
				total++
				if c.Resolved || resolvedSoFar[c.ID] {
					resolvedCount++
				} else {
					allChildrenResolved = false
				}
			}
			if !allChildrenResolved || total == 0 {
				continue
			}

			ref := fmt.Sprintf("%d/%d children resolved", resolvedCount, total)
			parent.Evidence = append(parent.Evidence, types.Evidence{
				Type: types.EvidenceAutoResolve, Ref: ref, Agent: agent, Timestamp: now,
			})
			parent.Resolved = true
			parent.Rev++
			parent.UpdatedAt = now

			if err := tx.UpdateNode(ctx, parent); err != nil {
				return nil, fmt.Errorf("auto-resolve cascade: update %s: %w", parent.ID, err)
			}
			if err := tx.LogEvent(ctx, &types.Event{
				NodeID: parent.ID,
				Agent:  agent,
				Action: types.ActionUpdated,
				Changes: []types.FieldChange{
					{Field: "resolved", Before: types.Bool(false), After: types.Bool(true)},
					{Field: "evidence", Before: types.Null(), After: types.String(ref)},
				},
				Timestamp: now,
			}); err != nil {
				return nil, fmt.Errorf("auto-resolve cascade: log event for %s: %w", parent.ID, err)
			}

			autoResolved = append(autoResolved, parent.ID)
			resolvedSoFar[parent.ID] = true
			if parent.CascadeResolveEnabled() {
				next = append(next, parent.ID)
			}
		}
		frontier = next
	}

	return autoResolved, nil
}
