package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// IsActionable reports whether n is actionable: unresolved, unblocked, not
// the project root, with every child resolved and every depends_on target
// resolved. all is the full node set of n's project, used to look up
// children without an extra round trip per node.
func IsActionable(ctx context.Context, tx storage.Transaction, n *types.Node, all []*types.Node) (bool, error) {
	if n.Resolved || n.Blocked || n.IsRoot() {
		return false, nil
	}
	for _, c := range all {
		if c.Parent == n.ID && !c.Resolved {
			return false, nil
		}
	}
	deps, err := tx.EdgesFrom(ctx, n.ID, types.EdgeDependsOn)
	if err != nil {
		return false, fmt.Errorf("is actionable %s: %w", n.ID, err)
	}
	byID := nodesByID(all)
	for _, e := range deps {
		target, ok := byID[e.ToNode]
		if !ok {
			continue
		}
		if !target.Resolved {
			return false, nil
		}
	}
	return true, nil
}

// ActionableNodes filters all down to the actionable subset.
func ActionableNodes(ctx context.Context, tx storage.Transaction, all []*types.Node) ([]*types.Node, error) {
	var out []*types.Node
	for _, n := range all {
		ok, err := IsActionable(ctx, tx, n, all)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// IsBlocked reports whether an unresolved node is manually blocked or has
// at least one unresolved depends_on target.
func IsBlocked(ctx context.Context, tx storage.Transaction, n *types.Node, byID map[string]*types.Node) (bool, error) {
	if n.Resolved {
		return false, nil
	}
	if n.Blocked {
		return true, nil
	}
	deps, err := tx.EdgesFrom(ctx, n.ID, types.EdgeDependsOn)
	if err != nil {
		return false, fmt.Errorf("is blocked %s: %w", n.ID, err)
	}
	for _, e := range deps {
		if target, ok := byID[e.ToNode]; ok && !target.Resolved {
			return true, nil
		}
	}
	return false, nil
}

// RankActionable orders nodes by properties.priority descending, depth
// descending, updated_at ascending — the deterministic ranking used by
// next/onboard suggestions.
func RankActionable(nodes []*types.Node) []*types.Node {
	out := make([]*types.Node, len(nodes))
	copy(out, nodes)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Priority(), out[j].Priority()
		if pi != pj {
			return pi > pj
		}
		if out[i].Depth != out[j].Depth {
			return out[i].Depth > out[j].Depth
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out
}
