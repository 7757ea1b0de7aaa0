package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// ContextParams is graph_context's input.
type ContextParams struct {
	NodeID string
	Depth  int
}

// DependencyNeighbor is one depends_on neighbor with its satisfaction flag.
type DependencyNeighbor struct {
	Node     *types.Node `json:"node"`
	Resolved bool        `json:"resolved"`
}

// ContextResult is graph_context's output.
type ContextResult struct {
	Node         *types.Node          `json:"node"`
	Ancestors    []*types.Node        `json:"ancestors"`
	Children     []*types.TreeNode    `json:"children"`
	Dependencies []DependencyNeighbor `json:"dependencies,omitempty"`
	Dependents   []DependencyNeighbor `json:"dependents,omitempty"`
}

// Context implements graph_context: the node, its ancestor chain, its
// children tree flattened to the requested depth (with child_count where
// truncated), and its dependency neighborhood with satisfaction flags.
func (h *Handlers) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	if err := requireNonEmpty("node_id", p.NodeID); err != nil {
		return nil, err
	}
	depth := p.Depth
	if depth <= 0 {
		depth = 1
	}

	store := h.store()
	n, err := store.GetNode(ctx, p.NodeID)
	if err != nil {
		return nil, engineerr.NodeNotFound(p.NodeID)
	}
	ancestors, err := store.Ancestors(ctx, p.NodeID)
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", p.NodeID, err)
	}

	children, err := buildChildTree(ctx, store, p.NodeID, depth)
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", p.NodeID, err)
	}

	deps, err := store.EdgesFrom(ctx, p.NodeID, types.EdgeDependsOn)
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", p.NodeID, err)
	}
	var dependencies []DependencyNeighbor
	for _, e := range deps {
		target, err := store.GetNode(ctx, e.ToNode)
		if err != nil {
			continue
		}
		dependencies = append(dependencies, DependencyNeighbor{Node: target, Resolved: target.Resolved})
	}

	dependents, err := store.EdgesTo(ctx, p.NodeID, types.EdgeDependsOn)
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", p.NodeID, err)
	}
	var dependentNodes []DependencyNeighbor
	for _, e := range dependents {
		from, err := store.GetNode(ctx, e.FromNode)
		if err != nil {
			continue
		}
		dependentNodes = append(dependentNodes, DependencyNeighbor{Node: from, Resolved: n.Resolved})
	}

	return &ContextResult{
		Node:         n,
		Ancestors:    ancestors,
		Children:     children,
		Dependencies: dependencies,
		Dependents:   dependentNodes,
	}, nil
}

// buildChildTree walks breadth-first from id, returning a flat list of
// TreeNode projections down to remainingDepth levels; nodes at the cutoff
// carry their own child_count and truncated=true instead of being expanded
// further.
func buildChildTree(ctx context.Context, store storage.Storage, id string, remainingDepth int) ([]*types.TreeNode, error) {
	var out []*types.TreeNode
	frontier := []string{id}
	for level := 1; level <= remainingDepth && len(frontier) > 0; level++ {
		var next []string
		for _, parentID := range frontier {
			kids, err := store.Children(ctx, parentID)
			if err != nil {
				return nil, err
			}
			for _, c := range kids {
				tn := &types.TreeNode{
					ID: c.ID, ParentID: c.Parent, Summary: c.Summary,
					Resolved: c.Resolved, Blocked: c.Blocked, Depth: c.Depth,
				}
				if level == remainingDepth {
					grandkids, err := store.Children(ctx, c.ID)
					if err != nil {
						return nil, err
					}
					tn.ChildCount = len(grandkids)
					tn.Truncated = len(grandkids) > 0
				} else {
					next = append(next, c.ID)
				}
				out = append(out, tn)
			}
		}
		frontier = next
	}
	return out, nil
}
