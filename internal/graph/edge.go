package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// AddEdge validates both endpoints exist, rejects an exact duplicate
// (from, to, type), and for depends_on edges runs a forward cycle check
// from "to": if "from" is already reachable from "to", inserting from->to
// would close a cycle. On success it appends an edge_added event on the
// from-node.
func AddEdge(ctx context.Context, tx storage.Transaction, from, to string, edgeType types.EdgeType, agent string, now time.Time) (*types.Edge, error) {
	if _, err := tx.GetNode(ctx, from); err != nil {
		return nil, engineerr.NodeNotFound(from)
	}
	if _, err := tx.GetNode(ctx, to); err != nil {
		return nil, engineerr.NodeNotFound(to)
	}

	exists, err := tx.EdgeExists(ctx, from, to, edgeType)
	if err != nil {
		return nil, fmt.Errorf("add edge: %w", err)
	}
	if exists {
		return nil, engineerr.New(engineerr.CodeDuplicateEdge, fmt.Sprintf("edge %s->%s (%s) already exists", from, to, edgeType), "remove the existing edge first if you meant to replace it")
	}

	if edgeType == types.EdgeDependsOn {
		reachable, err := tx.ReachableFrom(ctx, to, edgeType)
		if err != nil {
			return nil, fmt.Errorf("add edge: cycle check: %w", err)
		}
		if reachable[from] {
			return nil, engineerr.Cycle(from, to)
		}
	}

	e := &types.Edge{FromNode: from, ToNode: to, Type: edgeType, CreatedAt: now}
	if err := tx.AddEdge(ctx, e); err != nil {
		return nil, fmt.Errorf("add edge %s->%s: %w", from, to, err)
	}

	if err := tx.LogEvent(ctx, &types.Event{
		NodeID:    from,
		Agent:     agent,
		Action:    types.ActionEdgeAdded,
		Changes:   []types.FieldChange{{Field: "edge", Before: types.Null(), After: edgeValue(e)}},
		Timestamp: now,
	}); err != nil {
		return nil, fmt.Errorf("log edge_added event: %w", err)
	}

	return e, nil
}

// RemoveEdge deletes a matching edge and appends an edge_removed event on
// the from-node.
func RemoveEdge(ctx context.Context, tx storage.Transaction, from, to string, edgeType types.EdgeType, agent string, now time.Time) error {
	if err := tx.RemoveEdge(ctx, from, to, edgeType); err != nil {
		return engineerr.New(engineerr.CodeEdgeRejected, fmt.Sprintf("edge %s->%s (%s) does not exist", from, to, edgeType), "list current edges with context() before retrying")
	}
	return tx.LogEvent(ctx, &types.Event{
		NodeID:    from,
		Agent:     agent,
		Action:    types.ActionEdgeRemoved,
		Changes:   []types.FieldChange{{Field: "edge", Before: types.String(fmt.Sprintf("%s->%s(%s)", from, to, edgeType)), After: types.Null()}},
		Timestamp: now,
	})
}

func edgeValue(e *types.Edge) types.Value {
	return types.String(fmt.Sprintf("%s->%s(%s)", e.FromNode, e.ToNode, e.Type))
}

// FindNewlyActionable returns nodes that became actionable as a
// consequence of resolving resolvedIDs. When resolvedIDs is non-empty the
// search is restricted to nodes with a depends_on edge to one of them and
// to their parents; otherwise it scans the whole project.
func FindNewlyActionable(ctx context.Context, tx storage.Transaction, project string, all []*types.Node, resolvedIDs []string) ([]types.NewlyActionable, error) {
	candidateIDs := map[string]bool{}
	if len(resolvedIDs) == 0 {
		for _, n := range all {
			candidateIDs[n.ID] = true
		}
	} else {
		byID := nodesByID(all)
		for _, rid := range resolvedIDs {
			deps, err := tx.EdgesTo(ctx, rid, types.EdgeDependsOn)
			if err != nil {
				return nil, fmt.Errorf("find newly actionable: %w", err)
			}
			for _, e := range deps {
				candidateIDs[e.FromNode] = true
			}
			if n, ok := byID[rid]; ok && n.Parent != "" {
				candidateIDs[n.Parent] = true
			}
		}
	}

	byID := nodesByID(all)
	var out []types.NewlyActionable
	for id := range candidateIDs {
		n, ok := byID[id]
		if !ok {
			continue
		}
		actionable, err := IsActionable(ctx, tx, n, all)
		if err != nil {
			return nil, fmt.Errorf("find newly actionable: %w", err)
		}
		if actionable {
			out = append(out, types.NewlyActionable{ID: n.ID, Summary: n.Summary})
		}
	}
	return out, nil
}

func nodesByID(all []*types.Node) map[string]*types.Node {
	m := make(map[string]*types.Node, len(all))
	for _, n := range all {
		m[n.ID] = n
	}
	return m
}
