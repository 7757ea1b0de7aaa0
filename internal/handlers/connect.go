package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// EdgeOp is one add/remove instruction in a graph_connect batch.
type EdgeOp struct {
	From   string
	To     string
	Type   types.EdgeType
	Remove bool // false adds, true removes
}

// ConnectParams is graph_connect's input.
type ConnectParams struct {
	Edges []EdgeOp
	Agent string
}

// ConnectResult is graph_connect's output.
type ConnectResult struct {
	Added           []*types.Edge         `json:"added,omitempty"`
	Removed         int                   `json:"removed,omitempty"`
	NewlyActionable []types.NewlyActionable `json:"newly_actionable,omitempty"`
}

// Connect implements graph_connect: a batch of edge adds/removes in a
// single transaction. Reparenting is not an edge operation at all (parent
// linkage lives on the node itself) and goes through restructure(move)
// instead — a type=parent op is rejected outright with edge_rejected;
// depends_on adds run AddEdge's cycle check. Removing a depends_on edge
// can make its from-node newly actionable, so once the batch commits each
// such from-node's actionability is re-checked in a second transaction.
func (h *Handlers) Connect(ctx context.Context, p ConnectParams) (*ConnectResult, error) {
	if len(p.Edges) == 0 {
		return nil, engineerr.New(engineerr.CodeInvalidInput, "edges batch is empty", "supply at least one edge operation")
	}
	for _, e := range p.Edges {
		if e.From == "" || e.To == "" {
			return nil, engineerr.New(engineerr.CodeInvalidInput, "every edge op needs from and to", "supply both endpoints")
		}
		if e.Type == types.EdgeParent {
			return nil, engineerr.New(engineerr.CodeEdgeRejected, "type=parent is rejected", "reparent with graph_restructure(move) instead")
		}
	}

	now := timeNow()
	var added []*types.Edge
	var removed int
	var affectedFrom []string
	var project string

	err := h.runTx(ctx, func(tx storage.Transaction) error {
		for _, op := range p.Edges {
			from, err := tx.GetNode(ctx, op.From)
			if err != nil {
				return engineerr.NodeNotFound(op.From)
			}
			project = from.Project

			if op.Remove {
				if err := graph.RemoveEdge(ctx, tx, op.From, op.To, op.Type, p.Agent, now); err != nil {
					return err
				}
				removed++
				if op.Type == types.EdgeDependsOn {
					affectedFrom = append(affectedFrom, op.From)
				}
				continue
			}

			e, err := graph.AddEdge(ctx, tx, op.From, op.To, op.Type, p.Agent, now)
			if err != nil {
				return err
			}
			added = append(added, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var newlyActionable []types.NewlyActionable
	if len(affectedFrom) > 0 && project != "" {
		if err := h.runTx(ctx, func(tx storage.Transaction) error {
			all, err := tx.AllNodes(ctx, project)
			if err != nil {
				return err
			}
			byID := make(map[string]bool, len(affectedFrom))
			for _, id := range affectedFrom {
				byID[id] = true
			}
			for _, n := range all {
				if !byID[n.ID] {
					continue
				}
				ok, err := graph.IsActionable(ctx, tx, n, all)
				if err != nil {
					return err
				}
				if ok {
					newlyActionable = append(newlyActionable, types.NewlyActionable{ID: n.ID, Summary: n.Summary})
				}
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("connect: newly actionable: %w", err)
		}
	}

	return &ConnectResult{Added: added, Removed: removed, NewlyActionable: newlyActionable}, nil
}
