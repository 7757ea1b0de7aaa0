package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// RestructureOp names which of the four restructure operations to run.
type RestructureOp string

const (
	RestructureMove   RestructureOp = "move"
	RestructureMerge  RestructureOp = "merge"
	RestructureDrop   RestructureOp = "drop"
	RestructureDelete RestructureOp = "delete"
)

// RestructureParams is graph_restructure's input. Field use depends on Op:
// move needs NodeID+NewParent, merge needs NodeID (source)+TargetID, drop
// needs NodeID+Reason, delete needs NodeID alone.
type RestructureParams struct {
	Op        RestructureOp
	NodeID    string
	NewParent string
	TargetID  string
	Reason    string
	Agent     string
}

// RestructureResult is graph_restructure's output.
type RestructureResult struct {
	Node            *types.Node              `json:"node,omitempty"`
	AffectedIDs     []string                 `json:"affected_ids,omitempty"`
	NewlyActionable []types.NewlyActionable  `json:"newly_actionable,omitempty"`
}

// Restructure implements graph_restructure: move/merge/drop/delete, each
// atomic, followed by the same newly-actionable scan update() runs when a
// drop resolves nodes outright.
func (h *Handlers) Restructure(ctx context.Context, p RestructureParams) (*RestructureResult, error) {
	if err := requireNonEmpty("node_id", p.NodeID); err != nil {
		return nil, err
	}

	now := timeNow()
	var result RestructureResult
	var project string
	var resolvedIDs []string

	err := h.runTx(ctx, func(tx storage.Transaction) error {
		n, err := tx.GetNode(ctx, p.NodeID)
		if err != nil {
			return engineerr.NodeNotFound(p.NodeID)
		}
		project = n.Project

		switch p.Op {
		case RestructureMove:
			if err := requireNonEmpty("new_parent", p.NewParent); err != nil {
				return err
			}
			moved, err := graph.MoveNode(ctx, tx, p.NodeID, p.NewParent, p.Agent, now)
			if err != nil {
				return err
			}
			result.Node = moved

		case RestructureMerge:
			if err := requireNonEmpty("target_id", p.TargetID); err != nil {
				return err
			}
			merged, err := graph.MergeNode(ctx, tx, p.NodeID, p.TargetID, p.Agent, now)
			if err != nil {
				return err
			}
			result.Node = merged
			result.AffectedIDs = []string{p.NodeID}

		case RestructureDrop:
			if err := requireNonEmpty("reason", p.Reason); err != nil {
				return err
			}
			affected, err := graph.DropNode(ctx, tx, p.NodeID, p.Reason, p.Agent, now)
			if err != nil {
				return err
			}
			result.AffectedIDs = affected
			resolvedIDs = affected

		case RestructureDelete:
			affected, err := graph.DeleteNode(ctx, tx, p.NodeID, p.Agent, now)
			if err != nil {
				return err
			}
			result.AffectedIDs = affected

		default:
			return engineerr.New(engineerr.CodeInvalidInput, fmt.Sprintf("unrecognized restructure op %q", p.Op), "use one of move, merge, drop, delete")
		}

		if len(resolvedIDs) == 0 || project == "" {
			return nil
		}
		all, err := tx.AllNodes(ctx, project)
		if err != nil {
			return fmt.Errorf("restructure: newly actionable: %w", err)
		}
		result.NewlyActionable, err = graph.FindNewlyActionable(ctx, tx, project, all, resolvedIDs)
		if err != nil {
			return fmt.Errorf("restructure: newly actionable: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
