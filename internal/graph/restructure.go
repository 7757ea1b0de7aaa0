package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// MoveNode reparents node under newParent. Rejects a move into the node's
// own subtree (which would create a parent cycle) and a move across
// projects. Recomputes depth for the whole moved subtree.
func MoveNode(ctx context.Context, tx storage.Transaction, nodeID, newParent, agent string, now time.Time) (*types.Node, error) {
	n, err := tx.GetNode(ctx, nodeID)
	if err != nil {
		return nil, engineerr.NodeNotFound(nodeID)
	}
	target, err := tx.GetNode(ctx, newParent)
	if err != nil {
		return nil, engineerr.NodeNotFound(newParent)
	}
	if target.Project != n.Project {
		return nil, engineerr.CrossProject(n.Project, target.Project)
	}

	subtree, err := tx.SubtreeIDs(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("move %s: %w", nodeID, err)
	}
	for _, id := range subtree {
		if id == newParent {
			return nil, engineerr.New(engineerr.CodeInvalidParentRef, fmt.Sprintf("%s is in %s's own subtree", newParent, nodeID), "choose a new parent outside the node's current subtree")
		}
	}

	oldParent := n.Parent
	n.Parent = newParent
	n.Depth = target.Depth + 1
	n.Rev++
	n.UpdatedAt = now
	if err := tx.UpdateNode(ctx, n); err != nil {
		return nil, fmt.Errorf("move %s: %w", nodeID, err)
	}
	if err := recomputeSubtreeDepth(ctx, tx, nodeID, n.Depth, now); err != nil {
		return nil, fmt.Errorf("move %s: %w", nodeID, err)
	}

	return n, tx.LogEvent(ctx, &types.Event{
		NodeID: nodeID,
		Agent:  agent,
		Action: types.ActionMoved,
		Changes: []types.FieldChange{
			{Field: "parent", Before: types.String(oldParent), After: types.String(newParent)},
		},
		Timestamp: now,
	})
}

func recomputeSubtreeDepth(ctx context.Context, tx storage.Transaction, rootID string, rootDepth int, now time.Time) error {
	kids, err := tx.Children(ctx, rootID)
	if err != nil {
		return err
	}
	for _, c := range kids {
		c.Depth = rootDepth + 1
		c.UpdatedAt = now
		if err := tx.UpdateNode(ctx, c); err != nil {
			return err
		}
		if err := recomputeSubtreeDepth(ctx, tx, c.ID, c.Depth, now); err != nil {
			return err
		}
	}
	return nil
}

// MergeNode reparents source's children onto target, concatenates
// source's evidence into target's, rewrites source's incoming/outgoing
// edges onto target (deduplicating), deletes source's events and edges,
// then deletes source. Appends a merged event on target naming source.
func MergeNode(ctx context.Context, tx storage.Transaction, sourceID, targetID, agent string, now time.Time) (*types.Node, error) {
	source, err := tx.GetNode(ctx, sourceID)
	if err != nil {
		return nil, engineerr.NodeNotFound(sourceID)
	}
	target, err := tx.GetNode(ctx, targetID)
	if err != nil {
		return nil, engineerr.NodeNotFound(targetID)
	}
	if source.Project != target.Project {
		return nil, engineerr.CrossProject(source.Project, target.Project)
	}

	kids, err := tx.Children(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", sourceID, targetID, err)
	}
	for _, c := range kids {
		c.Parent = targetID
		c.Depth = target.Depth + 1
		c.UpdatedAt = now
		if err := tx.UpdateNode(ctx, c); err != nil {
			return nil, fmt.Errorf("merge %s into %s: reparent %s: %w", sourceID, targetID, c.ID, err)
		}
		if err := recomputeSubtreeDepth(ctx, tx, c.ID, c.Depth, now); err != nil {
			return nil, fmt.Errorf("merge %s into %s: %w", sourceID, targetID, err)
		}
	}

	target.Evidence = append(target.Evidence, source.Evidence...)
	target.Rev++
	target.UpdatedAt = now
	if err := tx.UpdateNode(ctx, target); err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", sourceID, targetID, err)
	}

	if err := rewriteEdges(ctx, tx, sourceID, targetID); err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", sourceID, targetID, err)
	}

	if err := purgeNodeEdgesAndEvents(ctx, tx, sourceID); err != nil {
		return nil, fmt.Errorf("merge %s into %s: %w", sourceID, targetID, err)
	}
	if err := tx.DeleteNode(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("merge %s into %s: delete source: %w", sourceID, targetID, err)
	}

	return target, tx.LogEvent(ctx, &types.Event{
		NodeID: targetID,
		Agent:  agent,
		Action: types.ActionMerged,
		Changes: []types.FieldChange{
			{Field: "merged_from", Before: types.Null(), After: types.String(sourceID)},
		},
		Timestamp: now,
	})
}

// rewriteEdges redirects every edge touching source onto target,
// dropping any edge that would become a self-loop or an exact duplicate
// of one target already has.
func rewriteEdges(ctx context.Context, tx storage.Transaction, source, target string) error {
	out, err := tx.EdgesFrom(ctx, source, "")
	if err != nil {
		return err
	}
	for _, e := range out {
		if e.ToNode == target {
			continue
		}
		exists, err := tx.EdgeExists(ctx, target, e.ToNode, e.Type)
		if err != nil {
			return err
		}
		if !exists {
			if err := tx.AddEdge(ctx, &types.Edge{FromNode: target, ToNode: e.ToNode, Type: e.Type, CreatedAt: e.CreatedAt}); err != nil {
				return err
			}
		}
	}

	in, err := tx.EdgesTo(ctx, source, "")
	if err != nil {
		return err
	}
	for _, e := range in {
		if e.FromNode == target {
			continue
		}
		exists, err := tx.EdgeExists(ctx, e.FromNode, target, e.Type)
		if err != nil {
			return err
		}
		if !exists {
			if err := tx.AddEdge(ctx, &types.Edge{FromNode: e.FromNode, ToNode: target, Type: e.Type, CreatedAt: e.CreatedAt}); err != nil {
				return err
			}
		}
	}
	return nil
}

func purgeNodeEdgesAndEvents(ctx context.Context, tx storage.Transaction, id string) error {
	out, err := tx.EdgesFrom(ctx, id, "")
	if err != nil {
		return err
	}
	for _, e := range out {
		if err := tx.RemoveEdge(ctx, e.FromNode, e.ToNode, e.Type); err != nil {
			return err
		}
	}
	in, err := tx.EdgesTo(ctx, id, "")
	if err != nil {
		return err
	}
	for _, e := range in {
		if err := tx.RemoveEdge(ctx, e.FromNode, e.ToNode, e.Type); err != nil {
			return err
		}
	}
	// Events are append-only in normal operation; deletion here is the one
	// exception (§3: "deleted only when their node is deleted"), covering
	// both restructure{delete} and the source side of restructure{merge}.
	return tx.DeleteEventsForNode(ctx, id)
}

// DropNode marks node and every descendant resolved with a synthetic
// "dropped" evidence entry carrying reason, emitting a dropped event per
// node. Returns the ids affected so the caller can fold them into its
// newly-resolved accounting for the subsequent newly-actionable pass.
func DropNode(ctx context.Context, tx storage.Transaction, nodeID, reason, agent string, now time.Time) ([]string, error) {
	ids, err := tx.SubtreeIDs(ctx, nodeID)
	if err != nil {
		return nil, engineerr.NodeNotFound(nodeID)
	}
	var affected []string
	for _, id := range ids {
		n, err := tx.GetNode(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("drop %s: %w", nodeID, err)
		}
		if n.Resolved {
			continue
		}
		n.Evidence = append(n.Evidence, types.Evidence{Type: types.EvidenceDropped, Ref: reason, Agent: agent, Timestamp: now})
		n.Resolved = true
		n.Rev++
		n.UpdatedAt = now
		if err := tx.UpdateNode(ctx, n); err != nil {
			return nil, fmt.Errorf("drop %s: %w", nodeID, err)
		}
		if err := tx.LogEvent(ctx, &types.Event{
			NodeID: id,
			Agent:  agent,
			Action: types.ActionDropped,
			Changes: []types.FieldChange{
				{Field: "resolved", Before: types.Bool(false), After: types.Bool(true)},
				{Field: "blocked_reason", Before: types.Null(), After: types.String(reason)},
			},
			Timestamp: now,
		}); err != nil {
			return nil, fmt.Errorf("drop %s: log event %s: %w", nodeID, id, err)
		}
		affected = append(affected, id)
	}
	return affected, nil
}

// DeleteNode hard-deletes node and its whole subtree, cleaning up edges
// and events first for referential integrity. Dependents outside the
// subtree keep their depends_on edges removed (their target no longer
// exists), which implicitly unblocks them without deleting the dependent
// nodes themselves.
func DeleteNode(ctx context.Context, tx storage.Transaction, nodeID, agent string, now time.Time) ([]string, error) {
	ids, err := tx.SubtreeIDs(ctx, nodeID)
	if err != nil {
		return nil, engineerr.NodeNotFound(nodeID)
	}

	// Children before parents so no row ever has a parent pointer to an
	// already-deleted node while it's still briefly present itself.
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if err := purgeNodeEdgesAndEvents(ctx, tx, id); err != nil {
			return nil, fmt.Errorf("delete %s: %w", nodeID, err)
		}
		if err := tx.DeleteNode(ctx, id); err != nil {
			return nil, fmt.Errorf("delete %s: %w", nodeID, err)
		}
	}

	return ids, tx.LogEvent(ctx, &types.Event{
		NodeID: nodeID,
		Agent:  agent,
		Action: types.ActionDeleted,
		Changes: []types.FieldChange{
			{Field: "subtree_size", Before: types.Null(), After: types.Int(int64(len(ids)))},
		},
		Timestamp: now,
	})
}
