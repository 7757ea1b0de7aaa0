package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// AddEdge inserts a directed edge. The UNIQUE(from_node, to_node, type)
// constraint rejects an exact duplicate; callers translate that into
// engineerr.CodeDuplicateEdge.
func (s *SQLiteStorage) AddEdge(ctx context.Context, e *types.Edge) error {
	return addEdge(ctx, s.db, e)
}

func addEdge(ctx context.Context, q execer, e *types.Edge) error {
	res, err := q.ExecContext(ctx, `INSERT INTO edges (from_node, to_node, type, created_at) VALUES (?, ?, ?, ?)`,
		e.FromNode, e.ToNode, string(e.Type), e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return wrapDBError(fmt.Sprintf("add edge %s->%s (%s)", e.FromNode, e.ToNode, e.Type), err)
	}
	id, err := res.LastInsertId()
	if err == nil {
		e.ID = id
	}
	return nil
}

// RemoveEdge deletes a single typed edge.
func (s *SQLiteStorage) RemoveEdge(ctx context.Context, from, to string, edgeType types.EdgeType) error {
	return removeEdge(ctx, s.db, from, to, edgeType)
}

func removeEdge(ctx context.Context, q execer, from, to string, edgeType types.EdgeType) error {
	res, err := q.ExecContext(ctx, `DELETE FROM edges WHERE from_node = ? AND to_node = ? AND type = ?`, from, to, string(edgeType))
	if err != nil {
		return wrapDBError(fmt.Sprintf("remove edge %s->%s (%s)", from, to, edgeType), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove edge %s->%s: %w", from, to, err)
	}
	if affected == 0 {
		return fmt.Errorf("remove edge %s->%s: %w", from, to, ErrNotFound)
	}
	return nil
}

// EdgesFrom returns every edge of the given type originating at id. An
// empty edgeType matches every type.
func (s *SQLiteStorage) EdgesFrom(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error) {
	return edgesFrom(ctx, s.db, id, edgeType)
}

func edgesFrom(ctx context.Context, q execer, id string, edgeType types.EdgeType) ([]*types.Edge, error) {
	var rows *sql.Rows
	var err error
	if edgeType == "" {
		rows, err = q.QueryContext(ctx, `SELECT id, from_node, to_node, type, created_at FROM edges WHERE from_node = ? ORDER BY created_at ASC`, id)
	} else {
		rows, err = q.QueryContext(ctx, `SELECT id, from_node, to_node, type, created_at FROM edges WHERE from_node = ? AND type = ? ORDER BY created_at ASC`, id, string(edgeType))
	}
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("edges from %s", id), err)
	}
	return scanEdges(rows)
}

// EdgesTo returns every edge of the given type terminating at id.
func (s *SQLiteStorage) EdgesTo(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error) {
	return edgesTo(ctx, s.db, id, edgeType)
}

func edgesTo(ctx context.Context, q execer, id string, edgeType types.EdgeType) ([]*types.Edge, error) {
	var rows *sql.Rows
	var err error
	if edgeType == "" {
		rows, err = q.QueryContext(ctx, `SELECT id, from_node, to_node, type, created_at FROM edges WHERE to_node = ? ORDER BY created_at ASC`, id)
	} else {
		rows, err = q.QueryContext(ctx, `SELECT id, from_node, to_node, type, created_at FROM edges WHERE to_node = ? AND type = ? ORDER BY created_at ASC`, id, string(edgeType))
	}
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("edges to %s", id), err)
	}
	return scanEdges(rows)
}

// EdgeExists reports whether the exact (from, to, type) edge is present.
func (s *SQLiteStorage) EdgeExists(ctx context.Context, from, to string, edgeType types.EdgeType) (bool, error) {
	return edgeExists(ctx, s.db, from, to, edgeType)
}

func edgeExists(ctx context.Context, q execer, from, to string, edgeType types.EdgeType) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE from_node = ? AND to_node = ? AND type = ?`, from, to, string(edgeType)).Scan(&n)
	if err != nil {
		return false, wrapDBError(fmt.Sprintf("edge exists %s->%s", from, to), err)
	}
	return n > 0, nil
}

// ReachableFrom performs a forward DFS over edges of the given type
// starting at start, returning the set of nodes reachable (including
// start itself). The graph layer uses this to detect a depends_on cycle
// before inserting a new edge: if the prospective "to" node can already
// reach the prospective "from" node, adding from->to would close a cycle.
func (s *SQLiteStorage) ReachableFrom(ctx context.Context, start string, edgeType types.EdgeType) (map[string]bool, error) {
	return reachableFrom(ctx, s.db, start, edgeType)
}

func reachableFrom(ctx context.Context, q execer, start string, edgeType types.EdgeType) (map[string]bool, error) {
	visited := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out, err := edgesFrom(ctx, q, cur, edgeType)
		if err != nil {
			return nil, fmt.Errorf("reachable from %s: %w", start, err)
		}
		for _, e := range out {
			if !visited[e.ToNode] {
				visited[e.ToNode] = true
				stack = append(stack, e.ToNode)
			}
		}
	}
	return visited, nil
}

func scanEdges(rows *sql.Rows) ([]*types.Edge, error) {
	defer func() { _ = rows.Close() }()
	var out []*types.Edge
	for rows.Next() {
		var e types.Edge
		var typ, createdAt string
		if err := rows.Scan(&e.ID, &e.FromNode, &e.ToNode, &typ, &createdAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Type = types.EdgeType(typ)
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan edge: decode created_at: %w", err)
		}
		e.CreatedAt = ts
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}
	return out, nil
}
