package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

const nodeColumns = `id, rev, parent, project, summary, resolved, depth, discovery, blocked, blocked_reason, plan, state, properties, context_links, evidence, created_by, created_at, updated_at`

// CreateNode inserts a brand-new node row. Callers are expected to have
// already assigned n.ID, n.CreatedAt, n.UpdatedAt, and n.Rev (normally 1).
func (s *SQLiteStorage) CreateNode(ctx context.Context, n *types.Node) error {
	return createNode(ctx, s.db, n)
}

func createNode(ctx context.Context, q execer, n *types.Node) error {
	plan, state, props, links, evidence, err := encodeNodeJSON(n)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", n.ID, err)
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO nodes (id, rev, parent, project, summary, resolved, depth, discovery, blocked, blocked_reason, plan, state, properties, context_links, evidence, created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Rev, nullableString(n.Parent), n.Project, n.Summary, n.Resolved, n.Depth, string(n.Discovery),
		n.Blocked, n.BlockedReason, plan, state, props, links, evidence, n.CreatedBy,
		n.CreatedAt.Format(time.RFC3339Nano), n.UpdatedAt.Format(time.RFC3339Nano))
	return wrapDBError(fmt.Sprintf("create node %s", n.ID), err)
}

// GetNode fetches a single node by ID.
func (s *SQLiteStorage) GetNode(ctx context.Context, id string) (*types.Node, error) {
	return getNode(ctx, s.db, id)
}

func getNode(ctx context.Context, q execer, id string) (*types.Node, error) {
	row := q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get node %s", id), err)
	}
	return n, nil
}

// UpdateNode writes every field back, including a bumped rev. Optimistic
// concurrency (matching the caller-supplied expected rev) is enforced by
// the graph layer before this is called, via GetNode + compare; the SQL
// layer simply persists whatever Node it is handed.
func (s *SQLiteStorage) UpdateNode(ctx context.Context, n *types.Node) error {
	return updateNode(ctx, s.db, n)
}

func updateNode(ctx context.Context, q execer, n *types.Node) error {
	plan, state, props, links, evidence, err := encodeNodeJSON(n)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", n.ID, err)
	}
	res, err := q.ExecContext(ctx, `
UPDATE nodes SET rev = ?, parent = ?, project = ?, summary = ?, resolved = ?, depth = ?, discovery = ?,
	blocked = ?, blocked_reason = ?, plan = ?, state = ?, properties = ?, context_links = ?, evidence = ?,
	created_by = ?, updated_at = ?
WHERE id = ?`,
		n.Rev, nullableString(n.Parent), n.Project, n.Summary, n.Resolved, n.Depth, string(n.Discovery),
		n.Blocked, n.BlockedReason, plan, state, props, links, evidence, n.CreatedBy,
		n.UpdatedAt.Format(time.RFC3339Nano), n.ID)
	if err != nil {
		return wrapDBError(fmt.Sprintf("update node %s", n.ID), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node %s: %w", n.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update node %s: %w", n.ID, ErrNotFound)
	}
	return nil
}

// DeleteNode hard-deletes a single node row. Cascading to edges/events is
// the graph layer's responsibility (restructure.go), not this layer's.
func (s *SQLiteStorage) DeleteNode(ctx context.Context, id string) error {
	return deleteNode(ctx, s.db, id)
}

func deleteNode(ctx context.Context, q execer, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("delete node %s", id), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete node %s: %w", id, ErrNotFound)
	}
	return nil
}

// Children returns direct children of id, oldest first.
func (s *SQLiteStorage) Children(ctx context.Context, id string) ([]*types.Node, error) {
	return children(ctx, s.db, id)
}

func children(ctx context.Context, q execer, id string) ([]*types.Node, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE parent = ? ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("children of %s", id), err)
	}
	return scanNodes(rows)
}

// Ancestors returns the chain from id's immediate parent up to the project
// root, nearest first.
func (s *SQLiteStorage) Ancestors(ctx context.Context, id string) ([]*types.Node, error) {
	return ancestors(ctx, s.db, id)
}

func ancestors(ctx context.Context, q execer, id string) ([]*types.Node, error) {
	var out []*types.Node
	cur, err := getNode(ctx, q, id)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{cur.ID: true}
	for cur.Parent != "" {
		if seen[cur.Parent] {
			return nil, fmt.Errorf("ancestors of %s: parent cycle detected at %s", id, cur.Parent)
		}
		parent, err := getNode(ctx, q, cur.Parent)
		if err != nil {
			return nil, fmt.Errorf("ancestors of %s: %w", id, err)
		}
		out = append(out, parent)
		seen[parent.ID] = true
		cur = parent
	}
	return out, nil
}

// ProjectRoot returns the root node (depth 0, no parent) for a project.
func (s *SQLiteStorage) ProjectRoot(ctx context.Context, project string) (*types.Node, error) {
	return projectRoot(ctx, s.db, project)
}

func projectRoot(ctx context.Context, q execer, project string) (*types.Node, error) {
	row := q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE project = ? AND (parent IS NULL OR parent = '') ORDER BY created_at ASC LIMIT 1`, project)
	n, err := scanNode(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("project root %s", project), err)
	}
	return n, nil
}

// ListProjects aggregates per-project counts for open() (no project given)
// and status().
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]types.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT project,
	MIN(CASE WHEN parent IS NULL OR parent = '' THEN id END) AS root_id,
	COUNT(*) AS total,
	SUM(CASE WHEN resolved THEN 1 ELSE 0 END) AS resolved,
	SUM(CASE WHEN blocked AND NOT resolved THEN 1 ELSE 0 END) AS blocked
FROM nodes
GROUP BY project
ORDER BY project ASC`)
	if err != nil {
		return nil, wrapDBError("list projects", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.ProjectSummary
	for rows.Next() {
		var ps types.ProjectSummary
		var rootID sql.NullString
		if err := rows.Scan(&ps.Project, &rootID, &ps.TotalNodes, &ps.ResolvedNodes, &ps.BlockedNum); err != nil {
			return nil, fmt.Errorf("list projects: scan: %w", err)
		}
		ps.RootID = rootID.String
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// AllNodes returns every node in a project, unordered, for handlers that
// need to walk the whole tree in memory (actionability ranking, retro,
// status fan-out).
func (s *SQLiteStorage) AllNodes(ctx context.Context, project string) ([]*types.Node, error) {
	return allNodes(ctx, s.db, project)
}

func allNodes(ctx context.Context, q execer, project string) ([]*types.Node, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE project = ?`, project)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("all nodes %s", project), err)
	}
	return scanNodes(rows)
}

// SubtreeIDs returns id and every descendant's ID via an iterative
// breadth-first walk of the parent-child relationship.
func (s *SQLiteStorage) SubtreeIDs(ctx context.Context, id string) ([]string, error) {
	return subtreeIDs(ctx, s.db, id)
}

func subtreeIDs(ctx context.Context, q execer, id string) ([]string, error) {
	out := []string{id}
	frontier := []string{id}
	for len(frontier) > 0 {
		var next []string
		for _, parentID := range frontier {
			kids, err := children(ctx, q, parentID)
			if err != nil {
				return nil, fmt.Errorf("subtree of %s: %w", id, err)
			}
			for _, k := range kids {
				out = append(out, k.ID)
				next = append(next, k.ID)
			}
		}
		frontier = next
	}
	return out, nil
}

// --- JSON column encode/decode helpers -------------------------------------

func encodeNodeJSON(n *types.Node) (plan, state, props, links, evidence interface{}, err error) {
	planJSON, err := json.Marshal(nonNilStrings(n.Plan))
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	stateVal := n.State
	if stateVal.IsNull() {
		stateVal = types.Null()
	}
	stateJSON, err := json.Marshal(stateVal)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	propsSrc := n.Properties
	if propsSrc == nil {
		propsSrc = types.PropertyBag{}
	}
	propsJSON, err := json.Marshal(propsSrc)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	linksJSON, err := json.Marshal(nonNilStrings(n.ContextLinks))
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	evSrc := n.Evidence
	if evSrc == nil {
		evSrc = []types.Evidence{}
	}
	evJSON, err := json.Marshal(evSrc)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	return string(planJSON), string(stateJSON), string(propsJSON), string(linksJSON), string(evJSON), nil
}

func nonNilStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*types.Node, error) {
	var n types.Node
	var parent, discovery, blockedReason, createdBy sql.NullString
	var planJSON, stateJSON, propsJSON, linksJSON, evJSON sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&n.ID, &n.Rev, &parent, &n.Project, &n.Summary, &n.Resolved, &n.Depth, &discovery,
		&n.Blocked, &blockedReason, &planJSON, &stateJSON, &propsJSON, &linksJSON, &evJSON,
		&createdBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Parent = parent.String
	n.Discovery = types.Discovery(discovery.String)
	n.BlockedReason = blockedReason.String
	n.CreatedBy = createdBy.String

	if planJSON.Valid && planJSON.String != "" {
		if err := json.Unmarshal([]byte(planJSON.String), &n.Plan); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
	}
	if stateJSON.Valid && stateJSON.String != "" {
		if err := json.Unmarshal([]byte(stateJSON.String), &n.State); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
	}
	n.Properties = types.PropertyBag{}
	if propsJSON.Valid && propsJSON.String != "" {
		if err := json.Unmarshal([]byte(propsJSON.String), &n.Properties); err != nil {
			return nil, fmt.Errorf("decode properties: %w", err)
		}
	}
	if linksJSON.Valid && linksJSON.String != "" {
		if err := json.Unmarshal([]byte(linksJSON.String), &n.ContextLinks); err != nil {
			return nil, fmt.Errorf("decode context_links: %w", err)
		}
	}
	if evJSON.Valid && evJSON.String != "" {
		if err := json.Unmarshal([]byte(evJSON.String), &n.Evidence); err != nil {
			return nil, fmt.Errorf("decode evidence: %w", err)
		}
	}

	n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	n.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}

	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*types.Node, error) {
	defer func() { _ = rows.Close() }()
	var out []*types.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}
	return out, nil
}
