package sqlite

import (
	"context"

	"github.com/andburman/graphkeep/internal/types"
)

// The sqlTx methods below are thin adapters over the shared query helpers
// in nodes.go/edges.go/events.go/knowledge.go, run against the dedicated
// connection RunInTransaction acquired rather than the pool.

func (t *sqlTx) CreateNode(ctx context.Context, n *types.Node) error { return createNode(ctx, t.conn, n) }
func (t *sqlTx) GetNode(ctx context.Context, id string) (*types.Node, error) {
	return getNode(ctx, t.conn, id)
}
func (t *sqlTx) UpdateNode(ctx context.Context, n *types.Node) error { return updateNode(ctx, t.conn, n) }
func (t *sqlTx) DeleteNode(ctx context.Context, id string) error    { return deleteNode(ctx, t.conn, id) }
func (t *sqlTx) Children(ctx context.Context, id string) ([]*types.Node, error) {
	return children(ctx, t.conn, id)
}
func (t *sqlTx) Ancestors(ctx context.Context, id string) ([]*types.Node, error) {
	return ancestors(ctx, t.conn, id)
}
func (t *sqlTx) ProjectRoot(ctx context.Context, project string) (*types.Node, error) {
	return projectRoot(ctx, t.conn, project)
}
func (t *sqlTx) AllNodes(ctx context.Context, project string) ([]*types.Node, error) {
	return allNodes(ctx, t.conn, project)
}
func (t *sqlTx) SubtreeIDs(ctx context.Context, id string) ([]string, error) {
	return subtreeIDs(ctx, t.conn, id)
}

func (t *sqlTx) AddEdge(ctx context.Context, e *types.Edge) error { return addEdge(ctx, t.conn, e) }
func (t *sqlTx) RemoveEdge(ctx context.Context, from, to string, edgeType types.EdgeType) error {
	return removeEdge(ctx, t.conn, from, to, edgeType)
}
func (t *sqlTx) EdgesFrom(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error) {
	return edgesFrom(ctx, t.conn, id, edgeType)
}
func (t *sqlTx) EdgesTo(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error) {
	return edgesTo(ctx, t.conn, id, edgeType)
}
func (t *sqlTx) EdgeExists(ctx context.Context, from, to string, edgeType types.EdgeType) (bool, error) {
	return edgeExists(ctx, t.conn, from, to, edgeType)
}
func (t *sqlTx) ReachableFrom(ctx context.Context, start string, edgeType types.EdgeType) (map[string]bool, error) {
	return reachableFrom(ctx, t.conn, start, edgeType)
}

func (t *sqlTx) LogEvent(ctx context.Context, e *types.Event) error { return logEvent(ctx, t.conn, e) }
func (t *sqlTx) GetEvents(ctx context.Context, nodeID string, limit int, cursor string) (types.EventPage, error) {
	return getEvents(ctx, t.conn, nodeID, limit, cursor)
}
func (t *sqlTx) DeleteEventsForNode(ctx context.Context, nodeID string) error {
	return deleteEventsForNode(ctx, t.conn, nodeID)
}

func (t *sqlTx) WriteKnowledge(ctx context.Context, e *types.KnowledgeEntry) error {
	return writeKnowledge(ctx, t.conn, e)
}
func (t *sqlTx) GetKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error) {
	return getKnowledge(ctx, t.conn, project, key)
}
func (t *sqlTx) ListKnowledge(ctx context.Context, project string) ([]*types.KnowledgeEntry, error) {
	rows, err := t.conn.QueryContext(ctx, `
SELECT id, project, key, content, category, source_node, created_by, created_at, updated_at
FROM knowledge WHERE project = ? ORDER BY key ASC`, project)
	if err != nil {
		return nil, wrapDBError("list knowledge", err)
	}
	defer func() { _ = rows.Close() }()
	var out []*types.KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
func (t *sqlTx) DeleteKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error) {
	return deleteKnowledge(ctx, t.conn, project, key)
}
func (t *sqlTx) LogKnowledgeMutation(ctx context.Context, e *types.KnowledgeLogEntry) error {
	return logKnowledgeMutation(ctx, t.conn, e)
}
