package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// WriteKnowledge upserts a project-scoped key, matching the UNIQUE(project,
// key) constraint: a second write to the same key updates content in
// place rather than creating a duplicate row (the knowledge layer decides
// create-vs-update semantics and passes the right ID/timestamps in).
func (s *SQLiteStorage) WriteKnowledge(ctx context.Context, e *types.KnowledgeEntry) error {
	return writeKnowledge(ctx, s.db, e)
}

func writeKnowledge(ctx context.Context, q execer, e *types.KnowledgeEntry) error {
	category := e.Category
	if category == "" {
		category = types.CategoryGeneral
	}
	res, err := q.ExecContext(ctx, `
INSERT INTO knowledge (project, key, content, category, source_node, created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project, key) DO UPDATE SET
	content = excluded.content,
	category = excluded.category,
	source_node = excluded.source_node,
	updated_at = excluded.updated_at`,
		e.Project, e.Key, e.Content, string(category), nullableString(e.SourceNode), e.CreatedBy,
		e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return wrapDBError(fmt.Sprintf("write knowledge %s/%s", e.Project, e.Key), err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		e.ID = id
	}
	return nil
}

// GetKnowledge fetches a single entry by project+key.
func (s *SQLiteStorage) GetKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error) {
	return getKnowledge(ctx, s.db, project, key)
}

func getKnowledge(ctx context.Context, q execer, project, key string) (*types.KnowledgeEntry, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, project, key, content, category, source_node, created_by, created_at, updated_at
FROM knowledge WHERE project = ? AND key = ?`, project, key)
	e, err := scanKnowledge(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get knowledge %s/%s", project, key), err)
	}
	return e, nil
}

// ListKnowledge returns every entry for a project, key ascending.
func (s *SQLiteStorage) ListKnowledge(ctx context.Context, project string) ([]*types.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, project, key, content, category, source_node, created_by, created_at, updated_at
FROM knowledge WHERE project = ? ORDER BY key ASC`, project)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("list knowledge %s", project), err)
	}
	defer func() { _ = rows.Close() }()
	var out []*types.KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("list knowledge %s: %w", project, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list knowledge %s: %w", project, err)
	}
	return out, nil
}

// DeleteKnowledge removes an entry and returns the row as it existed, so
// the caller can log a "deleted" knowledge_log entry with old_content.
func (s *SQLiteStorage) DeleteKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error) {
	return deleteKnowledge(ctx, s.db, project, key)
}

func deleteKnowledge(ctx context.Context, q execer, project, key string) (*types.KnowledgeEntry, error) {
	existing, err := getKnowledge(ctx, q, project, key)
	if err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM knowledge WHERE project = ? AND key = ?`, project, key); err != nil {
		return nil, wrapDBError(fmt.Sprintf("delete knowledge %s/%s", project, key), err)
	}
	return existing, nil
}

// LogKnowledgeMutation appends to the append-only knowledge mutation log.
func (s *SQLiteStorage) LogKnowledgeMutation(ctx context.Context, e *types.KnowledgeLogEntry) error {
	return logKnowledgeMutation(ctx, s.db, e)
}

func logKnowledgeMutation(ctx context.Context, q execer, e *types.KnowledgeLogEntry) error {
	res, err := q.ExecContext(ctx, `
INSERT INTO knowledge_log (project, key, action, old_content, new_content, agent, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Project, e.Key, string(e.Action), nullableString(e.OldContent), nullableString(e.NewContent),
		e.Agent, e.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return wrapDBError(fmt.Sprintf("log knowledge mutation %s/%s", e.Project, e.Key), err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListKnowledgeLog returns mutation log entries for a project since a given
// unix-nano timestamp (0 for all), oldest first.
func (s *SQLiteStorage) ListKnowledgeLog(ctx context.Context, project string, since int64) ([]types.KnowledgeLogEntry, error) {
	var sinceTime time.Time
	if since > 0 {
		sinceTime = time.Unix(0, since)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, project, key, action, old_content, new_content, agent, timestamp
FROM knowledge_log WHERE project = ? AND timestamp >= ? ORDER BY id ASC`,
		project, sinceTime.Format(time.RFC3339Nano))
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("list knowledge log %s", project), err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.KnowledgeLogEntry
	for rows.Next() {
		var e types.KnowledgeLogEntry
		var oldContent, newContent sql.NullString
		var ts string
		if err := rows.Scan(&e.ID, &e.Project, &e.Key, &e.Action, &oldContent, &newContent, &e.Agent, &ts); err != nil {
			return nil, fmt.Errorf("list knowledge log %s: scan: %w", project, err)
		}
		e.OldContent = oldContent.String
		e.NewContent = newContent.String
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("list knowledge log %s: decode timestamp: %w", project, err)
		}
		e.Timestamp = parsed
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list knowledge log %s: %w", project, err)
	}
	return out, nil
}

func scanKnowledge(row rowScanner) (*types.KnowledgeEntry, error) {
	var e types.KnowledgeEntry
	var sourceNode sql.NullString
	var category, createdAt, updatedAt string
	if err := row.Scan(&e.ID, &e.Project, &e.Key, &e.Content, &category, &sourceNode, &e.CreatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Category = types.KnowledgeCategory(category)
	e.SourceNode = sourceNode.String
	parsedCreated, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	e.CreatedAt = parsedCreated
	parsedUpdated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}
	e.UpdatedAt = parsedUpdated
	e.DaysSinceUpdate = int(time.Since(parsedUpdated).Hours() / 24)
	return &e, nil
}
