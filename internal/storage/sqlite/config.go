package sqlite

import (
	"context"
	"fmt"
)

// GetConfig reads a single engine-level config value (claim TTL override,
// default sort policy, etc). Returns ErrNotFound if the key was never set,
// letting callers fall back to a compiled-in default.
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", wrapDBError(fmt.Sprintf("get config %s", key), err)
	}
	return value, nil
}

// SetConfig upserts a single engine-level config value.
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO config (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return wrapDBError(fmt.Sprintf("set config %s", key), err)
	}
	return nil
}
