package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/andburman/graphkeep/internal/storage"
)

// execer is satisfied by both *sql.DB and *sql.Conn, letting the node/edge/
// event/knowledge query helpers be written once and shared between the
// auto-commit Storage methods and the dedicated-connection Transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ execer = (*sql.DB)(nil)
var _ execer = (*sql.Conn)(nil)

// sqlTx implements storage.Transaction over a dedicated connection that
// already has BEGIN IMMEDIATE in effect.
type sqlTx struct {
	conn *sql.Conn
}

var _ storage.Transaction = (*sqlTx)(nil)

// RunInTransaction acquires a dedicated connection (needed because BEGIN/
// COMMIT are issued as raw statements on that connection, and database/sql's
// pool would otherwise hand out different connections to different
// queries), begins an IMMEDIATE transaction with retry-on-busy, runs fn,
// and commits or rolls back depending on whether fn returned an error or
// panicked.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn); err != nil {
		return fmt.Errorf("begin immediate transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	tx := &sqlTx{conn: conn}

	if err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in transaction: %v", r)
				panic(r) // re-raise after the deferred ROLLBACK above runs
			}
		}()
		return fn(tx)
	}(); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// beginImmediateWithRetry starts an IMMEDIATE transaction, retrying with
// exponential backoff when SQLITE_BUSY indicates a concurrent writer
// (another process, since this engine is itself single-threaded per
// process) hasn't released the reserved lock yet.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusyErr(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}
