package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

const defaultEventPageSize = 50

// LogEvent appends an immutable audit record. Events are never updated or
// deleted after insert (§9: the event log is the canonical record of what
// happened).
func (s *SQLiteStorage) LogEvent(ctx context.Context, e *types.Event) error {
	return logEvent(ctx, s.db, e)
}

func logEvent(ctx context.Context, q execer, e *types.Event) error {
	changesJSON, err := json.Marshal(nonNilChanges(e.Changes))
	if err != nil {
		return fmt.Errorf("encode event changes: %w", err)
	}
	res, err := q.ExecContext(ctx, `
INSERT INTO events (node_id, agent, action, changes, decision_context, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`,
		e.NodeID, e.Agent, e.Action, string(changesJSON), e.DecisionContext, e.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return wrapDBError(fmt.Sprintf("log event for %s", e.NodeID), err)
	}
	id, err := res.LastInsertId()
	if err == nil {
		e.ID = id
	}
	return nil
}

func nonNilChanges(cs []types.FieldChange) []types.FieldChange {
	if cs == nil {
		return []types.FieldChange{}
	}
	return cs
}

// GetEvents returns a newest-first page of events for a node. cursor, when
// non-empty, is the event ID of the last item seen on the previous page
// (an opaque decimal string); results strictly precede it.
func (s *SQLiteStorage) GetEvents(ctx context.Context, nodeID string, limit int, cursor string) (types.EventPage, error) {
	return getEvents(ctx, s.db, nodeID, limit, cursor)
}

func getEvents(ctx context.Context, q execer, nodeID string, limit int, cursor string) (types.EventPage, error) {
	if limit <= 0 {
		limit = defaultEventPageSize
	}
	var before int64 = 1<<63 - 1
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return types.EventPage{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		before = parsed
	}

	rows, err := q.QueryContext(ctx, `
SELECT id, node_id, agent, action, changes, decision_context, timestamp
FROM events
WHERE node_id = ? AND id < ?
ORDER BY id DESC
LIMIT ?`, nodeID, before, limit+1)
	if err != nil {
		return types.EventPage{}, wrapDBError(fmt.Sprintf("get events for %s", nodeID), err)
	}
	defer func() { _ = rows.Close() }()

	var events []types.Event
	for rows.Next() {
		var ev types.Event
		var changesJSON, ts string
		if err := rows.Scan(&ev.ID, &ev.NodeID, &ev.Agent, &ev.Action, &changesJSON, &ev.DecisionContext, &ts); err != nil {
			return types.EventPage{}, fmt.Errorf("scan event: %w", err)
		}
		if changesJSON != "" {
			if err := json.Unmarshal([]byte(changesJSON), &ev.Changes); err != nil {
				return types.EventPage{}, fmt.Errorf("decode event changes: %w", err)
			}
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return types.EventPage{}, fmt.Errorf("decode event timestamp: %w", err)
		}
		ev.Timestamp = parsed
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return types.EventPage{}, fmt.Errorf("get events for %s: %w", nodeID, err)
	}

	page := types.EventPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.NextCursor = strconv.FormatInt(page.Events[len(page.Events)-1].ID, 10)
	}
	return page, nil
}

// DeleteEventsForNode removes every event recorded against nodeID. The
// event log is append-only in normal operation; this is the one exception,
// used when the node itself is deleted (§3: events "are deleted only when
// their node is deleted").
func (s *SQLiteStorage) DeleteEventsForNode(ctx context.Context, nodeID string) error {
	return deleteEventsForNode(ctx, s.db, nodeID)
}

func deleteEventsForNode(ctx context.Context, q execer, nodeID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM events WHERE node_id = ?`, nodeID)
	return wrapDBError(fmt.Sprintf("delete events for %s", nodeID), err)
}
