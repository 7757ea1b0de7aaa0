package handlers

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/types"
)

// QueryResult is graph_query's output.
type QueryResult struct {
	Nodes      []*types.Node `json:"nodes"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Query implements graph_query: every filter dimension in
// types.QueryFilter applied in-memory over the project's node set (there
// is no indexed query path in the backing store; this mirrors the
// dependency-free approach the knowledge and plan heuristics already
// take), sorted per SortPolicy, and paginated on a (created_at, id) cursor.
func (h *Handlers) Query(ctx context.Context, f types.QueryFilter) (*QueryResult, error) {
	if err := requireNonEmpty("project", f.Project); err != nil {
		return nil, err
	}

	store := h.store()
	all, err := store.AllNodes(ctx, f.Project)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", f.Project, err)
	}

	var ancestorSet map[string]bool
	if f.Ancestor != "" {
		ancestorSet = descendantSet(all, f.Ancestor)
		ancestorSet[f.Ancestor] = true
	}

	byID := make(map[string]*types.Node, len(all))
	for _, n := range all {
		byID[n.ID] = n
	}

	var filtered []*types.Node
	for _, n := range all {
		if f.Resolved != nil && n.Resolved != *f.Resolved {
			continue
		}
		if f.HasPropertyPath {
			v, ok := n.Properties[f.PropertyPath]
			if !ok || !v.Equal(f.PropertyValue) {
				continue
			}
		}
		if f.Text != "" && !strings.Contains(strings.ToLower(n.Summary), strings.ToLower(f.Text)) {
			continue
		}
		if ancestorSet != nil && !ancestorSet[n.ID] {
			continue
		}
		if f.HasEvidenceType != "" && !n.HasEvidenceType(f.HasEvidenceType) {
			continue
		}
		if f.ClaimedByNull && n.ClaimedBy() != "" {
			continue
		}
		if f.ClaimedBy != "" && n.ClaimedBy() != f.ClaimedBy {
			continue
		}

		if f.IsLeaf != nil {
			isLeaf := true
			for _, c := range all {
				if c.Parent == n.ID {
					isLeaf = false
					break
				}
			}
			if isLeaf != *f.IsLeaf {
				continue
			}
		}
		if f.IsBlocked != nil {
			blocked, err := graph.IsBlocked(ctx, store, n, byID)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", f.Project, err)
			}
			if blocked != *f.IsBlocked {
				continue
			}
		}
		if f.IsActionable != nil {
			actionable, err := graph.IsActionable(ctx, store, n, all)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", f.Project, err)
			}
			if actionable != *f.IsActionable {
				continue
			}
		}

		filtered = append(filtered, n)
	}

	sortNodes(filtered, f.Sort)

	start := 0
	if f.Cursor != "" {
		cursorAt, cursorID, err := parseQueryCursor(f.Cursor)
		if err != nil {
			return nil, engineerr.New(engineerr.CodeInvalidInput, fmt.Sprintf("invalid cursor %q", f.Cursor), "pass back the next_cursor a previous query returned unchanged")
		}
		for i, n := range filtered {
			if n.CreatedAt.Equal(cursorAt) && n.ID == cursorID {
				start = i + 1
				break
			}
		}
	}
	if start > len(filtered) {
		start = len(filtered)
	}
	page := filtered[start:]

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var next string
	if len(page) > limit {
		last := page[limit-1]
		next = formatQueryCursor(last)
		page = page[:limit]
	}

	return &QueryResult{Nodes: page, NextCursor: next}, nil
}

// sortNodes orders nodes by the requested policy in place, breaking ties
// on (created_at, id) so pagination stays stable across calls.
func sortNodes(nodes []*types.Node, policy types.SortPolicy) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		switch policy {
		case types.SortDepth:
			if a.Depth != b.Depth {
				return a.Depth > b.Depth
			}
		case types.SortRecent:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		case types.SortReadiness:
			pa, pb := a.Priority(), b.Priority()
			if pa != pb {
				return pa > pb
			}
			if a.Depth != b.Depth {
				return a.Depth > b.Depth
			}
		case types.SortCreated:
			fallthrough
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func formatQueryCursor(n *types.Node) string {
	return strconv.FormatInt(n.CreatedAt.UnixNano(), 10) + ":" + n.ID
}

func parseQueryCursor(cursor string) (createdAt time.Time, id string, err error) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, nanos), parts[1], nil
}
