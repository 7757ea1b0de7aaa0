package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/knowledge"
	"github.com/andburman/graphkeep/internal/types"
)

// KnowledgeReadParams is graph_knowledge_read's input. Key empty lists
// every entry for the project.
type KnowledgeReadParams struct {
	Project string
	Key     string
}

// KnowledgeRead implements graph_knowledge_read: fetches one or every
// entry for a project, decorated with days-since-update and whether the
// source node (if any) is resolved.
func (h *Handlers) KnowledgeRead(ctx context.Context, p KnowledgeReadParams) ([]*types.KnowledgeEntry, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	store := h.store()
	entries, err := knowledge.Read(ctx, store, p.Project, p.Key, func(id string) (bool, bool) {
		n, err := store.GetNode(ctx, id)
		if err != nil {
			return false, false
		}
		return n.Resolved, true
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge read %s: %w", p.Project, err)
	}
	return entries, nil
}
