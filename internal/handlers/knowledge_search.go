package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/knowledge"
	"github.com/andburman/graphkeep/internal/types"
)

// KnowledgeSearchParams is graph_knowledge_search's input.
type KnowledgeSearchParams struct {
	Project string
	Query   string
}

// KnowledgeSearch implements graph_knowledge_search: a case-insensitive
// substring match over every entry's key and content.
func (h *Handlers) KnowledgeSearch(ctx context.Context, p KnowledgeSearchParams) ([]*types.KnowledgeEntry, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("query", p.Query); err != nil {
		return nil, err
	}
	entries, err := knowledge.Search(ctx, h.store(), p.Project, p.Query)
	if err != nil {
		return nil, fmt.Errorf("knowledge search %s: %w", p.Project, err)
	}
	return entries, nil
}
