package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/knowledge"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// KnowledgeDeleteParams is graph_knowledge_delete's input.
type KnowledgeDeleteParams struct {
	Project string
	Key     string
	Agent   string
}

// KnowledgeDelete implements graph_knowledge_delete: removes an entry and
// logs its prior content to the mutation log.
func (h *Handlers) KnowledgeDelete(ctx context.Context, p KnowledgeDeleteParams) (*types.KnowledgeEntry, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("key", p.Key); err != nil {
		return nil, err
	}

	now := timeNow()
	var deleted *types.KnowledgeEntry
	err := h.runTx(ctx, func(tx storage.Transaction) error {
		var err error
		deleted, err = knowledge.Delete(ctx, tx, p.Project, p.Key, p.Agent, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge delete %s/%s: %w", p.Project, p.Key, err)
	}
	return deleted, nil
}
