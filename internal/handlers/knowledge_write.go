package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/knowledge"
	"github.com/andburman/graphkeep/internal/storage"
)

// KnowledgeWriteParams is graph_knowledge_write's input.
type KnowledgeWriteParams = knowledge.WriteParams

// KnowledgeWrite implements graph_knowledge_write: create-or-update on a
// project-scoped key, returning the entry plus any similarity/overlap
// warnings.
func (h *Handlers) KnowledgeWrite(ctx context.Context, p KnowledgeWriteParams) (*knowledge.WriteResult, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("key", p.Key); err != nil {
		return nil, err
	}
	if p.Content == "" {
		return nil, engineerr.New(engineerr.CodeInvalidInput, "knowledge entry has no content", "supply non-empty content")
	}

	now := timeNow()
	var result *knowledge.WriteResult
	err := h.runTx(ctx, func(tx storage.Transaction) error {
		var err error
		result, err = knowledge.Write(ctx, tx, p, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge write %s/%s: %w", p.Project, p.Key, err)
	}
	return result, nil
}
