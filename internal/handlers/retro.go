package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/knowledge"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// RetroParams is graph_retro's input.
type RetroParams struct {
	Project  string
	Findings string
	Agent    string
}

// RetroResult is graph_retro's output.
type RetroResult struct {
	ResolvedSince     []*types.Node          `json:"resolved_since"`
	KnowledgeExcerpts []*types.KnowledgeEntry `json:"knowledge_excerpts,omitempty"`
	Entry             *types.KnowledgeEntry   `json:"entry"`
}

// Retro implements graph_retro: gathers every node resolved and every
// knowledge entry touched since the project's last retro-* entry, then
// files findings as a new retro-* knowledge entry so the next call has a
// fresh watermark.
func (h *Handlers) Retro(ctx context.Context, p RetroParams) (*RetroResult, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	if p.Findings == "" {
		return nil, engineerr.New(engineerr.CodeInvalidInput, "retro findings cannot be empty", "summarize what happened since the last retro")
	}

	store := h.store()
	_, all, err := findRootAndAll(ctx, store, p.Project)
	if err != nil {
		return nil, err
	}

	lastRetro, err := lastRetroTime(ctx, store, p.Project)
	if err != nil {
		return nil, fmt.Errorf("retro %s: %w", p.Project, err)
	}

	var resolvedSince []*types.Node
	for _, n := range all {
		if n.Resolved && n.UpdatedAt.After(lastRetro) {
			resolvedSince = append(resolvedSince, n)
		}
	}

	entries, err := store.ListKnowledge(ctx, p.Project)
	if err != nil {
		return nil, fmt.Errorf("retro %s: %w", p.Project, err)
	}
	var touched []*types.KnowledgeEntry
	for _, e := range entries {
		if e.UpdatedAt.After(lastRetro) {
			touched = append(touched, e)
		}
	}

	now := timeNow()
	key := fmt.Sprintf("retro-%s", now.Format("2006-01-02T15-04-05"))
	var wr *knowledge.WriteResult
	if err := h.runTx(ctx, func(tx storage.Transaction) error {
		var err error
		wr, err = knowledge.Write(ctx, tx, knowledge.WriteParams{
			Project:  p.Project,
			Key:      key,
			Content:  p.Findings,
			Category: types.CategoryDiscovery,
			Agent:    p.Agent,
		}, now)
		return err
	}); err != nil {
		return nil, fmt.Errorf("retro %s: %w", p.Project, err)
	}

	return &RetroResult{ResolvedSince: resolvedSince, KnowledgeExcerpts: touched, Entry: wr.Entry}, nil
}

// lastRetroTime returns the timestamp of the project's most recent
// retro-* knowledge entry, or the zero time if none exists yet.
func lastRetroTime(ctx context.Context, store storage.Storage, project string) (time.Time, error) {
	log, err := store.ListKnowledgeLog(ctx, project, 0)
	if err != nil {
		return time.Time{}, err
	}
	var last time.Time
	for _, e := range log {
		if e.Action == types.KnowledgeLogCreated && len(e.Key) >= 6 && e.Key[:6] == "retro-" && e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last, nil
}
