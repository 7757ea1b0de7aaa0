package handlers

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/andburman/graphkeep/internal/knowledge"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// ResolveParams is graph_resolve's input: a convenience wrapper over
// graph_update that assembles evidence and optionally files a knowledge
// entry in the same call.
type ResolveParams struct {
	NodeID                string
	Reason                string
	Commit                string // explicit commit ref; auto-collected from git log when empty
	WriteKnowledgeKey     string
	WriteKnowledgeContent string
	Category              types.KnowledgeCategory
	Agent                 string
}

// ResolveResult is graph_resolve's output.
type ResolveResult struct {
	Update    *UpdateResult          `json:"update"`
	Knowledge *knowledge.WriteResult `json:"knowledge,omitempty"`
}

// Resolve implements graph_resolve: assembles a note plus git evidence
// (the caller's explicit commit, or every commit since the node's claim
// timestamp when none is given) and calls Update with resolved=true; when
// a knowledge key is supplied it writes that entry in a second
// transaction, attaching this node as its source.
func (h *Handlers) Resolve(ctx context.Context, p ResolveParams) (*ResolveResult, error) {
	if err := requireNonEmpty("node_id", p.NodeID); err != nil {
		return nil, err
	}
	n, err := h.store().GetNode(ctx, p.NodeID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", p.NodeID, err)
	}

	now := timeNow()
	var evidence []types.Evidence
	if p.Reason != "" {
		evidence = append(evidence, types.Evidence{Type: types.EvidenceNote, Ref: p.Reason, Agent: p.Agent, Timestamp: now})
	}

	if p.Commit != "" {
		evidence = append(evidence, types.Evidence{Type: types.EvidenceGit, Ref: p.Commit, Agent: p.Agent, Timestamp: now})
	} else if claimedAt := n.ClaimedAt(); !claimedAt.IsZero() {
		for _, commit := range commitsSince(claimedAt) {
			evidence = append(evidence, types.Evidence{Type: types.EvidenceGit, Ref: commit, Agent: p.Agent, Timestamp: now})
		}
	}

	resolved := true
	updateResult, err := h.Update(ctx, UpdateParams{
		Updates: []UpdateEntry{{
			NodeID:      p.NodeID,
			Resolved:    &resolved,
			AddEvidence: evidence,
		}},
		Agent: p.Agent,
	})
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{Update: updateResult}
	if p.WriteKnowledgeKey == "" {
		return result, nil
	}

	wNow := timeNow()
	var wr *knowledge.WriteResult
	if err := h.runTx(ctx, func(tx storage.Transaction) error {
		var txErr error
		wr, txErr = knowledge.Write(ctx, tx, knowledge.WriteParams{
			Project:     n.Project,
			Key:         p.WriteKnowledgeKey,
			Content:     p.WriteKnowledgeContent,
			Category:    p.Category,
			SourceNode:  p.NodeID,
			Agent:       p.Agent,
			ClaimedNode: p.NodeID,
		}, wNow)
		return txErr
	}); err != nil {
		return nil, fmt.Errorf("resolve %s: knowledge write: %w", p.NodeID, err)
	}
	result.Knowledge = wr
	return result, nil
}

// commitsSince shells out to git log for one-line commit summaries since
// t, the auto-collection fallback graph_resolve uses when the caller
// supplies no explicit commit (grounded on the git package's exec.Command
// pattern). Returns nil, not an error, when run outside a git repository
// or when there is nothing new — resolving a node never hard-depends on
// git being present.
func commitsSince(t time.Time) []string {
	cmd := exec.Command("git", "log", "--since="+t.Format(time.RFC3339), "--oneline")
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	var commits []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			commits = append(commits, line)
		}
	}
	return commits
}
