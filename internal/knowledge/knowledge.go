// Package knowledge implements the project-scoped key/content store: create
// or update on write, similarity detection against existing keys, and the
// append-only mutation log that backs retro/knowledge_audit staleness
// scoring.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// similarityThreshold is the longest-common-substring ratio above which
// two normalized keys are reported as similar.
const similarityThreshold = 0.6

// WriteResult carries the persisted entry plus the informational
// similarity/overlap warnings from spec §4.7. These never gate the write.
type WriteResult struct {
	Entry          *types.KnowledgeEntry
	SimilarKeys    []string
	CategoryClash  []string
	LoggedMutation bool
}

// WriteParams mirrors the knowledge_write handler's input.
type WriteParams struct {
	Project    string
	Key        string
	Content    string
	Category   types.KnowledgeCategory
	SourceNode string
	Agent      string
	// ClaimedNode is the caller's currently-claimed node, used to
	// auto-attach source_node when SourceNode is empty.
	ClaimedNode string
}

// Write creates or updates a project-scoped key. An update whose content is
// byte-identical to the stored content is a no-op on the mutation log
// (§9 open question, resolved: content equality never logs) but still
// returns the current entry and similarity scan.
func Write(ctx context.Context, tx storage.Transaction, p WriteParams, now time.Time) (*WriteResult, error) {
	if p.Category == "" {
		p.Category = types.CategoryGeneral
	}
	if !types.IsValidCategory(p.Category) {
		return nil, engineerr.New(engineerr.CodeInvalidCategory,
			fmt.Sprintf("category %q is not one of the recognized knowledge categories", p.Category),
			"use one of general, architecture, convention, decision, environment, api-contract, discovery")
	}

	sourceNode := p.SourceNode
	if sourceNode == "" {
		sourceNode = p.ClaimedNode
	}

	existing, err := tx.GetKnowledge(ctx, p.Project, p.Key)
	isCreate := err != nil

	var logAction types.KnowledgeLogAction
	var oldContent string
	skipLog := false
	if isCreate {
		logAction = types.KnowledgeLogCreated
	} else {
		logAction = types.KnowledgeLogUpdated
		oldContent = existing.Content
		if existing.Content == p.Content {
			skipLog = true
		}
	}

	entry := &types.KnowledgeEntry{
		Project:    p.Project,
		Key:        p.Key,
		Content:    p.Content,
		Category:   p.Category,
		SourceNode: sourceNode,
		CreatedBy:  p.Agent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if !isCreate {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
		entry.CreatedBy = existing.CreatedBy
	}

	if err := tx.WriteKnowledge(ctx, entry); err != nil {
		return nil, fmt.Errorf("write knowledge %s/%s: %w", p.Project, p.Key, err)
	}

	logged := false
	if !skipLog {
		if err := tx.LogKnowledgeMutation(ctx, &types.KnowledgeLogEntry{
			Project: p.Project, Key: p.Key, Action: logAction,
			OldContent: oldContent, NewContent: p.Content, Agent: p.Agent, Timestamp: now,
		}); err != nil {
			return nil, fmt.Errorf("log knowledge mutation %s/%s: %w", p.Project, p.Key, err)
		}
		logged = true
	}

	result := &WriteResult{Entry: entry, LoggedMutation: logged}
	if isCreate {
		all, err := tx.ListKnowledge(ctx, p.Project)
		if err != nil {
			return nil, fmt.Errorf("write knowledge %s/%s: similarity scan: %w", p.Project, p.Key, err)
		}
		result.SimilarKeys, result.CategoryClash = similarKeys(p.Key, p.Category, all)
	}

	return result, nil
}

// Read fetches a single entry (or every entry when key is empty),
// decorating each with DaysSinceUpdate and SourceNodeResolved.
func Read(ctx context.Context, tx storage.Transaction, project, key string, nodeResolved func(id string) (bool, bool)) ([]*types.KnowledgeEntry, error) {
	var entries []*types.KnowledgeEntry
	if key != "" {
		e, err := tx.GetKnowledge(ctx, project, key)
		if err != nil {
			return nil, engineerr.New(engineerr.CodeInvalidInput, fmt.Sprintf("no knowledge entry %s/%s", project, key), "list existing keys with graph_knowledge_read without a key")
		}
		entries = []*types.KnowledgeEntry{e}
	} else {
		all, err := tx.ListKnowledge(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("read knowledge %s: %w", project, err)
		}
		entries = all
	}

	for _, e := range entries {
		e.DaysSinceUpdate = int(time.Since(e.UpdatedAt).Hours() / 24)
		if e.SourceNode != "" && nodeResolved != nil {
			if resolved, ok := nodeResolved(e.SourceNode); ok {
				r := resolved
				e.SourceNodeResolved = &r
			}
		}
	}
	return entries, nil
}

// Delete removes an entry and logs its prior content.
func Delete(ctx context.Context, tx storage.Transaction, project, key, agent string, now time.Time) (*types.KnowledgeEntry, error) {
	deleted, err := tx.DeleteKnowledge(ctx, project, key)
	if err != nil {
		return nil, engineerr.New(engineerr.CodeInvalidInput, fmt.Sprintf("no knowledge entry %s/%s", project, key), "nothing to delete")
	}
	if err := tx.LogKnowledgeMutation(ctx, &types.KnowledgeLogEntry{
		Project: project, Key: key, Action: types.KnowledgeLogDeleted,
		OldContent: deleted.Content, Agent: agent, Timestamp: now,
	}); err != nil {
		return nil, fmt.Errorf("log knowledge deletion %s/%s: %w", project, key, err)
	}
	return deleted, nil
}

// Search returns entries whose key or content contains substr
// (case-insensitive).
func Search(ctx context.Context, tx storage.Transaction, project, substr string) ([]*types.KnowledgeEntry, error) {
	all, err := tx.ListKnowledge(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("search knowledge %s: %w", project, err)
	}
	needle := strings.ToLower(substr)
	var out []*types.KnowledgeEntry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Key), needle) || strings.Contains(strings.ToLower(e.Content), needle) {
			out = append(out, e)
		}
	}
	return out, nil
}

// OverlapCandidates scans every pair of entries in a project for keys the
// same similarity heuristic Write uses would flag, for knowledge_audit's
// informational overlap report. Each pair is reported once, ordered (a, b)
// by their position in entries.
func OverlapCandidates(entries []*types.KnowledgeEntry) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			similar, _ := similarKeys(entries[i].Key, entries[i].Category, entries[j:j+1])
			if len(similar) > 0 {
				pairs = append(pairs, [2]string{entries[i].Key, entries[j].Key})
			}
		}
	}
	return pairs
}

// normalizeKey strips hyphens/underscores and lowercases, so "auth-design"
// and "authdesign" compare equal under the similarity heuristic.
func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "-", "")
	k = strings.ReplaceAll(k, "_", "")
	return k
}

// similarKeys scans existing entries for keys that normalize close to
// newKey (longest-common-substring ratio, prefix, or substring match),
// and separately flags same-category entries among them.
func similarKeys(newKey string, category types.KnowledgeCategory, existing []*types.KnowledgeEntry) (similar, categoryClash []string) {
	normNew := normalizeKey(newKey)
	for _, e := range existing {
		if e.Key == newKey {
			continue
		}
		normExisting := normalizeKey(e.Key)
		if normExisting == normNew ||
			strings.HasPrefix(normExisting, normNew) || strings.HasPrefix(normNew, normExisting) ||
			strings.Contains(normExisting, normNew) || strings.Contains(normNew, normExisting) ||
			lcsRatio(normNew, normExisting) >= similarityThreshold {
			similar = append(similar, e.Key)
			if e.Category == category {
				categoryClash = append(categoryClash, e.Key)
			}
		}
	}
	return similar, categoryClash
}

// lcsRatio returns the longest common substring's length divided by the
// length of the longer input string.
func lcsRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := 0
	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
				if dp[i][j] > longest {
					longest = dp[i][j]
				}
			}
		}
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return float64(longest) / float64(maxLen)
}
