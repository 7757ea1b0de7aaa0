package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andburman/graphkeep/internal/knowledge"
)

// KnowledgeAuditParams is graph_knowledge_audit's input.
type KnowledgeAuditParams struct {
	Project string
}

// AuditIssueKind classifies a knowledge_audit finding.
type AuditIssueKind string

const (
	AuditStale   AuditIssueKind = "stale"
	AuditOrphan  AuditIssueKind = "orphaned"
	AuditOverlap AuditIssueKind = "overlap_candidate"
)

// AuditIssue is one knowledge_audit finding.
type AuditIssue struct {
	Kind   AuditIssueKind `json:"kind"`
	Key    string         `json:"key"`
	Detail string         `json:"detail"`
}

// KnowledgeAuditResult is graph_knowledge_audit's output: the flagged
// issues plus compact pipe-delimited lines for every entry that raised none.
type KnowledgeAuditResult struct {
	Issues  []AuditIssue `json:"issues"`
	Healthy []string     `json:"healthy"`
}

const knowledgeStaleWindow = 90 * 24 * time.Hour

// KnowledgeAudit implements graph_knowledge_audit: flags stale entries
// (untouched past knowledgeStaleWindow), orphaned entries (whose
// source_node no longer exists), and overlap candidates (the same
// similarity heuristic knowledge_write's create path uses, applied
// pairwise across the whole project), with every unflagged entry rendered
// as a compact key|category|age line.
func (h *Handlers) KnowledgeAudit(ctx context.Context, p KnowledgeAuditParams) (*KnowledgeAuditResult, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	store := h.store()
	entries, err := store.ListKnowledge(ctx, p.Project)
	if err != nil {
		return nil, fmt.Errorf("knowledge audit %s: %w", p.Project, err)
	}

	now := timeNow()
	flagged := map[string]bool{}
	var issues []AuditIssue

	for _, e := range entries {
		if now.Sub(e.UpdatedAt) > knowledgeStaleWindow {
			issues = append(issues, AuditIssue{Kind: AuditStale, Key: e.Key,
				Detail: fmt.Sprintf("untouched for %s", now.Sub(e.UpdatedAt).Round(24*time.Hour))})
			flagged[e.Key] = true
		}
		if e.SourceNode != "" {
			if _, err := store.GetNode(ctx, e.SourceNode); err != nil {
				issues = append(issues, AuditIssue{Kind: AuditOrphan, Key: e.Key,
					Detail: fmt.Sprintf("source node %s no longer exists", e.SourceNode)})
				flagged[e.Key] = true
			}
		}
	}

	for _, pair := range knowledge.OverlapCandidates(entries) {
		issues = append(issues, AuditIssue{Kind: AuditOverlap, Key: pair[0],
			Detail: fmt.Sprintf("looks similar to %s", pair[1])})
		flagged[pair[0]] = true
		flagged[pair[1]] = true
	}

	var healthy []string
	for _, e := range entries {
		if flagged[e.Key] {
			continue
		}
		age := int(now.Sub(e.UpdatedAt).Hours() / 24)
		healthy = append(healthy, strings.Join([]string{e.Key, string(e.Category), fmt.Sprintf("%dd", age)}, "|"))
	}

	return &KnowledgeAuditResult{Issues: issues, Healthy: healthy}, nil
}

