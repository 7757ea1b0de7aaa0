package signals

import (
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// IssueKind classifies an integrity finding.
type IssueKind string

const (
	IssueWeakEvidence IssueKind = "weak_evidence"
	IssueStaleClaim   IssueKind = "stale_claim"
	IssueOrphan       IssueKind = "orphan"
	IssueStaleTask    IssueKind = "stale_task"
)

// Issue is a single integrity audit finding against one node.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	NodeID  string    `json:"node_id"`
	Summary string    `json:"summary"`
	Detail  string    `json:"detail"`
}

// Integrity is the audit result for a project: a 0-100 score and the
// individual findings that reduced it.
type Integrity struct {
	Score  int     `json:"score"`
	Issues []Issue `json:"issues"`
}

const (
	staleClaimWindow = 24 * time.Hour
	staleTaskWindow  = 7 * 24 * time.Hour
)

// ComputeIntegrity scans resolved nodes for weak evidence, unresolved
// nodes for stale claims and stale unclaimed tasks, and resolved parents
// for unresolved children (orphans).
func ComputeIntegrity(all []*types.Node, now time.Time) Integrity {
	byID := make(map[string]*types.Node, len(all))
	for _, n := range all {
		byID[n.ID] = n
	}

	var issues []Issue
	for _, n := range all {
		if n.Resolved {
			if len(n.Evidence) == 0 {
				issues = append(issues, Issue{Kind: IssueWeakEvidence, NodeID: n.ID, Summary: n.Summary, Detail: "resolved with no evidence"})
			} else if !n.HasEvidenceType(types.EvidenceGit) && len(n.ContextLinks) == 0 {
				issues = append(issues, Issue{Kind: IssueWeakEvidence, NodeID: n.ID, Summary: n.Summary, Detail: "no git evidence and no context links"})
			}
			continue
		}

		if claimedBy := n.ClaimedBy(); claimedBy != "" {
			if age := now.Sub(n.ClaimedAt()); age > staleClaimWindow {
				issues = append(issues, Issue{Kind: IssueStaleClaim, NodeID: n.ID, Summary: n.Summary,
					Detail: fmt.Sprintf("claimed by %s for %s", claimedBy, age.Round(time.Hour))})
			}
		} else if !n.Blocked && now.Sub(n.UpdatedAt) > staleTaskWindow {
			issues = append(issues, Issue{Kind: IssueStaleTask, NodeID: n.ID, Summary: n.Summary,
				Detail: fmt.Sprintf("unresolved, unblocked, unclaimed for %s", now.Sub(n.UpdatedAt).Round(time.Hour))})
		}
	}

	for _, n := range all {
		if !n.Resolved {
			continue
		}
		for _, c := range all {
			if c.Parent == n.ID && !c.Resolved {
				issues = append(issues, Issue{Kind: IssueOrphan, NodeID: c.ID, Summary: c.Summary,
					Detail: fmt.Sprintf("unresolved child of resolved parent %s", n.ID)})
			}
		}
	}

	score := 100 - len(issues)*100/max(len(all), 1)
	if score < 0 {
		score = 0
	}
	return Integrity{Score: score, Issues: issues}
}
