package signals

import (
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// ChecklistStatus is the traffic-light state of one rehydrate checklist item.
type ChecklistStatus string

const (
	StatusPass           ChecklistStatus = "pass"
	StatusWarn           ChecklistStatus = "warn"
	StatusActionRequired ChecklistStatus = "action_required"
)

// ChecklistItem is one entry of the rehydrate checklist onboard() returns
// to orient an agent picking up a project cold.
type ChecklistItem struct {
	Check   string          `json:"check"`
	Status  ChecklistStatus `json:"status"`
	Message string          `json:"message"`
	Action  string          `json:"action,omitempty"`
}

// ComputeChecklist builds the rehydrate checklist: evidence review,
// knowledge review, blocker confirmation, staleness, claimed-but-unresolved,
// pending verification, missing context links, and next-action readiness.
func ComputeChecklist(all []*types.Node, knowledge []*types.KnowledgeEntry, agent string, now time.Time) []ChecklistItem {
	var items []ChecklistItem

	weak := 0
	for _, n := range all {
		if n.Resolved && len(n.Evidence) == 0 {
			weak++
		}
	}
	if weak > 0 {
		items = append(items, ChecklistItem{Check: "evidence_review", Status: StatusWarn,
			Message: fmt.Sprintf("%d resolved node(s) have no evidence", weak),
			Action:  "review resolved nodes and backfill evidence via graph_update"})
	} else {
		items = append(items, ChecklistItem{Check: "evidence_review", Status: StatusPass, Message: "all resolved nodes carry evidence"})
	}

	if len(knowledge) == 0 && len(all) > 0 {
		items = append(items, ChecklistItem{Check: "knowledge_review", Status: StatusWarn,
			Message: "no knowledge entries recorded for this project",
			Action:  "write down decisions and gotchas via knowledge_write as you go"})
	} else {
		items = append(items, ChecklistItem{Check: "knowledge_review", Status: StatusPass,
			Message: fmt.Sprintf("%d knowledge entr(y/ies) to review", len(knowledge))})
	}

	blocked := 0
	for _, n := range all {
		if n.Blocked && !n.Resolved {
			blocked++
		}
	}
	if blocked > 0 {
		items = append(items, ChecklistItem{Check: "blocker_confirmation", Status: StatusActionRequired,
			Message: fmt.Sprintf("%d node(s) are manually blocked", blocked),
			Action:  "confirm blockers are still valid or clear them via graph_update"})
	} else {
		items = append(items, ChecklistItem{Check: "blocker_confirmation", Status: StatusPass, Message: "no manual blockers"})
	}

	var lastActivity time.Time
	for _, n := range all {
		if n.UpdatedAt.After(lastActivity) {
			lastActivity = n.UpdatedAt
		}
	}
	if !lastActivity.IsZero() && now.Sub(lastActivity) > 3*24*time.Hour {
		items = append(items, ChecklistItem{Check: "staleness", Status: StatusWarn,
			Message: fmt.Sprintf("no activity for %s", now.Sub(lastActivity).Round(time.Hour)),
			Action:  "confirm the project is still active before continuing"})
	} else {
		items = append(items, ChecklistItem{Check: "staleness", Status: StatusPass, Message: "recent activity present"})
	}

	claimedByOthers, claimedByMe := 0, 0
	for _, n := range all {
		if n.Resolved {
			continue
		}
		switch claimedBy := n.ClaimedBy(); {
		case claimedBy == "":
		case claimedBy == agent:
			claimedByMe++
		default:
			claimedByOthers++
		}
	}
	switch {
	case claimedByOthers > 0:
		items = append(items, ChecklistItem{Check: "claimed_but_unresolved", Status: StatusWarn,
			Message: fmt.Sprintf("%d node(s) claimed by other agents are still unresolved", claimedByOthers),
			Action:  "check in with the claiming agent or reclaim after the TTL expires"})
	case claimedByMe > 0:
		items = append(items, ChecklistItem{Check: "claimed_but_unresolved", Status: StatusPass,
			Message: fmt.Sprintf("%s holds %d unresolved claim(s)", agent, claimedByMe)})
	default:
		items = append(items, ChecklistItem{Check: "claimed_but_unresolved", Status: StatusPass, Message: "no stuck claims"})
	}

	needsVerification := 0
	for _, n := range all {
		if n.NeedsVerification() {
			needsVerification++
		}
	}
	if needsVerification > 0 {
		items = append(items, ChecklistItem{Check: "pending_verification", Status: StatusActionRequired,
			Message: fmt.Sprintf("%d node(s) flagged _needs_verification", needsVerification),
			Action:  "verify and clear the flag via graph_update"})
	} else {
		items = append(items, ChecklistItem{Check: "pending_verification", Status: StatusPass, Message: "nothing pending verification"})
	}

	missingLinks := 0
	for _, n := range all {
		if n.Resolved && !hasChildren(all, n.ID) && len(n.ContextLinks) == 0 {
			missingLinks++
		}
	}
	if missingLinks > 0 {
		items = append(items, ChecklistItem{Check: "missing_context_links", Status: StatusWarn,
			Message: fmt.Sprintf("%d resolved leaf(ves) have no context links", missingLinks),
			Action:  "attach file paths, URLs, or commit refs via graph_update"})
	} else {
		items = append(items, ChecklistItem{Check: "missing_context_links", Status: StatusPass, Message: "resolved leaves carry context links"})
	}

	hasActionable := false
	for _, n := range all {
		if !n.Resolved && !n.Blocked && !n.IsRoot() && !hasUnresolvedChild(all, n.ID) {
			hasActionable = true
			break
		}
	}
	if hasActionable {
		items = append(items, ChecklistItem{Check: "next_action_readiness", Status: StatusPass, Message: "at least one actionable node is ready"})
	} else {
		items = append(items, ChecklistItem{Check: "next_action_readiness", Status: StatusWarn,
			Message: "no actionable node right now", Action: "decompose a pending node or unblock one via graph_update"})
	}

	return items
}

func hasChildren(all []*types.Node, id string) bool {
	for _, n := range all {
		if n.Parent == id {
			return true
		}
	}
	return false
}

func hasUnresolvedChild(all []*types.Node, id string) bool {
	for _, n := range all {
		if n.Parent == id && !n.Resolved {
			return true
		}
	}
	return false
}
