package signals

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// RenderStatus builds the Markdown-like status() view: a progress bar,
// actionable/blocked/waiting counts, the continuity score, an indented
// task tree with status icons, recent activity, blocked items, knowledge
// keys, and integrity issues grouped by kind. Never mutates anything.
func RenderStatus(project string, root *types.Node, all []*types.Node, actionableIDs map[string]bool, confidence Confidence, integrity Integrity, knowledgeKeys []string) string {
	var b strings.Builder

	total := len(all)
	resolved := 0
	for _, n := range all {
		if n.Resolved {
			resolved++
		}
	}
	blocked := 0
	for _, n := range all {
		if n.Blocked && !n.Resolved {
			blocked++
		}
	}
	waiting := total - resolved - blocked - len(actionableIDs)
	if waiting < 0 {
		waiting = 0
	}

	fmt.Fprintf(&b, "# %s\n\n", project)
	fmt.Fprintf(&b, "%s\n\n", progressBar(resolved, total))
	fmt.Fprintf(&b, "actionable: %d · blocked: %d · waiting: %d\n", len(actionableIDs), blocked, waiting)
	fmt.Fprintf(&b, "continuity: %d (%s) · integrity: %d\n\n", confidence.Score, confidence.Band, integrity.Score)

	b.WriteString("## Tasks\n\n")
	if root != nil {
		renderTree(&b, root, all, actionableIDs, 0)
	}

	b.WriteString("\n## Recent activity\n\n")
	recent := recentlyUpdated(all, 10)
	for _, n := range recent {
		fmt.Fprintf(&b, "- %s %s (%s)\n", statusIcon(n, actionableIDs), n.Summary, n.UpdatedAt.Format(time.RFC3339))
	}

	if blocked > 0 {
		b.WriteString("\n## Blocked\n\n")
		for _, n := range all {
			if n.Blocked && !n.Resolved {
				fmt.Fprintf(&b, "- %s — %s\n", n.Summary, n.BlockedReason)
			}
		}
	}

	if len(knowledgeKeys) > 0 {
		b.WriteString("\n## Knowledge\n\n")
		sorted := append([]string(nil), knowledgeKeys...)
		sort.Strings(sorted)
		for _, k := range sorted {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}

	if len(integrity.Issues) > 0 {
		b.WriteString("\n## Integrity\n\n")
		byKind := map[IssueKind][]Issue{}
		for _, iss := range integrity.Issues {
			byKind[iss.Kind] = append(byKind[iss.Kind], iss)
		}
		for _, kind := range []IssueKind{IssueWeakEvidence, IssueStaleClaim, IssueOrphan, IssueStaleTask} {
			group := byKind[kind]
			if len(group) == 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s: %d\n", kind, len(group))
		}
	}

	return b.String()
}

func progressBar(resolved, total int) string {
	if total == 0 {
		return "[----------] 0%"
	}
	pct := resolved * 100 / total
	filled := pct / 10
	return fmt.Sprintf("[%s%s] %d%%", strings.Repeat("#", filled), strings.Repeat("-", 10-filled), pct)
}

func statusIcon(n *types.Node, actionableIDs map[string]bool) string {
	switch {
	case n.Resolved:
		return "[x]"
	case n.Blocked:
		return "[!]"
	case actionableIDs[n.ID]:
		return "[>]"
	default:
		return "[ ]"
	}
}

func renderTree(b *strings.Builder, n *types.Node, all []*types.Node, actionableIDs map[string]bool, indent int) {
	fmt.Fprintf(b, "%s%s %s\n", strings.Repeat("  ", indent), statusIcon(n, actionableIDs), n.Summary)
	for _, c := range all {
		if c.Parent == n.ID {
			renderTree(b, c, all, actionableIDs, indent+1)
		}
	}
}

func recentlyUpdated(all []*types.Node, limit int) []*types.Node {
	sorted := append([]*types.Node(nil), all...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
