package signals

import (
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// Band classifies a Confidence.Score into a coarse label.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Confidence is the continuity-confidence score onboard()/status() surface
// to tell a new agent how much to trust the graph's state at face value.
type Confidence struct {
	Score   int      `json:"score"`
	Band    Band     `json:"band"`
	Reasons []string `json:"reasons"`
}

// ComputeConfidence derives a 0-100 score from evidence coverage on
// resolved nodes, activity recency, knowledge presence on mature projects,
// stale blockers, and an empty-project penalty.
func ComputeConfidence(all []*types.Node, knowledge []*types.KnowledgeEntry, now time.Time) Confidence {
	if len(all) == 0 {
		return Confidence{Score: 90, Band: BandHigh, Reasons: []string{"project has no nodes yet"}}
	}

	score := 100
	var reasons []string

	resolved, weakEvidence := 0, 0
	for _, n := range all {
		if !n.Resolved {
			continue
		}
		resolved++
		if len(n.Evidence) == 0 || (!n.HasEvidenceType(types.EvidenceGit) && len(n.ContextLinks) == 0 && len(n.Evidence) <= 1) {
			weakEvidence++
		}
	}
	if resolved > 0 {
		ratio := float64(weakEvidence) / float64(resolved)
		penalty := int(ratio * 40)
		if penalty > 40 {
			penalty = 40
		}
		if penalty > 0 {
			score -= penalty
			reasons = append(reasons, "weak evidence on some resolved nodes")
		}
	}

	var lastActivity time.Time
	for _, n := range all {
		if n.UpdatedAt.After(lastActivity) {
			lastActivity = n.UpdatedAt
		}
	}
	if !lastActivity.IsZero() {
		idleDays := now.Sub(lastActivity).Hours() / 24
		penalty := int(idleDays * 2.5)
		if penalty > 25 {
			penalty = 25
		}
		if penalty > 0 {
			score -= penalty
			reasons = append(reasons, "no recent activity")
		}
	}

	mature := len(all) >= 10
	if mature && len(knowledge) == 0 {
		score -= 15
		reasons = append(reasons, "mature project has no knowledge entries")
	}

	staleBlockers := 0
	for _, n := range all {
		if n.Blocked && !n.Resolved && now.Sub(n.UpdatedAt) > 7*24*time.Hour {
			staleBlockers++
		}
	}
	if staleBlockers > 0 {
		score -= 10
		reasons = append(reasons, "blockers have sat unresolved for over a week")
	}

	if len(all) <= 1 {
		score -= 10
		reasons = append(reasons, "project is effectively empty")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	band := BandLow
	switch {
	case score >= 70:
		band = BandHigh
	case score >= 40:
		band = BandMedium
	}

	return Confidence{Score: score, Band: band, Reasons: reasons}
}
