package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// RoadmapParams is graph_roadmap's input.
type RoadmapParams struct {
	Project string
}

// Release is one depth-1 child of the project root, treated as a release
// grouping per the horizon/version property convention.
type Release struct {
	Node         *types.Node           `json:"node"`
	Horizon      string                `json:"horizon,omitempty"`
	Version      string                `json:"version,omitempty"`
	Progress     types.SubtreeProgress `json:"progress"`
	AtRisk       bool                  `json:"at_risk"`
	AtRiskReason string                `json:"at_risk_reason,omitempty"`
}

// RoadmapResult is graph_roadmap's output.
type RoadmapResult struct {
	Releases []Release `json:"releases"`
}

const roadmapStaleWindow = 14 * 24 * time.Hour

// Roadmap implements graph_roadmap: treats the root's depth-1 children as
// releases, reading properties.horizon/properties.version by convention,
// computing each release's recursive subtree progress, and flagging a
// release at-risk when it carries a blocked descendant, has gone stale, or
// has passed its horizon date without resolving.
func (h *Handlers) Roadmap(ctx context.Context, p RoadmapParams) (*RoadmapResult, error) {
	if err := requireNonEmpty("project", p.Project); err != nil {
		return nil, err
	}
	root, all, err := findRootAndAll(ctx, h.store(), p.Project)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	var releases []Release
	for _, n := range all {
		if n.Parent != root.ID {
			continue
		}
		r := Release{
			Node:     n,
			Horizon:  n.Properties["horizon"].StringOr(""),
			Version:  n.Properties["version"].StringOr(""),
			Progress: subtreeProgressFrom(all, n),
		}
		r.AtRisk, r.AtRiskReason = assessRisk(all, n, r.Progress, r.Horizon, now)
		releases = append(releases, r)
	}

	return &RoadmapResult{Releases: releases}, nil
}

func subtreeProgressFrom(all []*types.Node, root *types.Node) types.SubtreeProgress {
	ids := descendantSet(all, root.ID)
	ids[root.ID] = true
	resolved, total := 0, 0
	for _, n := range all {
		if !ids[n.ID] {
			continue
		}
		total++
		if n.Resolved {
			resolved++
		}
	}
	return types.SubtreeProgress{Resolved: resolved, Total: total}
}

func assessRisk(all []*types.Node, release *types.Node, progress types.SubtreeProgress, horizon string, now time.Time) (bool, string) {
	ids := descendantSet(all, release.ID)
	for _, n := range all {
		if ids[n.ID] && n.Blocked && !n.Resolved {
			return true, fmt.Sprintf("blocked descendant %s", n.ID)
		}
	}

	if progress.Total > 0 && progress.Resolved < progress.Total {
		var lastActivity time.Time
		for _, n := range all {
			if ids[n.ID] && n.UpdatedAt.After(lastActivity) {
				lastActivity = n.UpdatedAt
			}
		}
		if !lastActivity.IsZero() && now.Sub(lastActivity) > roadmapStaleWindow {
			return true, fmt.Sprintf("no activity for %s", now.Sub(lastActivity).Round(time.Hour))
		}
	}

	if horizon != "" && progress.Resolved < progress.Total {
		if due, err := time.Parse("2006-01-02", horizon); err == nil && now.After(due) {
			return true, fmt.Sprintf("past horizon %s with %d/%d resolved", horizon, progress.Resolved, progress.Total)
		}
	}

	return false, ""
}
