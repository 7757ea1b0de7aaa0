package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// OpenParams is graph_open's input. Project absent lists every project.
type OpenParams struct {
	Project string
	Goal    string
	Agent   string
}

// OpenResult is graph_open's output: either a project list or a single
// project's root plus a steering hint.
type OpenResult struct {
	Projects []types.ProjectSummary `json:"projects,omitempty"`
	Root     *types.Node            `json:"root,omitempty"`
	Summary  *types.ProjectSummary  `json:"summary,omitempty"`
	Hint     string                 `json:"hint,omitempty"`
}

// Open implements graph_open: with no project, lists every project with
// aggregate counts; otherwise returns the project's root (creating it with
// discovery=pending if this is the first call for that project) plus a
// hint steering the agent toward the next action.
func (h *Handlers) Open(ctx context.Context, p OpenParams) (*OpenResult, error) {
	if p.Project == "" {
		projects, err := h.store().ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("open: list projects: %w", err)
		}
		return &OpenResult{Projects: projects}, nil
	}

	now := timeNow()
	var root *types.Node
	var created bool
	if err := h.runTx(ctx, func(tx storage.Transaction) error {
		existing, lookupErr := tx.ProjectRoot(ctx, p.Project)
		if lookupErr == nil {
			root = existing
			return nil
		}
		summary := p.Goal
		if summary == "" {
			summary = p.Project
		}
		n, err := graph.CreateNode(ctx, tx, newID, graph.CreateNodeParams{
			Project:   p.Project,
			Summary:   summary,
			Discovery: types.DiscoveryPending,
			Agent:     p.Agent,
		}, now)
		if err != nil {
			return err
		}
		root = n
		created = true
		return nil
	}); err != nil {
		return nil, err
	}

	all, err := h.store().AllNodes(ctx, p.Project)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Project, err)
	}
	summary, err := summarizeProject(ctx, h.store(), p.Project, root, all)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Project, err)
	}

	var hint string
	switch {
	case created:
		hint = fmt.Sprintf("new project %q created with discovery=pending; flip discovery to done with graph_update, then call graph_plan to decompose it", p.Project)
	case root.Discovery == types.DiscoveryPending:
		hint = "root has discovery=pending; flip discovery to done with graph_update, then decompose it with graph_plan"
	case summary.ActionableNum > 0:
		hint = "actionable work is available; call graph_next to claim it"
	case summary.BlockedNum > 0:
		hint = "all open work is blocked; inspect blockers with graph_query(is_blocked=true)"
	default:
		hint = "everything resolved or nothing actionable yet; call graph_onboard for a full picture"
	}

	return &OpenResult{Root: root, Summary: &summary, Hint: hint}, nil
}

// summarizeProject computes a project's aggregate counts by running the
// same actionability/blocked predicates graph_query uses, against the
// store directly — SQLiteStorage structurally satisfies storage.Transaction,
// so no explicit transaction is needed for a read-only pass.
func summarizeProject(ctx context.Context, store storage.Storage, project string, root *types.Node, all []*types.Node) (types.ProjectSummary, error) {
	s := types.ProjectSummary{Project: project}
	if root != nil {
		s.RootID = root.ID
	}
	s.TotalNodes = len(all)
	byID := make(map[string]*types.Node, len(all))
	for _, n := range all {
		byID[n.ID] = n
		if n.Resolved {
			s.ResolvedNodes++
		}
	}
	for _, n := range all {
		if n.Resolved {
			continue
		}
		blocked, err := graph.IsBlocked(ctx, store, n, byID)
		if err != nil {
			return types.ProjectSummary{}, err
		}
		if blocked {
			s.BlockedNum++
			continue
		}
		actionable, err := graph.IsActionable(ctx, store, n, all)
		if err != nil {
			return types.ProjectSummary{}, err
		}
		if actionable {
			s.ActionableNum++
		}
	}
	return s, nil
}
