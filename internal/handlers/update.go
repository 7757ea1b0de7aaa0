package handlers

import (
	"context"
	"fmt"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// UpdateEntry is one batch entry of graph_update's input, mirroring
// graph.UpdateParams plus the resolved_reason shorthand.
type UpdateEntry struct {
	NodeID             string
	ExpectedRev        *int64
	Summary            *string
	Resolved           *bool
	ResolvedReason     string // shorthand, expanded into a note evidence entry
	Blocked            *bool
	BlockedReason      *string
	Discovery          *types.Discovery
	Plan               *[]string
	State              *types.Value
	SetProperties      map[string]types.Value
	DeleteProperties   []string
	AddContextLinks    []string
	RemoveContextLinks []string
	AddEvidence        []types.Evidence
}

// UpdateParams is graph_update's input.
type UpdateParams struct {
	Updates         []UpdateEntry
	DecisionContext string
	Agent           string
}

// UpdateResult is graph_update's output.
type UpdateResult struct {
	Updated         []*types.Node            `json:"updated"`
	NewlyActionable []types.NewlyActionable  `json:"newly_actionable,omitempty"`
	AutoResolved    []string                 `json:"auto_resolved,omitempty"`
	Warnings        []string                 `json:"warnings,omitempty"`
	RetroNudge      string                   `json:"retro_nudge,omitempty"`
}

// Update implements graph_update: a batch of partial mutations in a single
// transaction, followed by the auto-resolve cascade and a newly-actionable
// scan, with non-fatal warnings for thin evidence, missing context links,
// and stale discovery/plan on resolved leaves.
func (h *Handlers) Update(ctx context.Context, p UpdateParams) (*UpdateResult, error) {
	if len(p.Updates) == 0 {
		return nil, engineerr.New(engineerr.CodeInvalidInput, "updates batch is empty", "supply at least one update")
	}

	now := timeNow()
	var updated []*types.Node
	var justResolved []string
	var warnings []string
	var project string
	var autoResolved []string
	var newlyActionable []types.NewlyActionable

	// The cascade and newly-actionable scan run inside this same
	// transaction as the explicit updates (§5: "the auto-resolve cascade
	// is part of the same transaction as the triggering explicit
	// update"). Bulk node reads go through tx, not the enclosing Storage:
	// RunInTransaction runs on a dedicated connection, and a read on the
	// pooled Storage would not see this transaction's uncommitted writes.
	err := h.runTx(ctx, func(tx storage.Transaction) error {
		for _, u := range p.Updates {
			if u.NodeID == "" {
				return engineerr.New(engineerr.CodeInvalidInput, "update entry missing node_id", "include node_id on every update entry")
			}
			before, err := tx.GetNode(ctx, u.NodeID)
			if err != nil {
				return engineerr.NodeNotFound(u.NodeID)
			}
			project = before.Project

			addEvidence := u.AddEvidence
			if u.ResolvedReason != "" {
				addEvidence = append(addEvidence, types.Evidence{Type: types.EvidenceNote, Ref: u.ResolvedReason})
			}

			if u.Resolved != nil && *u.Resolved && !before.Resolved {
				if err := enforceStrictMode(ctx, tx, before, addEvidence, u.AddContextLinks); err != nil {
					return err
				}
			}

			n, err := graph.UpdateNode(ctx, tx, graph.UpdateParams{
				NodeID:             u.NodeID,
				Agent:              p.Agent,
				ExpectedRev:        u.ExpectedRev,
				Summary:            u.Summary,
				Resolved:           u.Resolved,
				Blocked:            u.Blocked,
				BlockedReason:      u.BlockedReason,
				Discovery:          u.Discovery,
				Plan:               u.Plan,
				State:              u.State,
				SetProperties:      u.SetProperties,
				DeleteProperties:   u.DeleteProperties,
				AddContextLinks:    u.AddContextLinks,
				RemoveContextLinks: u.RemoveContextLinks,
				AddEvidence:        addEvidence,
				DecisionContext:    p.DecisionContext,
			}, now)
			if err != nil {
				return err
			}
			updated = append(updated, n)

			if u.Resolved != nil && *u.Resolved && !before.Resolved {
				justResolved = append(justResolved, n.ID)
				warnings = append(warnings, resolutionWarnings(ctx, tx, n)...)
			}
		}

		if len(justResolved) == 0 || project == "" {
			return nil
		}

		all, err := tx.AllNodes(ctx, project)
		if err != nil {
			return fmt.Errorf("update: cascade: %w", err)
		}
		autoResolved, err = graph.AutoResolveCascade(ctx, tx, all, justResolved, p.Agent, now)
		if err != nil {
			return fmt.Errorf("update: cascade: %w", err)
		}

		all, err = tx.AllNodes(ctx, project)
		if err != nil {
			return fmt.Errorf("update: newly actionable: %w", err)
		}
		resolvedIDs := append(append([]string{}, justResolved...), autoResolved...)
		newlyActionable, err = graph.FindNewlyActionable(ctx, tx, project, all, resolvedIDs)
		if err != nil {
			return fmt.Errorf("update: newly actionable: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var nudge string
	if project != "" && (len(justResolved)+len(autoResolved)) > 0 {
		if all, err := h.store().AllNodes(ctx, project); err == nil {
			nudge = h.retroNudge(ctx, project, all)
		}
	}

	return &UpdateResult{
		Updated:         updated,
		NewlyActionable: newlyActionable,
		AutoResolved:    autoResolved,
		Warnings:        warnings,
		RetroNudge:      nudge,
	}, nil
}

// enforceStrictMode applies §4.6's strict-project resolve requirement
// (note + traceable artifact + context link) to leaves only, per the
// Open Question resolved in DESIGN.md.
func enforceStrictMode(ctx context.Context, tx storage.Transaction, n *types.Node, addEvidence []types.Evidence, addLinks []string) error {
	root, err := projectRootFor(ctx, tx, n)
	if err != nil || !root.Strict() {
		return nil
	}
	kids, err := tx.Children(ctx, n.ID)
	if err != nil || len(kids) > 0 {
		return nil // strict enforcement is leaf-only
	}

	allEvidence := append(append([]types.Evidence{}, n.Evidence...), addEvidence...)
	hasNote, hasArtifact := false, false
	for _, e := range allEvidence {
		switch e.Type {
		case types.EvidenceNote:
			hasNote = true
		case types.EvidenceGit, types.EvidenceTest:
			hasArtifact = true
		}
	}
	links := len(n.ContextLinks) + len(addLinks)

	var missing []string
	if !hasNote {
		missing = append(missing, "a note")
	}
	if !hasArtifact {
		missing = append(missing, "a traceable artifact (git or test evidence)")
	}
	if links == 0 {
		missing = append(missing, "a context link")
	}
	if len(missing) > 0 {
		return engineerr.StrictModeViolation(n.ID, fmt.Sprintf("%v", missing))
	}
	return nil
}

func projectRootFor(ctx context.Context, tx storage.Transaction, n *types.Node) (*types.Node, error) {
	if n.IsRoot() {
		return n, nil
	}
	ancestors, err := tx.Ancestors(ctx, n.ID)
	if err != nil || len(ancestors) == 0 {
		return nil, fmt.Errorf("project root for %s: %w", n.ID, err)
	}
	return ancestors[0], nil
}

// resolutionWarnings emits the non-fatal warnings §4.6 names for an
// explicit resolution: thin evidence, missing context links on a resolved
// leaf, discovery still pending, and a missing plan.
func resolutionWarnings(ctx context.Context, tx storage.Transaction, n *types.Node) []string {
	var warnings []string
	if len(n.Evidence) == 1 && !n.HasEvidenceType(types.EvidenceGit) && !n.HasEvidenceType(types.EvidenceTest) {
		warnings = append(warnings, fmt.Sprintf("%s resolved with thin evidence (one note, no git or test)", n.ID))
	}
	kids, err := tx.Children(ctx, n.ID)
	isLeaf := err == nil && len(kids) == 0
	if isLeaf && len(n.ContextLinks) == 0 {
		warnings = append(warnings, fmt.Sprintf("%s resolved with no context links", n.ID))
	}
	if n.Discovery == types.DiscoveryPending {
		warnings = append(warnings, fmt.Sprintf("%s resolved while discovery is still pending", n.ID))
	}
	if isLeaf && len(n.Plan) == 0 {
		warnings = append(warnings, fmt.Sprintf("%s resolved with no plan recorded", n.ID))
	}
	return warnings
}
