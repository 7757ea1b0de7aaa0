package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/types"
)

// PlanNodeInput is one entry of a graph_plan batch.
type PlanNodeInput struct {
	Ref          string
	ParentRef    string // batch ref or existing node id
	Summary      string
	Properties   map[string]types.Value
	ContextLinks []string
	DependsOn    []string // batch refs or existing ids
}

// PlanParams is graph_plan's input.
type PlanParams struct {
	Nodes           []PlanNodeInput
	DecisionContext string
	Agent           string
}

// PlanResult is graph_plan's output.
type PlanResult struct {
	Created  []*types.Node     `json:"created"`
	RefToID  map[string]string `json:"ref_to_id"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Plan implements graph_plan: a two-pass batch create (refs resolved to
// ids, then depends_on edges added) inside one transaction, followed by a
// potential-duplicate scan among the newly-created siblings.
func (h *Handlers) Plan(ctx context.Context, p PlanParams) (*PlanResult, error) {
	if len(p.Nodes) == 0 {
		return nil, engineerr.New(engineerr.CodeInvalidInput, "nodes batch is empty", "supply at least one node to plan")
	}

	refSeen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.Ref == "" {
			return nil, engineerr.New(engineerr.CodeInvalidInput, "every planned node needs a ref", "assign a batch-local ref to each node")
		}
		if refSeen[n.Ref] {
			return nil, engineerr.New(engineerr.CodeDuplicateRef, fmt.Sprintf("ref %q used more than once in this batch", n.Ref), "make every ref in the batch unique")
		}
		refSeen[n.Ref] = true
		if n.Summary == "" {
			return nil, engineerr.New(engineerr.CodeInvalidInput, fmt.Sprintf("node %q has no summary", n.Ref), "every planned node needs a summary")
		}
	}

	referencedAsParent := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ParentRef != "" && refSeen[n.ParentRef] {
			referencedAsParent[n.ParentRef] = true
		}
	}

	now := timeNow()
	var created []*types.Node
	refToID := make(map[string]string, len(p.Nodes))

	err := h.runTx(ctx, func(tx storage.Transaction) error {
		for _, n := range p.Nodes {
			parentID := n.ParentRef
			if id, ok := refToID[n.ParentRef]; ok {
				parentID = id
			} else if n.ParentRef != "" {
				if refSeen[n.ParentRef] {
					return engineerr.New(engineerr.CodeMissingParent,
						fmt.Sprintf("node %q references parent ref %q before it is created", n.Ref, n.ParentRef),
						"order the batch so parents precede their children, or reference an existing node id")
				}
				if _, err := tx.GetNode(ctx, n.ParentRef); err != nil {
					return engineerr.New(engineerr.CodeMissingParent,
						fmt.Sprintf("node %q's parent_ref %q resolves to neither a batch ref nor an existing node", n.Ref, n.ParentRef),
						"check the parent_ref spelling or create the parent first")
				}
			} else {
				return engineerr.New(engineerr.CodeMissingParent,
					fmt.Sprintf("node %q has no parent_ref", n.Ref),
					"every planned node must resolve a parent (an existing node or another batch ref)")
			}

			discovery := types.DiscoveryPending
			if referencedAsParent[n.Ref] {
				discovery = types.DiscoveryDone
			}

			node, err := graph.CreateNode(ctx, tx, newID, graph.CreateNodeParams{
				Project:         projectOf(ctx, tx, parentID),
				Parent:          parentID,
				Summary:         n.Summary,
				Properties:      n.Properties,
				ContextLinks:    n.ContextLinks,
				Discovery:       discovery,
				DecisionContext: p.DecisionContext,
				Agent:           p.Agent,
			}, now)
			if err != nil {
				return fmt.Errorf("plan %q: %w", n.Ref, err)
			}
			created = append(created, node)
			refToID[n.Ref] = node.ID
		}

		for _, n := range p.Nodes {
			for _, dep := range n.DependsOn {
				targetID := dep
				if id, ok := refToID[dep]; ok {
					targetID = id
				}
				if _, err := graph.AddEdge(ctx, tx, refToID[n.Ref], targetID, types.EdgeDependsOn, p.Agent, now); err != nil {
					return fmt.Errorf("plan %q depends_on %q: %w", n.Ref, dep, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	warnings := duplicateWarnings(created)
	return &PlanResult{Created: created, RefToID: refToID, Warnings: warnings}, nil
}

// projectOf resolves the project a new node inherits from its parent,
// falling back to the parent id's own project lookup for a parent
// referenced by existing id rather than by batch ref.
func projectOf(ctx context.Context, tx storage.Transaction, parentID string) string {
	if parentID == "" {
		return ""
	}
	if n, err := tx.GetNode(ctx, parentID); err == nil {
		return n.Project
	}
	return ""
}

// duplicateWarnings flags newly-created siblings whose summaries share a
// significant term, a cheap dependency-free heuristic per the knowledge
// store's similarity design (§4.7) applied here to node summaries instead
// of knowledge keys.
func duplicateWarnings(nodes []*types.Node) []string {
	byParent := map[string][]*types.Node{}
	for _, n := range nodes {
		byParent[n.Parent] = append(byParent[n.Parent], n)
	}
	var warnings []string
	for _, siblings := range byParent {
		for i := 0; i < len(siblings); i++ {
			for j := i + 1; j < len(siblings); j++ {
				if sharesSignificantTerm(siblings[i].Summary, siblings[j].Summary) {
					warnings = append(warnings, fmt.Sprintf("%q and %q look like potential duplicates", siblings[i].Summary, siblings[j].Summary))
				}
			}
		}
	}
	return warnings
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "to": true,
	"of": true, "for": true, "in": true, "on": true, "with": true, "is": true,
}

func sharesSignificantTerm(a, b string) bool {
	terms := func(s string) map[string]bool {
		out := map[string]bool{}
		for _, w := range strings.Fields(strings.ToLower(s)) {
			w = strings.Trim(w, ".,:;!?()")
			if len(w) > 3 && !stopWords[w] {
				out[w] = true
			}
		}
		return out
	}
	ta, tb := terms(a), terms(b)
	for w := range ta {
		if tb[w] {
			return true
		}
	}
	return false
}
