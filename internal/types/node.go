package types

import "time"

// Discovery gates whether a node may receive children via plan. "pending"
// means decomposition has not happened yet; "done" means it has (or the
// node was created specifically to hold other nodes); the empty string
// ("null") means the node was never subject to a discovery step at all
// (e.g. a node created before discovery gating mattered for it).
type Discovery string

const (
	DiscoveryPending Discovery = "pending"
	DiscoveryDone    Discovery = "done"
	DiscoveryNull    Discovery = ""
)

// EvidenceType is an open vocabulary; the engine only ever special-cases
// "auto_resolve" (for cascade bookkeeping) and "git"/"test" (for strict
// mode and thin-evidence warnings).
type EvidenceType string

const (
	EvidenceNote        EvidenceType = "note"
	EvidenceGit         EvidenceType = "git"
	EvidenceTest        EvidenceType = "test"
	EvidenceHint        EvidenceType = "hint"
	EvidenceDropped     EvidenceType = "dropped"
	EvidenceAutoResolve EvidenceType = "auto_resolve"
)

// Evidence is a single typed record of outcome or advice attached to a node.
type Evidence struct {
	Type      EvidenceType       `json:"type"`
	Ref       string             `json:"ref"`
	Agent     string             `json:"agent"`
	Timestamp time.Time          `json:"timestamp"`
	Detail    map[string]Value   `json:"detail,omitempty"`
}

// Node is the core unit of work in the graph.
type Node struct {
	ID             string           `json:"id"`
	Rev            int64            `json:"rev"`
	Parent         string           `json:"parent,omitempty"`
	Project        string           `json:"project"`
	Summary        string           `json:"summary"`
	Resolved       bool             `json:"resolved"`
	Depth          int              `json:"depth"`
	Discovery      Discovery        `json:"discovery,omitempty"`
	Blocked        bool             `json:"blocked"`
	BlockedReason  string           `json:"blocked_reason,omitempty"`
	Plan           []string         `json:"plan,omitempty"`
	State          Value            `json:"state,omitempty"`
	Properties     PropertyBag      `json:"properties,omitempty"`
	ContextLinks   []string         `json:"context_links,omitempty"`
	Evidence       []Evidence       `json:"evidence,omitempty"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.Parent == "" }

// Priority reads properties.priority as a float, defaulting to 0 when
// absent or of the wrong shape, per the ranking rule in §4.5.
func (n *Node) Priority() float64 {
	if n.Properties == nil {
		return 0
	}
	return n.Properties["priority"].FloatOr(0)
}

// AutoResolveEnabled reports whether properties.auto_resolve is anything
// other than an explicit false (the cascade's default-on behavior).
func (n *Node) AutoResolveEnabled() bool {
	if n.Properties == nil {
		return true
	}
	v, ok := n.Properties["auto_resolve"]
	if !ok {
		return true
	}
	b, isBool := v.AsBool()
	if !isBool {
		return true
	}
	return b
}

// CascadeResolveEnabled reports whether properties.cascade_resolve is true.
func (n *Node) CascadeResolveEnabled() bool {
	if n.Properties == nil {
		return false
	}
	return n.Properties["cascade_resolve"].BoolOr(false)
}

// Strict reports whether properties.strict is true (checked on the project
// root only by callers).
func (n *Node) Strict() bool {
	if n.Properties == nil {
		return false
	}
	return n.Properties["strict"].BoolOr(false)
}

// ClaimedBy returns the agent holding the soft claim, if any.
func (n *Node) ClaimedBy() string {
	if n.Properties == nil {
		return ""
	}
	return n.Properties["_claimed_by"].StringOr("")
}

// ClaimedAt returns the soft claim's timestamp, the zero time if unclaimed
// or unparseable.
func (n *Node) ClaimedAt() time.Time {
	if n.Properties == nil {
		return time.Time{}
	}
	s := n.Properties["_claimed_at"].StringOr("")
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NeedsVerification reports properties._needs_verification.
func (n *Node) NeedsVerification() bool {
	if n.Properties == nil {
		return false
	}
	return n.Properties["_needs_verification"].BoolOr(false)
}

// HasEvidenceType reports whether any evidence entry carries the given type.
func (n *Node) HasEvidenceType(t EvidenceType) bool {
	for _, e := range n.Evidence {
		if e.Type == t {
			return true
		}
	}
	return false
}

// TreeNode is a lightweight projection used by context/roadmap/query tree
// views: parent linkage plus enough fields to render a line of output
// without a full Node fetch.
type TreeNode struct {
	ID           string `json:"id"`
	ParentID     string `json:"parent_id,omitempty"`
	Summary      string `json:"summary"`
	Resolved     bool   `json:"resolved"`
	Blocked      bool   `json:"blocked"`
	Depth        int    `json:"depth"`
	ChildCount   int    `json:"child_count,omitempty"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// SubtreeProgress is the (resolved, total) count returned by
// Node layer subtree_progress, including the node itself.
type SubtreeProgress struct {
	Resolved int `json:"resolved"`
	Total    int `json:"total"`
}

// ProjectSummary aggregates counts for a project, used by open() (no
// project given) and status().
type ProjectSummary struct {
	Project       string `json:"project"`
	RootID        string `json:"root_id"`
	TotalNodes    int    `json:"total_nodes"`
	ResolvedNodes int    `json:"resolved_nodes"`
	ActionableNum int    `json:"actionable"`
	BlockedNum    int    `json:"blocked"`
}
