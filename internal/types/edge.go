package types

import "time"

// EdgeType distinguishes engine-interpreted edges from opaque ones. Only
// DependsOn is cycle-checked and drives actionability; every other type
// (e.g. "relates_to", "duplicates") is stored and returned but never
// reasoned about by the graph algorithms.
type EdgeType string

const (
	EdgeDependsOn EdgeType = "depends_on"

	// EdgeParent names the parent/child relationship that graph_connect
	// must reject: reparenting a node is restructure(move)'s job, not an
	// edge operation.
	EdgeParent EdgeType = "parent"
)

// Edge is a typed directed edge between two nodes.
type Edge struct {
	ID        int64     `json:"id"`
	FromNode  string    `json:"from_node"`
	ToNode    string    `json:"to_node"`
	Type      EdgeType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// NewlyActionable describes a node that became actionable as a consequence
// of a specific transaction.
type NewlyActionable struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}
