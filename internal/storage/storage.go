// Package storage defines the backing-store contract for the graph engine:
// a single embedded relational database file holding nodes, edges, events,
// and knowledge, reached exclusively through this interface so the graph
// and handler layers never see raw SQL (grounded on the teacher's
// internal/storage package split between the Storage interface and its
// internal/storage/sqlite implementation).
package storage

import (
	"context"

	"github.com/andburman/graphkeep/internal/types"
)

// Storage is the full backing-store contract. A concrete implementation
// (internal/storage/sqlite) owns the database file, its migrations, and
// its prepared statements.
type Storage interface {
	// Nodes
	CreateNode(ctx context.Context, n *types.Node) error
	GetNode(ctx context.Context, id string) (*types.Node, error)
	UpdateNode(ctx context.Context, n *types.Node) error
	DeleteNode(ctx context.Context, id string) error
	Children(ctx context.Context, id string) ([]*types.Node, error)
	Ancestors(ctx context.Context, id string) ([]*types.Node, error)
	ProjectRoot(ctx context.Context, project string) (*types.Node, error)
	ListProjects(ctx context.Context) ([]types.ProjectSummary, error)
	AllNodes(ctx context.Context, project string) ([]*types.Node, error)
	SubtreeIDs(ctx context.Context, id string) ([]string, error)

	// Edges
	AddEdge(ctx context.Context, e *types.Edge) error
	RemoveEdge(ctx context.Context, from, to string, edgeType types.EdgeType) error
	EdgesFrom(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error)
	EdgesTo(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error)
	EdgeExists(ctx context.Context, from, to string, edgeType types.EdgeType) (bool, error)
	ReachableFrom(ctx context.Context, start string, edgeType types.EdgeType) (map[string]bool, error)

	// Events
	LogEvent(ctx context.Context, e *types.Event) error
	GetEvents(ctx context.Context, nodeID string, limit int, cursor string) (types.EventPage, error)
	DeleteEventsForNode(ctx context.Context, nodeID string) error

	// Knowledge
	WriteKnowledge(ctx context.Context, e *types.KnowledgeEntry) error
	GetKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error)
	ListKnowledge(ctx context.Context, project string) ([]*types.KnowledgeEntry, error)
	DeleteKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error)
	LogKnowledgeMutation(ctx context.Context, e *types.KnowledgeLogEntry) error
	ListKnowledgeLog(ctx context.Context, project string, since int64) ([]types.KnowledgeLogEntry, error)

	// Config (claim TTL overrides, issue-prefix-equivalents, etc.)
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Transactions
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	Close() error
}

// Transaction mirrors Storage's mutating surface plus the bulk node reads
// for use inside RunInTransaction, so a handler can perform several
// node/edge/event writes atomically and then scan the project's nodes for
// cascading effects. RunInTransaction runs against a dedicated connection
// distinct from the pool the enclosing Storage draws from, so a read
// issued through Storage instead of Transaction would not observe this
// transaction's uncommitted writes; every read a mutating handler needs
// must go through tx.
type Transaction interface {
	CreateNode(ctx context.Context, n *types.Node) error
	GetNode(ctx context.Context, id string) (*types.Node, error)
	UpdateNode(ctx context.Context, n *types.Node) error
	DeleteNode(ctx context.Context, id string) error
	Children(ctx context.Context, id string) ([]*types.Node, error)
	Ancestors(ctx context.Context, id string) ([]*types.Node, error)
	ProjectRoot(ctx context.Context, project string) (*types.Node, error)
	AllNodes(ctx context.Context, project string) ([]*types.Node, error)
	SubtreeIDs(ctx context.Context, id string) ([]string, error)

	AddEdge(ctx context.Context, e *types.Edge) error
	RemoveEdge(ctx context.Context, from, to string, edgeType types.EdgeType) error
	EdgesFrom(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error)
	EdgesTo(ctx context.Context, id string, edgeType types.EdgeType) ([]*types.Edge, error)
	EdgeExists(ctx context.Context, from, to string, edgeType types.EdgeType) (bool, error)
	ReachableFrom(ctx context.Context, start string, edgeType types.EdgeType) (map[string]bool, error)

	LogEvent(ctx context.Context, e *types.Event) error
	GetEvents(ctx context.Context, nodeID string, limit int, cursor string) (types.EventPage, error)
	DeleteEventsForNode(ctx context.Context, nodeID string) error

	WriteKnowledge(ctx context.Context, e *types.KnowledgeEntry) error
	GetKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error)
	ListKnowledge(ctx context.Context, project string) ([]*types.KnowledgeEntry, error)
	DeleteKnowledge(ctx context.Context, project, key string) (*types.KnowledgeEntry, error)
	LogKnowledgeMutation(ctx context.Context, e *types.KnowledgeLogEntry) error
}
