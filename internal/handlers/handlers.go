// Package handlers implements the semantic tool surface an agent invokes:
// open, plan, next, context, update, connect, query, restructure, history,
// onboard, status, resolve, knowledge_{read,write,delete,search}, retro,
// roadmap, and knowledge_audit. Each handler validates its input, opens a
// single transaction for anything that mutates, and returns a plain Go
// struct with JSON tags for the out-of-scope transport to marshal.
package handlers

import (
	"context"
	"time"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/storage"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
	"github.com/andburman/graphkeep/internal/types"
)

// Handlers wraps the graph engine; mutating calls take new ids from the
// package-level newID. now is read once per call via time.Now so a single
// invocation's node/event timestamps are internally consistent, matching
// the graph layer's "caller threads now through" convention.
type Handlers struct {
	Engine *graph.Engine
}

// New builds a Handlers over an already-constructed engine.
func New(engine *graph.Engine) *Handlers {
	return &Handlers{Engine: engine}
}

func (h *Handlers) store() storage.Storage { return h.Engine.Store }

func newID() string { return sqlite.NewNodeID() }

// runTx is a thin wrapper around Store.RunInTransaction that exists so
// every handler file reads the same way.
func (h *Handlers) runTx(ctx context.Context, fn func(tx storage.Transaction) error) error {
	return h.store().RunInTransaction(ctx, fn)
}

func requireNonEmpty(field, value string) error {
	if value == "" {
		return engineerr.New(engineerr.CodeInvalidInput, field+" is required", "supply a non-empty "+field)
	}
	return nil
}

// findRootAndAll loads a project's root and full node set together, the
// shape most analytical handlers (onboard, status, roadmap) need.
func findRootAndAll(ctx context.Context, store storage.Storage, project string) (*types.Node, []*types.Node, error) {
	root, err := store.ProjectRoot(ctx, project)
	if err != nil {
		return nil, nil, engineerr.ProjectNotFound(project)
	}
	all, err := store.AllNodes(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	return root, all, nil
}

func timeNow() time.Time { return time.Now() }
