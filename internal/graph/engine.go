// Package graph implements the node/edge/event layers and the graph
// algorithms (actionability, ranking, auto-resolve cascade, restructure)
// described in the engine's core design. It never touches SQL directly;
// everything goes through storage.Storage/storage.Transaction so the
// backing store stays swappable.
package graph

import (
	"time"

	"github.com/andburman/graphkeep/internal/storage"
)

// DefaultClaimTTL is the soft-claim visibility window used when the caller
// does not override it via configuration.
const DefaultClaimTTL = 60 * time.Minute

// Engine is the entry point handlers use to reach the graph layer. It
// holds the backing store and the process-wide claim TTL; agent identity
// is threaded through individual calls rather than held here, since a
// single engine process may be driven by a transport that multiplexes
// several agents.
type Engine struct {
	Store    storage.Storage
	ClaimTTL time.Duration
}

// New builds an Engine over an already-opened store. A zero ClaimTTL is
// replaced with DefaultClaimTTL.
func New(store storage.Storage, claimTTL time.Duration) *Engine {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	return &Engine{Store: store, ClaimTTL: claimTTL}
}
