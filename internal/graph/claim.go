package graph

import (
	"time"

	"github.com/andburman/graphkeep/internal/types"
)

// Property keys used to encode a soft claim, kept internal to the node's
// properties bag rather than a separate table so the claim is visible in
// the same audit trail as everything else (§9 design note).
const (
	propClaimedBy         = "_claimed_by"
	propClaimedAt         = "_claimed_at"
	propNeedsVerification = "_needs_verification"
)

// Claim records agent as the soft-claim holder on a node already fetched
// and about to be persisted by the caller (normally via graph.UpdateNode,
// so the claim change is itself diffed and logged like any other property
// mutation).
func Claim(n *types.Node, agent string, now time.Time) types.PropertyBag {
	props := n.Properties
	if props == nil {
		props = types.PropertyBag{}
	}
	return props.Merge(map[string]types.Value{
		propClaimedBy: types.String(agent),
		propClaimedAt: types.String(now.Format(time.RFC3339Nano)),
	}, nil)
}

// IsClaimVisibleTo reports whether n's current claim (if any) should hide
// it from agent's candidate list: a claim by a different agent is hidden
// only while it is fresher than now-ttl; a stale claim is transparently
// reclaimable, and an agent always sees its own claim.
func IsClaimVisibleTo(n *types.Node, agent string, ttl time.Duration, now time.Time) bool {
	claimedBy := n.ClaimedBy()
	if claimedBy == "" || claimedBy == agent {
		return true
	}
	claimedAt := n.ClaimedAt()
	if claimedAt.IsZero() {
		return true
	}
	return claimedAt.Before(now.Add(-ttl))
}
