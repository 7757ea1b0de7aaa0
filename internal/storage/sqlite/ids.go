package sqlite

import (
	"strings"

	"github.com/google/uuid"
)

// NewNodeID returns a short opaque node identifier: the first twelve hex
// characters of a random UUIDv4 with its dashes removed, which is enough entropy
// for the soft-claim and lookup purposes a node ID serves and keeps CLI
// output readable, matching the short-ID convention agents expect when
// typing an ID back into a follow-up call.
func NewNodeID() string {
	id := uuid.New().String()
	return strings.ReplaceAll(id, "-", "")[:12]
}
