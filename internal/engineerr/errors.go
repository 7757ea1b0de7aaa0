// Package engineerr defines the structured error codes every handler
// returns, per spec §4.8/§7: every error names the offending entity and
// states the remediation, and validation errors always precede
// engine-state errors so nothing partial is ever committed.
package engineerr

import "fmt"

// Code is one of the closed set of machine-readable error codes a handler
// can return.
type Code string

const (
	CodeNodeNotFound           Code = "node_not_found"
	CodeProjectNotFound        Code = "project_not_found"
	CodeRevMismatch            Code = "rev_mismatch"
	CodeCycleDetected          Code = "cycle_detected"
	CodeDuplicateEdge          Code = "duplicate_edge"
	CodeInvalidParentRef       Code = "invalid_parent_ref"
	CodeInvalidDependsOn       Code = "invalid_depends_on"
	CodeDuplicateRef           Code = "duplicate_ref"
	CodeMissingParent          Code = "missing_parent"
	CodeDiscoveryPending       Code = "discovery_pending"
	CodeEvidenceRequired       Code = "evidence_required"
	CodeBlockedReasonRequired  Code = "blocked_reason_required"
	CodeUnresolvedChildren     Code = "unresolved_children"
	CodeStrictModeViolation    Code = "strict_mode_violation"
	CodeInvalidCategory        Code = "invalid_category"
	CodeInvalidFinding         Code = "invalid_finding"
	CodeCrossProject           Code = "cross_project"
	CodeEdgeRejected           Code = "edge_rejected"
	CodeFreeTierLimit          Code = "free_tier_limit"
	CodeInvalidInput           Code = "invalid_input"
	CodeInternal               Code = "internal"
)

// Error is the structured error every handler and lower layer returns.
// Message names the offending entity; Remediation states what the caller
// should do about it. Transport-layer code (out of scope for this core)
// type-asserts this to build the {code, message} response envelope.
type Error struct {
	Code        Code
	Message     string
	Remediation string
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an Error with the given code and pre-formatted message.
func New(code Code, message, remediation string) *Error {
	return &Error{Code: code, Message: message, Remediation: remediation}
}

// NodeNotFound builds a CodeNodeNotFound error naming the offending id.
func NodeNotFound(id string) *Error {
	return New(CodeNodeNotFound, fmt.Sprintf("no node with id %q", id),
		"re-check the id, e.g. via graph_query or graph_context on a known ancestor")
}

// ProjectNotFound builds a CodeProjectNotFound error naming the project.
func ProjectNotFound(project string) *Error {
	return New(CodeProjectNotFound, fmt.Sprintf("no project named %q", project),
		"call graph_open with a project name to create its root, or graph_open with no project to list existing projects")
}

// RevMismatch builds a CodeRevMismatch error naming actual vs expected.
func RevMismatch(id string, expected, actual int64) *Error {
	return New(CodeRevMismatch,
		fmt.Sprintf("node %s is at rev %d, expected %d", id, actual, expected),
		"re-read the node with graph_context and retry the update against the current rev")
}

// Cycle builds a CodeCycleDetected error naming both endpoints.
func Cycle(from, to string) *Error {
	return New(CodeCycleDetected,
		fmt.Sprintf("adding depends_on from %s to %s would create a cycle", from, to),
		"remove or redirect one of the edges on the path between these two nodes")
}

// DiscoveryPending builds a CodeDiscoveryPending error naming the parent.
func DiscoveryPending(parentID string) *Error {
	return New(CodeDiscoveryPending,
		fmt.Sprintf("node %s has discovery=pending and cannot receive children yet", parentID),
		fmt.Sprintf("call graph_update with updates=[{id:%q, discovery:\"done\"}] first", parentID))
}

// EvidenceRequired builds a CodeEvidenceRequired error naming the node.
func EvidenceRequired(id string) *Error {
	return New(CodeEvidenceRequired,
		fmt.Sprintf("node %s cannot be resolved without evidence", id),
		"pass add_evidence on the update, or use graph_resolve which assembles evidence for you")
}

// BlockedReasonRequired builds a CodeBlockedReasonRequired error.
func BlockedReasonRequired(id string) *Error {
	return New(CodeBlockedReasonRequired,
		fmt.Sprintf("node %s cannot be blocked without a blocked_reason", id),
		"include blocked_reason in the same update")
}

// UnresolvedChildren builds a CodeUnresolvedChildren error.
func UnresolvedChildren(id string, unresolved int) *Error {
	return New(CodeUnresolvedChildren,
		fmt.Sprintf("node %s has %d unresolved child(ren) and cannot be manually resolved", id, unresolved),
		"resolve the children first, or let the auto-resolve cascade close this node")
}

// StrictModeViolation builds a CodeStrictModeViolation error.
func StrictModeViolation(id, missing string) *Error {
	return New(CodeStrictModeViolation,
		fmt.Sprintf("node %s's project is strict and is missing: %s", id, missing),
		"supply a note, a traceable artifact (git or test), and at least one context link before resolving")
}

// CrossProject builds a CodeCrossProject error.
func CrossProject(a, b string) *Error {
	return New(CodeCrossProject,
		fmt.Sprintf("%s and %s belong to different projects", a, b),
		"dependency and move operations cannot cross project boundaries")
}
