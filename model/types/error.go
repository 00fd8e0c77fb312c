package types

import (
	"fmt"
	"time"
)

// MissingInputError reports a read of a memory key that no upstream node has
// produced.  It names both the key and the node that required it so that a
// malformed graph can be diagnosed from the error alone.
type MissingInputError struct {
	Node string
	Key  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("node %s requires memory key %q which is not present", e.Node, e.Key)
}

// UndeclaredOutputError reports an attempt to write a memory key the node has
// not declared in its output keys.
type UndeclaredOutputError struct {
	Node string
	Key  string
}

func (e *UndeclaredOutputError) Error() string {
	return fmt.Sprintf("node %s attempted to write undeclared output key %q", e.Node, e.Key)
}

// DeadEndError reports that no outgoing edge matched a node result and the
// node is neither terminal nor a pause point.
type DeadEndError struct {
	Node string
}

func (e *DeadEndError) Error() string {
	return fmt.Sprintf("no matching edge from node %s", e.Node)
}

// ResumeError reports a resume attempt that does not match the entry point
// recorded when the session was suspended.
type ResumeError struct {
	Session   string
	Requested string
	Pending   string
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("session %s expects resume entry %q, got %q", e.Session, e.Pending, e.Requested)
}

// CapabilityError wraps a failure of an external collaborator (generator or
// tool).  It is recoverable through on_failure edges.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// CapabilityTimeout reports an external collaborator call that did not return
// within the caller-specified timeout.
type CapabilityTimeout struct {
	Capability string
	Timeout    time.Duration
}

func (e *CapabilityTimeout) Error() string {
	return fmt.Sprintf("capability %s timed out after %s", e.Capability, e.Timeout)
}

// ExecutionBudgetError reports that a single invocation exceeded the hard
// iteration ceiling, guarding against cyclic graphs that evade validation.
type ExecutionBudgetError struct {
	Session string
	Limit   int
}

func (e *ExecutionBudgetError) Error() string {
	return fmt.Sprintf("session %s exceeded execution budget of %d steps", e.Session, e.Limit)
}

// StepBudgetError reports a tool node whose reason/act loop exhausted its
// configured step budget.
type StepBudgetError struct {
	Node  string
	Limit int
}

func (e *StepBudgetError) Error() string {
	return fmt.Sprintf("node %s exceeded tool step budget of %d", e.Node, e.Limit)
}

// ValidationError aggregates structural issues that block a graph from
// executing.
type ValidationError struct {
	Graph  string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph %s is invalid: %d issue(s), first: %s", e.Graph, len(e.Issues), first(e.Issues))
}

func first(issues []string) string {
	if len(issues) == 0 {
		return ""
	}
	return issues[0]
}
