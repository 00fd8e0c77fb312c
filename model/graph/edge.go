package graph

// Condition controls when an edge is eligible for traversal.
type Condition string

const (
	OnSuccess   Condition = "on_success"
	OnFailure   Condition = "on_failure"
	Always      Condition = "always"
	Conditional Condition = "conditional"
)

// Edge is a directed, conditioned connection between two nodes.  For a given
// source node edges are totally ordered by Priority (higher first), then by
// declaration order.
type Edge struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Source    string    `json:"source" yaml:"source"`
	Target    string    `json:"target" yaml:"target"`
	Condition Condition `json:"condition" yaml:"condition"`
	When      string    `json:"when,omitempty" yaml:"when,omitempty"`
	Priority  int       `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Clone creates a copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
