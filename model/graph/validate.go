package graph

import (
	"fmt"

	"github.com/arcflow/arcflow/model/types"
)

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueUnknownRef       IssueKind = "unknownRef"
	IssueDuplicateNode    IssueKind = "duplicateNode"
	IssueMissingEntry     IssueKind = "missingEntry"
	IssueOrphanNode       IssueKind = "orphanNode"
	IssueDeadEndNode      IssueKind = "deadEndNode"
	IssueUnreachableNode  IssueKind = "unreachableNode"
	IssuePauseTerminal    IssueKind = "pauseTerminal"
	IssueMissingResume    IssueKind = "missingResume"
	IssueInvalidNode      IssueKind = "invalidNode"
	IssueInvalidEdge      IssueKind = "invalidEdge"
	IssueUnsatisfiedInput IssueKind = "unsatisfiedInput"
)

// Issue is a single validation finding tied to a node, edge or key.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Node    string    `json:"node,omitempty"`
	Edge    string    `json:"edge,omitempty"`
	Key     string    `json:"key,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string { return i.Message }

// ValidationResult holds the findings of a structural validation pass.
// Errors block execution; warnings do not.
type ValidationResult struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Valid reports whether the graph may be executed.
func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// Err converts blocking findings into a *types.ValidationError, or nil.
func (r *ValidationResult) Err(graphID string) error {
	if r.Valid() {
		return nil
	}
	issues := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		issues = append(issues, issue.Message)
	}
	return &types.ValidationError{Graph: graphID, Issues: issues}
}

// Validate runs all structural checks over the graph definition.  Validation
// is pure: it never mutates the graph and repeated calls return identical
// results.
func (g *Graph) Validate() *ValidationResult {
	result := &ValidationResult{}
	g.checkNodes(result)
	g.checkEdges(result)
	g.checkEntryPoints(result)
	g.checkConnectivity(result)
	g.checkReachability(result)
	g.checkPauseContract(result)
	g.checkInputSatisfiability(result)
	return result
}

func (r *ValidationResult) errorf(issue Issue, format string, args ...interface{}) {
	issue.Message = fmt.Sprintf(format, args...)
	r.Errors = append(r.Errors, issue)
}

func (r *ValidationResult) warnf(issue Issue, format string, args ...interface{}) {
	issue.Message = fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, issue)
}

func (g *Graph) checkNodes(result *ValidationResult) {
	seen := map[string]bool{}
	for _, node := range g.Nodes {
		if node.ID == "" {
			result.errorf(Issue{Kind: IssueInvalidNode}, "node with empty id")
			continue
		}
		if seen[node.ID] {
			result.errorf(Issue{Kind: IssueDuplicateNode, Node: node.ID}, "duplicate node id %q", node.ID)
			continue
		}
		seen[node.ID] = true
		switch node.Kind {
		case KindGeneration:
			if node.Generation == nil {
				result.errorf(Issue{Kind: IssueInvalidNode, Node: node.ID}, "generation node %q has no generation config", node.ID)
			}
		case KindTool:
			if node.Tool == nil {
				result.errorf(Issue{Kind: IssueInvalidNode, Node: node.ID}, "tool node %q has no tool config", node.ID)
			}
		case KindRouter:
			if node.Router == nil || len(node.Router.Branches) == 0 {
				result.errorf(Issue{Kind: IssueInvalidNode, Node: node.ID}, "router node %q has no branches", node.ID)
			}
		case KindFunction:
			if node.Function == nil || node.Function.Ref == "" {
				result.errorf(Issue{Kind: IssueInvalidNode, Node: node.ID}, "function node %q has no transform reference", node.ID)
			}
		default:
			result.errorf(Issue{Kind: IssueInvalidNode, Node: node.ID}, "node %q has unknown kind %q", node.ID, node.Kind)
		}
	}
}

func (g *Graph) checkEdges(result *ValidationResult) {
	for _, edge := range g.Edges {
		if g.Node(edge.Source) == nil {
			result.errorf(Issue{Kind: IssueUnknownRef, Edge: edge.ID, Node: edge.Source}, "edge %s references unknown source node %q", edge.ID, edge.Source)
		}
		if g.Node(edge.Target) == nil {
			result.errorf(Issue{Kind: IssueUnknownRef, Edge: edge.ID, Node: edge.Target}, "edge %s references unknown target node %q", edge.ID, edge.Target)
		}
		switch edge.Condition {
		case OnSuccess, OnFailure, Always:
			if edge.When != "" {
				result.errorf(Issue{Kind: IssueInvalidEdge, Edge: edge.ID}, "edge %s carries expression %q but is not conditional", edge.ID, edge.When)
			}
		case Conditional:
			if edge.When == "" {
				result.errorf(Issue{Kind: IssueInvalidEdge, Edge: edge.ID}, "conditional edge %s has no expression", edge.ID)
			}
		default:
			result.errorf(Issue{Kind: IssueInvalidEdge, Edge: edge.ID}, "edge %s has unknown condition %q", edge.ID, edge.Condition)
		}
	}
}

func (g *Graph) checkEntryPoints(result *ValidationResult) {
	if g.EntryNode == "" {
		result.errorf(Issue{Kind: IssueMissingEntry}, "graph has no entry node")
	} else if g.Node(g.EntryNode) == nil {
		result.errorf(Issue{Kind: IssueUnknownRef, Node: g.EntryNode}, "entry node %q is not defined", g.EntryNode)
	}
	for name, target := range g.EntryPoints {
		if g.Node(target) == nil {
			result.errorf(Issue{Kind: IssueUnknownRef, Node: target}, "entry point %q references unknown node %q", name, target)
		}
	}
	for _, id := range g.PauseNodes {
		if g.Node(id) == nil {
			result.errorf(Issue{Kind: IssueUnknownRef, Node: id}, "pause node %q is not defined", id)
		}
	}
	for _, id := range g.TerminalNodes {
		if g.Node(id) == nil {
			result.errorf(Issue{Kind: IssueUnknownRef, Node: id}, "terminal node %q is not defined", id)
		}
	}
}

// checkConnectivity flags orphans (no incoming edges on a node that is not an
// entry root) and dead ends (no outgoing edges on a node that is neither
// terminal nor a pause point).
func (g *Graph) checkConnectivity(result *ValidationResult) {
	roots := g.roots()
	for _, node := range g.Nodes {
		in := len(g.Incoming(node.ID))
		out := len(g.Outgoing(node.ID))
		if in == 0 && !roots[node.ID] {
			result.errorf(Issue{Kind: IssueOrphanNode, Node: node.ID}, "node %q has no incoming edges and is not an entry point", node.ID)
			continue
		}
		if out == 0 && !g.IsTerminal(node.ID) && !g.IsPause(node.ID) {
			result.errorf(Issue{Kind: IssueDeadEndNode, Node: node.ID}, "node %q has no outgoing edges and is not terminal", node.ID)
		}
	}
}

func (g *Graph) roots() map[string]bool {
	roots := map[string]bool{}
	if g.EntryNode != "" {
		roots[g.EntryNode] = true
	}
	for _, target := range g.EntryPoints {
		roots[target] = true
	}
	return roots
}

// checkReachability walks from the entry node and every named entry point;
// nodes outside the reachable set can never execute.
func (g *Graph) checkReachability(result *ValidationResult) {
	visited := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if visited[id] || g.Node(id) == nil {
			return
		}
		visited[id] = true
		for _, edge := range g.Outgoing(id) {
			walk(edge.Target)
		}
	}
	for id := range g.roots() {
		walk(id)
	}
	for _, node := range g.Nodes {
		if !visited[node.ID] {
			result.errorf(Issue{Kind: IssueUnreachableNode, Node: node.ID}, "node %q is unreachable from any entry point", node.ID)
		}
	}
}

// checkPauseContract enforces that pause and terminal sets are disjoint and
// that every pause node has its matching resume entry point.
func (g *Graph) checkPauseContract(result *ValidationResult) {
	for _, id := range g.PauseNodes {
		if g.IsTerminal(id) {
			result.errorf(Issue{Kind: IssuePauseTerminal, Node: id}, "node %q is both pause and terminal", id)
		}
		if _, ok := g.EntryPoint(ResumeEntryPoint(id)); !ok {
			result.errorf(Issue{Kind: IssueMissingResume, Node: id}, "pause node %q has no %q entry point", id, ResumeEntryPoint(id))
		}
	}
}

// checkInputSatisfiability propagates output keys forward to a fixpoint and
// warns about input keys no upstream path can provide.  The check is
// optimistic: a key reachable on any path counts as satisfiable, so findings
// are warnings, not errors.  Session input supplied at invocation time is out
// of static reach, which is another reason this cannot be a hard failure.
func (g *Graph) checkInputSatisfiability(result *ValidationResult) {
	available := map[string]map[string]bool{}
	for _, node := range g.Nodes {
		available[node.ID] = map[string]bool{}
	}
	for changed := true; changed; {
		changed = false
		for _, edge := range g.Edges {
			source, target := available[edge.Source], available[edge.Target]
			if source == nil || target == nil {
				continue
			}
			for key := range source {
				if !target[key] {
					target[key] = true
					changed = true
				}
			}
			if node := g.Node(edge.Source); node != nil {
				for _, key := range node.OutputKeys {
					if !target[key] {
						target[key] = true
						changed = true
					}
				}
			}
		}
	}
	for _, node := range g.Nodes {
		for _, key := range node.InputKeys {
			if !available[node.ID][key] {
				result.warnf(Issue{Kind: IssueUnsatisfiedInput, Node: node.ID, Key: key},
					"node %q input key %q is not produced by any upstream node; it must arrive as session input", node.ID, key)
			}
		}
	}
}
