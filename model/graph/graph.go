package graph

import (
	"fmt"
	"sync"
)

// Graph is the validated, immutable execution topology: nodes, conditioned
// edges, named entry points and the pause/terminal node sets.  A graph is
// shared read-only across all sessions; it is never mutated during execution.
type Graph struct {
	ID            string            `json:"id" yaml:"id"`
	Nodes         []*Node           `json:"nodes" yaml:"nodes"`
	Edges         []*Edge           `json:"edges" yaml:"edges"`
	EntryNode     string            `json:"entryNode" yaml:"entryNode"`
	EntryPoints   map[string]string `json:"entryPoints,omitempty" yaml:"entryPoints,omitempty"`
	PauseNodes    []string          `json:"pauseNodes,omitempty" yaml:"pauseNodes,omitempty"`
	TerminalNodes []string          `json:"terminalNodes,omitempty" yaml:"terminalNodes,omitempty"`

	mu       sync.Mutex
	nodeByID map[string]*Node
	outgoing map[string][]*Edge
	incoming map[string][]*Edge
	pause    map[string]bool
	terminal map[string]bool
}

// NewGraph creates an empty graph with the given identifier.
func NewGraph(id string) *Graph {
	return &Graph{ID: id, EntryPoints: map[string]string{}}
}

// AddNode appends a node and returns it for fluent configuration.
func (g *Graph) AddNode(id string, kind Kind) *Node {
	node := &Node{ID: id, Kind: kind}
	g.Nodes = append(g.Nodes, node)
	g.invalidate()
	return node
}

// Connect appends an edge from source to target with the given condition.
func (g *Graph) Connect(source, target string, condition Condition) *Edge {
	edge := &Edge{
		ID:        fmt.Sprintf("%s->%s/%d", source, target, len(g.Edges)),
		Source:    source,
		Target:    target,
		Condition: condition,
	}
	g.Edges = append(g.Edges, edge)
	g.invalidate()
	return edge
}

// ConnectWhen appends a conditional edge guarded by the supplied expression.
func (g *Graph) ConnectWhen(source, target, when string) *Edge {
	edge := g.Connect(source, target, Conditional)
	edge.When = when
	return edge
}

// WithEntryNode sets the default entry node.
func (g *Graph) WithEntryNode(id string) *Graph {
	g.EntryNode = id
	return g
}

// WithEntryPoint maps a named entry point to a node.
func (g *Graph) WithEntryPoint(name, nodeID string) *Graph {
	if g.EntryPoints == nil {
		g.EntryPoints = map[string]string{}
	}
	g.EntryPoints[name] = nodeID
	return g
}

// WithPauseNode marks a node as a pause point and registers the matching
// "<id>_resume" entry point targeting resumeTo.
func (g *Graph) WithPauseNode(id, resumeTo string) *Graph {
	g.PauseNodes = append(g.PauseNodes, id)
	g.WithEntryPoint(ResumeEntryPoint(id), resumeTo)
	g.invalidate()
	return g
}

// WithTerminalNode marks a node as terminal.
func (g *Graph) WithTerminalNode(id string) *Graph {
	g.TerminalNodes = append(g.TerminalNodes, id)
	g.invalidate()
	return g
}

// ResumeEntryPoint returns the entry point name that resumes execution after
// the given pause node.
func ResumeEntryPoint(pauseNode string) string {
	return pauseNode + "_resume"
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	g.ensureIndex()
	return g.nodeByID[id]
}

// Outgoing returns the edges leaving the given node in declaration order.
func (g *Graph) Outgoing(id string) []*Edge {
	g.ensureIndex()
	return g.outgoing[id]
}

// Incoming returns the edges entering the given node in declaration order.
func (g *Graph) Incoming(id string) []*Edge {
	g.ensureIndex()
	return g.incoming[id]
}

// IsPause reports whether the node suspends the session after executing.
func (g *Graph) IsPause(id string) bool {
	g.ensureIndex()
	return g.pause[id]
}

// IsTerminal reports whether the node completes the session.
func (g *Graph) IsTerminal(id string) bool {
	g.ensureIndex()
	return g.terminal[id]
}

// EntryPoint resolves a named entry point to its node id.
func (g *Graph) EntryPoint(name string) (string, bool) {
	id, ok := g.EntryPoints[name]
	return id, ok
}

// invalidate drops derived lookup maps; they are rebuilt lazily.  Mutating
// builder calls are expected to happen before the graph is shared.
func (g *Graph) invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodeByID = nil
}

func (g *Graph) ensureIndex() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nodeByID != nil {
		return
	}
	g.nodeByID = make(map[string]*Node, len(g.Nodes))
	for _, node := range g.Nodes {
		g.nodeByID[node.ID] = node
	}
	g.outgoing = make(map[string][]*Edge)
	g.incoming = make(map[string][]*Edge)
	for _, edge := range g.Edges {
		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
		g.incoming[edge.Target] = append(g.incoming[edge.Target], edge)
	}
	g.pause = make(map[string]bool, len(g.PauseNodes))
	for _, id := range g.PauseNodes {
		g.pause[id] = true
	}
	g.terminal = make(map[string]bool, len(g.TerminalNodes))
	for _, id := range g.TerminalNodes {
		g.terminal[id] = true
	}
}

// Clone creates a deep copy of the graph definition.  Derived indexes are
// rebuilt lazily on the clone.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	clone := &Graph{ID: g.ID, EntryNode: g.EntryNode}
	for _, node := range g.Nodes {
		clone.Nodes = append(clone.Nodes, node.Clone())
	}
	for _, edge := range g.Edges {
		clone.Edges = append(clone.Edges, edge.Clone())
	}
	if g.EntryPoints != nil {
		clone.EntryPoints = make(map[string]string, len(g.EntryPoints))
		for k, v := range g.EntryPoints {
			clone.EntryPoints[k] = v
		}
	}
	clone.PauseNodes = append([]string(nil), g.PauseNodes...)
	clone.TerminalNodes = append([]string(nil), g.TerminalNodes...)
	return clone
}
