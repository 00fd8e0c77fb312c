package graph

// Kind discriminates the node variants.  Dispatch switches on the tag rather
// than on an interface hierarchy so that exhaustiveness stays checkable.
type Kind string

const (
	KindGeneration Kind = "generation"
	KindTool       Kind = "tool"
	KindRouter     Kind = "router"
	KindFunction   Kind = "function"
)

type (
	// Node is a unit of work in the graph.  Exactly one of the variant
	// configurations matching Kind is expected to be set.
	Node struct {
		ID         string      `json:"id" yaml:"id"`
		Kind       Kind        `json:"kind" yaml:"kind"`
		InputKeys  []string    `json:"inputKeys,omitempty" yaml:"inputKeys,omitempty"`
		OutputKeys []string    `json:"outputKeys,omitempty" yaml:"outputKeys,omitempty"`
		Generation *Generation `json:"generation,omitempty" yaml:"generation,omitempty"`
		Tool       *Tool       `json:"tool,omitempty" yaml:"tool,omitempty"`
		Router     *Router     `json:"router,omitempty" yaml:"router,omitempty"`
		Function   *Function   `json:"function,omitempty" yaml:"function,omitempty"`
	}

	// Generation configures a node that delegates to the generation
	// capability.  Prompt is a template with ${key} placeholders resolved
	// from the node's input keys.
	Generation struct {
		Prompt string `json:"prompt" yaml:"prompt"`
	}

	// Tool configures a node that may invoke external tools in a
	// reason/act loop until the delegate signals completion or MaxSteps is
	// exhausted.
	Tool struct {
		Prompt   string   `json:"prompt" yaml:"prompt"`
		Tools    []string `json:"tools,omitempty" yaml:"tools,omitempty"`
		MaxSteps int      `json:"maxSteps,omitempty" yaml:"maxSteps,omitempty"`
	}

	// Router configures a node that evaluates branch conditions over memory
	// and writes the selected label to its output key.
	Router struct {
		Branches []*Branch `json:"branches" yaml:"branches"`
		Default  string    `json:"default,omitempty" yaml:"default,omitempty"`
	}

	// Branch pairs a condition expression with the label written when the
	// expression evaluates truthy.  Branches are evaluated in declaration
	// order; the first match wins.
	Branch struct {
		When  string `json:"when" yaml:"when"`
		Label string `json:"label" yaml:"label"`
	}

	// Function configures a node that applies a registered, deterministic,
	// side-effect-free transform.
	Function struct {
		Ref string `json:"ref" yaml:"ref"`
	}
)

// WithInputKeys sets the memory keys the node requires.
func (n *Node) WithInputKeys(keys ...string) *Node {
	n.InputKeys = keys
	return n
}

// WithOutputKeys sets the memory keys the node is permitted to write.
func (n *Node) WithOutputKeys(keys ...string) *Node {
	n.OutputKeys = keys
	return n
}

// Clone creates a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := &Node{ID: n.ID, Kind: n.Kind}
	if n.InputKeys != nil {
		clone.InputKeys = append([]string(nil), n.InputKeys...)
	}
	if n.OutputKeys != nil {
		clone.OutputKeys = append([]string(nil), n.OutputKeys...)
	}
	if n.Generation != nil {
		cp := *n.Generation
		clone.Generation = &cp
	}
	if n.Tool != nil {
		cp := *n.Tool
		cp.Tools = append([]string(nil), n.Tool.Tools...)
		clone.Tool = &cp
	}
	if n.Router != nil {
		cp := &Router{Default: n.Router.Default}
		for _, b := range n.Router.Branches {
			bc := *b
			cp.Branches = append(cp.Branches, &bc)
		}
		clone.Router = cp
	}
	if n.Function != nil {
		cp := *n.Function
		clone.Function = &cp
	}
	return clone
}
