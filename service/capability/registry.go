package capability

import (
	"fmt"
	"sort"
	"sync"
)

// Registry indexes tools by name.  Registration normally happens at startup;
// the registry is safe for concurrent lookups during execution.
type Registry struct {
	mux   sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.tools[tool.Name()] = tool
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return tool, nil
}

// Names lists registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
