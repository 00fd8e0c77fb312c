package execution

import (
	"sync"

	"github.com/arcflow/arcflow/model/types"
)

// InputKey is the reserved memory key under which invocation and resume
// payloads are stored.
const InputKey = "input"

// Memory is the per-session typed key/value store nodes read their inputs
// from and write their declared outputs to.  All access is guarded; nodes
// never share a reference to the underlying map.
type Memory struct {
	mux    sync.RWMutex
	values map[string]interface{}
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]interface{}{}}
}

// Read collects the requested keys for the given node.  A missing key aborts
// the read with a *types.MissingInputError naming the node and the key.
func (m *Memory) Read(node string, keys []string) (map[string]interface{}, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	inputs := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		value, ok := m.values[key]
		if !ok {
			return nil, &types.MissingInputError{Node: node, Key: key}
		}
		inputs[key] = value
	}
	return inputs, nil
}

// Apply commits node outputs after checking every key against the declared
// output set.  Validation happens before any write so a rejected batch leaves
// memory untouched.
func (m *Memory) Apply(node string, declared []string, outputs map[string]interface{}) error {
	allowed := make(map[string]bool, len(declared))
	for _, key := range declared {
		allowed[key] = true
	}
	for key := range outputs {
		if !allowed[key] {
			return &types.UndeclaredOutputError{Node: node, Key: key}
		}
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	for key, value := range outputs {
		m.values[key] = value
	}
	return nil
}

// Set writes a key without output declaration checks.  It serves the engine
// itself, for the reserved input key.
func (m *Memory) Set(key string, value interface{}) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.values[key] = value
}

// Get returns the value for a key.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

// Has reports whether the key is present.
func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Snapshot returns a shallow copy of all values.
func (m *Memory) Snapshot() map[string]interface{} {
	m.mux.RLock()
	defer m.mux.RUnlock()
	snapshot := make(map[string]interface{}, len(m.values))
	for key, value := range m.values {
		snapshot[key] = value
	}
	return snapshot
}

// Restore replaces the memory contents with the supplied values.
func (m *Memory) Restore(values map[string]interface{}) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.values = make(map[string]interface{}, len(values))
	for key, value := range values {
		m.values[key] = value
	}
}
