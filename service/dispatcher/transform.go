package dispatcher

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/structology/conv"
	"github.com/viant/x"
)

// TransformFunc is a deterministic, side effect free function applied by a
// function node.  Input is either the raw input map or, when the transform
// declares an input type, a pointer to the converted struct.
type TransformFunc func(ctx context.Context, input interface{}) (map[string]interface{}, error)

type transformEntry struct {
	handler   TransformFunc
	inputType reflect.Type
}

// Transforms registers named transforms together with their optional typed
// inputs.  Declared input types are also published to the shared type
// registry so they stay addressable by name.
type Transforms struct {
	types     *x.Registry
	converter *conv.Converter
	mux       sync.RWMutex
	registry  map[string]*transformEntry
}

// NewTransforms creates an empty transform registry.
func NewTransforms() *Transforms {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	return &Transforms{
		types:     x.NewRegistry(),
		converter: conv.NewConverter(options),
		registry:  map[string]*transformEntry{},
	}
}

// TransformOption customises a transform registration.
type TransformOption func(*transformEntry)

// WithInputType declares the struct the raw input map is converted into
// before the handler runs.
func WithInputType(prototype interface{}) TransformOption {
	return func(entry *transformEntry) {
		rType := reflect.TypeOf(prototype)
		if rType.Kind() == reflect.Ptr {
			rType = rType.Elem()
		}
		entry.inputType = rType
	}
}

// Register adds a named transform.
func (t *Transforms) Register(name string, handler TransformFunc, options ...TransformOption) {
	entry := &transformEntry{handler: handler}
	for _, option := range options {
		option(entry)
	}
	t.mux.Lock()
	defer t.mux.Unlock()
	t.registry[name] = entry
	if entry.inputType != nil {
		t.types.Register(x.NewType(entry.inputType, x.WithName(name+"Input")))
	}
}

// Apply runs the named transform over the inputs.
func (t *Transforms) Apply(ctx context.Context, name string, inputs map[string]interface{}) (map[string]interface{}, error) {
	t.mux.RLock()
	entry, ok := t.registry[name]
	t.mux.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transform: %s", name)
	}
	var input interface{} = inputs
	if entry.inputType != nil {
		instance := reflect.New(entry.inputType).Interface()
		if err := t.converter.Convert(inputs, instance); err != nil {
			return nil, fmt.Errorf("failed to convert input for transform %s: %w", name, err)
		}
		input = instance
	}
	return entry.handler(ctx, input)
}

// Has reports whether the transform is registered.
func (t *Transforms) Has(name string) bool {
	t.mux.RLock()
	defer t.mux.RUnlock()
	_, ok := t.registry[name]
	return ok
}
