// Package capability declares the external collaborator contracts the engine
// depends on: text generation and tool invocation.  The engine treats both as
// opaque, failure prone calls reached only through these interfaces.
package capability

import "context"

// Generator produces text for a rendered prompt.  Implementations wrap a
// model endpoint; the engine never observes how the text is produced.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate delegates to the wrapped function.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Tool is an invocable external action available to tool nodes.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ToolFunc builds a Tool from a name and a function.
func ToolFunc(name string, fn func(ctx context.Context, args map[string]interface{}) (interface{}, error)) Tool {
	return &funcTool{name: name, fn: fn}
}

type funcTool struct {
	name string
	fn   func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

func (t *funcTool) Name() string { return t.name }

func (t *funcTool) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.fn(ctx, args)
}
