// Package dispatcher executes a single node: it renders prompts, calls the
// generation and tool capabilities, evaluates router branches and applies
// registered transforms.  It never touches session memory or routing; the
// executor owns those.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/model/types"
	"github.com/arcflow/arcflow/runtime/evaluator"
	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/capability"
)

// DefaultMaxToolSteps bounds the reason/act loop of tool nodes that do not
// set their own budget.
const DefaultMaxToolSteps = 8

// branchOutputKey receives the selected router label when the node declares
// no output key.
const branchOutputKey = "branch"

// Service dispatches nodes to their capability or evaluator.
type Service struct {
	generator  capability.Generator
	tools      *capability.Registry
	transforms *Transforms
	logger     zerolog.Logger
}

// New creates a dispatcher.
func New(generator capability.Generator, tools *capability.Registry, transforms *Transforms, logger zerolog.Logger) *Service {
	if tools == nil {
		tools = capability.NewRegistry()
	}
	if transforms == nil {
		transforms = NewTransforms()
	}
	return &Service{generator: generator, tools: tools, transforms: transforms, logger: logger}
}

// Transforms exposes the transform registry for registration.
func (s *Service) Transforms() *Transforms {
	return s.transforms
}

// Execute runs a single node over the supplied inputs and returns its result.
// Failures are reported as failed results, never as panics; the caller routes
// them through on_failure edges.
func (s *Service) Execute(ctx context.Context, node *graph.Node, inputs map[string]interface{}) *execution.NodeResult {
	switch node.Kind {
	case graph.KindGeneration:
		return s.executeGeneration(ctx, node, inputs)
	case graph.KindTool:
		return s.executeTool(ctx, node, inputs)
	case graph.KindRouter:
		return s.executeRouter(node, inputs)
	case graph.KindFunction:
		return s.executeFunction(ctx, node, inputs)
	default:
		return execution.NewFailure(node.ID, fmt.Errorf("node %s has unknown kind %q", node.ID, node.Kind))
	}
}

func (s *Service) executeGeneration(ctx context.Context, node *graph.Node, inputs map[string]interface{}) *execution.NodeResult {
	if s.generator == nil {
		return execution.NewFailure(node.ID, fmt.Errorf("node %s requires a generator capability", node.ID))
	}
	prompt := RenderPrompt(node.Generation.Prompt, inputs)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return execution.NewFailure(node.ID, err)
	}
	outputs, err := s.parseOutputs(node, text)
	if err != nil {
		return execution.NewFailure(node.ID, err)
	}
	return execution.NewSuccess(node.ID, outputs)
}

// parseOutputs maps generated text onto the node's declared output keys.  A
// JSON object covering every key is used as-is; otherwise a single declared
// key receives the whole text.
func (s *Service) parseOutputs(node *graph.Node, text string) (map[string]interface{}, error) {
	if decoded, ok := decodeObject(text); ok {
		outputs := map[string]interface{}{}
		complete := true
		for _, key := range node.OutputKeys {
			value, present := decoded[key]
			if !present {
				complete = false
				break
			}
			outputs[key] = value
		}
		if complete && len(node.OutputKeys) > 0 {
			return outputs, nil
		}
	}
	if len(node.OutputKeys) == 1 {
		return map[string]interface{}{node.OutputKeys[0]: text}, nil
	}
	return nil, fmt.Errorf("node %s expects keys %v but the generated text is not a matching JSON object", node.ID, node.OutputKeys)
}

func decodeObject(text string) (map[string]interface{}, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

// toolDirective is the envelope the generation capability emits on each turn
// of a tool node: either a tool call or a completion with final outputs.
type toolDirective struct {
	Tool    string                 `json:"tool,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`
	Done    bool                   `json:"done,omitempty"`
	Outputs map[string]interface{} `json:"outputs,omitempty"`
}

func (s *Service) executeTool(ctx context.Context, node *graph.Node, inputs map[string]interface{}) *execution.NodeResult {
	if s.generator == nil {
		return execution.NewFailure(node.ID, fmt.Errorf("node %s requires a generator capability", node.ID))
	}
	maxSteps := node.Tool.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxToolSteps
	}
	var transcript strings.Builder
	transcript.WriteString(RenderPrompt(node.Tool.Prompt, inputs))
	if len(node.Tool.Tools) > 0 {
		transcript.WriteString("\n\nAvailable tools: " + strings.Join(node.Tool.Tools, ", "))
	}
	for step := 0; step < maxSteps; step++ {
		text, err := s.generator.Generate(ctx, transcript.String())
		if err != nil {
			return execution.NewFailure(node.ID, err)
		}
		directive, ok := decodeDirective(text)
		if !ok {
			return execution.NewFailure(node.ID, fmt.Errorf("node %s received an undecodable tool directive", node.ID))
		}
		if directive.Done {
			return execution.NewSuccess(node.ID, directive.Outputs)
		}
		if !allowed(node.Tool.Tools, directive.Tool) {
			return execution.NewFailure(node.ID, fmt.Errorf("node %s requested tool %q outside its allow list", node.ID, directive.Tool))
		}
		tool, err := s.tools.Lookup(directive.Tool)
		if err != nil {
			return execution.NewFailure(node.ID, err)
		}
		observation, err := tool.Invoke(ctx, directive.Args)
		if err != nil {
			return execution.NewFailure(node.ID, err)
		}
		s.logger.Debug().Str("node", node.ID).Str("tool", directive.Tool).Int("step", step+1).Msg("tool invoked")
		transcript.WriteString(fmt.Sprintf("\n\nObservation from %s: %s", directive.Tool, stringify(observation)))
	}
	return execution.NewFailure(node.ID, &types.StepBudgetError{Node: node.ID, Limit: maxSteps})
}

func decodeDirective(text string) (*toolDirective, bool) {
	decoded, ok := decodeObject(text)
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(decoded)
	if err != nil {
		return nil, false
	}
	directive := &toolDirective{}
	if err := json.Unmarshal(data, directive); err != nil {
		return nil, false
	}
	if !directive.Done && directive.Tool == "" {
		return nil, false
	}
	return directive, true
}

func allowed(allowList []string, tool string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, name := range allowList {
		if name == tool {
			return true
		}
	}
	return false
}

func (s *Service) executeRouter(node *graph.Node, inputs map[string]interface{}) *execution.NodeResult {
	outputKey := branchOutputKey
	if len(node.OutputKeys) > 0 {
		outputKey = node.OutputKeys[0]
	}
	for _, branch := range node.Router.Branches {
		matched, err := evaluator.EvaluateBool(branch.When, inputs)
		if err != nil {
			return execution.NewFailure(node.ID, fmt.Errorf("node %s branch %q failed: %w", node.ID, branch.When, err))
		}
		if matched {
			return execution.NewSuccess(node.ID, map[string]interface{}{outputKey: branch.Label})
		}
	}
	if node.Router.Default != "" {
		return execution.NewSuccess(node.ID, map[string]interface{}{outputKey: node.Router.Default})
	}
	return execution.NewFailure(node.ID, fmt.Errorf("node %s matched no branch and has no default", node.ID))
}

func (s *Service) executeFunction(ctx context.Context, node *graph.Node, inputs map[string]interface{}) *execution.NodeResult {
	outputs, err := s.transforms.Apply(ctx, node.Function.Ref, inputs)
	if err != nil {
		return execution.NewFailure(node.ID, err)
	}
	return execution.NewSuccess(node.ID, outputs)
}
