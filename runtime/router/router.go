// Package router selects the outgoing edges eligible after a node execution.
// Eligibility follows the edge condition; among eligible edges the highest
// priority wins, with declaration order breaking ties.
package router

import (
	"fmt"
	"sort"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/model/types"
	"github.com/arcflow/arcflow/runtime/evaluator"
	"github.com/arcflow/arcflow/runtime/execution"
)

// Service routes node results along graph edges.
type Service struct{}

// New creates a router.
func New() *Service {
	return &Service{}
}

// SelectNext returns the targets of the winning edge group for the given
// result, ordered by declaration.  All eligible edges sharing the highest
// priority are returned; callers advance them in order.  When no edge
// matches, a *types.DeadEndError is returned.
func (s *Service) SelectNext(g *graph.Graph, result *execution.NodeResult, memory *execution.Memory) ([]string, error) {
	eligible, err := s.eligible(g.Outgoing(result.Node), result, memory)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, &types.DeadEndError{Node: result.Node}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority > eligible[j].Priority
	})
	top := eligible[0].Priority
	var targets []string
	for _, edge := range eligible {
		if edge.Priority != top {
			break
		}
		targets = append(targets, edge.Target)
	}
	return targets, nil
}

func (s *Service) eligible(edges []*graph.Edge, result *execution.NodeResult, memory *execution.Memory) ([]*graph.Edge, error) {
	var matched []*graph.Edge
	for _, edge := range edges {
		ok, err := s.matches(edge, result, memory)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, edge)
		}
	}
	return matched, nil
}

func (s *Service) matches(edge *graph.Edge, result *execution.NodeResult, memory *execution.Memory) (bool, error) {
	switch edge.Condition {
	case graph.OnSuccess:
		return result.Succeeded(), nil
	case graph.OnFailure:
		return !result.Succeeded(), nil
	case graph.Always:
		return true, nil
	case graph.Conditional:
		vars := memory.Snapshot()
		for key, value := range result.Vars() {
			vars[key] = value
		}
		for key, value := range result.Outputs {
			vars[key] = value
		}
		ok, err := evaluator.EvaluateBool(edge.When, vars)
		if err != nil {
			return false, fmt.Errorf("edge %s condition failed: %w", edge.ID, err)
		}
		return ok, nil
	default:
		return false, fmt.Errorf("edge %s has unknown condition %q", edge.ID, edge.Condition)
	}
}
