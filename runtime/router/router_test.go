package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/model/types"
	"github.com/arcflow/arcflow/runtime/execution"
)

func reviewGraph() *graph.Graph {
	g := graph.NewGraph("review")
	g.AddNode("score", graph.KindFunction)
	g.AddNode("publish", graph.KindFunction)
	g.AddNode("revise", graph.KindFunction)
	g.AddNode("escalate", graph.KindFunction)
	g.AddNode("cleanup", graph.KindFunction)
	g.ConnectWhen("score", "publish", "score >= 0.8").Priority = 10
	g.ConnectWhen("score", "revise", "score < 0.8").Priority = 5
	g.Connect("score", "escalate", graph.OnFailure)
	g.Connect("score", "cleanup", graph.Always).Priority = -1
	return g
}

func TestSelectNext(t *testing.T) {
	svc := New()
	g := reviewGraph()

	testCases := []struct {
		description string
		result      *execution.NodeResult
		memory      map[string]interface{}
		expected    []string
		expectDead  bool
	}{
		{
			description: "high score takes the high priority conditional",
			result:      execution.NewSuccess("score", nil),
			memory:      map[string]interface{}{"score": 0.92},
			expected:    []string{"publish"},
		},
		{
			description: "low score falls through to the lower priority conditional",
			result:      execution.NewSuccess("score", nil),
			memory:      map[string]interface{}{"score": 0.41},
			expected:    []string{"revise"},
		},
		{
			description: "failure routes along on_failure before the always edge",
			result:      execution.NewFailure("score", errors.New("model unavailable")),
			memory:      map[string]interface{}{"score": 0.92},
			expected:    []string{"escalate"},
		},
		{
			description: "result outputs shadow memory in conditions",
			result:      execution.NewSuccess("score", map[string]interface{}{"score": 0.95}),
			memory:      map[string]interface{}{"score": 0.1},
			expected:    []string{"publish"},
		},
	}

	for _, testCase := range testCases {
		memory := execution.NewMemory()
		memory.Restore(testCase.memory)
		targets, err := svc.SelectNext(g, testCase.result, memory)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expected, targets, testCase.description)
	}
}

func TestSelectNext_AlwaysFallback(t *testing.T) {
	svc := New()
	g := graph.NewGraph("fallback")
	g.AddNode("work", graph.KindFunction)
	g.AddNode("next", graph.KindFunction)
	g.Connect("work", "next", graph.Always)

	memory := execution.NewMemory()
	targets, err := svc.SelectNext(g, execution.NewFailure("work", errors.New("boom")), memory)
	require.NoError(t, err)
	assert.Equal(t, []string{"next"}, targets)
}

func TestSelectNext_EqualPriorityGroup(t *testing.T) {
	svc := New()
	g := graph.NewGraph("fanout")
	g.AddNode("split", graph.KindFunction)
	g.AddNode("left", graph.KindFunction)
	g.AddNode("right", graph.KindFunction)
	g.Connect("split", "left", graph.OnSuccess)
	g.Connect("split", "right", graph.OnSuccess)

	memory := execution.NewMemory()
	targets, err := svc.SelectNext(g, execution.NewSuccess("split", nil), memory)
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "right"}, targets)
}

func TestSelectNext_ObjectValuedCondition(t *testing.T) {
	svc := New()
	g := graph.NewGraph("objects")
	g.AddNode("check", graph.KindFunction)
	g.AddNode("matched", graph.KindFunction)
	g.AddNode("fallback", graph.KindFunction)
	g.ConnectWhen("check", "matched", "input == expected").Priority = 1
	g.Connect("check", "fallback", graph.Always)

	memory := execution.NewMemory()
	memory.Restore(map[string]interface{}{
		"input":    map[string]interface{}{"city": "SF"},
		"expected": map[string]interface{}{"city": "SF"},
	})
	targets, err := svc.SelectNext(g, execution.NewSuccess("check", nil), memory)
	require.NoError(t, err)
	assert.Equal(t, []string{"matched"}, targets)
}

func TestSelectNext_ConditionalTieDeclarationOrder(t *testing.T) {
	svc := New()
	g := graph.NewGraph("tie")
	g.AddNode("decide", graph.KindFunction)
	g.AddNode("first", graph.KindFunction)
	g.AddNode("second", graph.KindFunction)
	g.ConnectWhen("decide", "first", "score > 0")
	g.ConnectWhen("decide", "second", "score > 0")

	memory := execution.NewMemory()
	memory.Restore(map[string]interface{}{"score": 1})
	for i := 0; i < 5; i++ {
		targets, err := svc.SelectNext(g, execution.NewSuccess("decide", nil), memory)
		require.NoError(t, err)
		require.Equal(t, []string{"first", "second"}, targets)
	}
}

func TestSelectNext_DeadEnd(t *testing.T) {
	svc := New()
	g := graph.NewGraph("dead")
	g.AddNode("only", graph.KindFunction)
	g.AddNode("happy", graph.KindFunction)
	g.Connect("only", "happy", graph.OnSuccess)

	memory := execution.NewMemory()
	_, err := svc.SelectNext(g, execution.NewFailure("only", errors.New("boom")), memory)
	var dead *types.DeadEndError
	require.ErrorAs(t, err, &dead)
	assert.Equal(t, "only", dead.Node)
}
