package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_Builders(t *testing.T) {
	g := NewGraph("demo")
	g.AddNode("start", KindFunction).
		WithInputKeys("seed").
		WithOutputKeys("value").
		Function = &Function{Ref: "seed"}
	g.AddNode("wait", KindFunction).Function = &Function{Ref: "hold"}
	g.AddNode("finish", KindFunction).Function = &Function{Ref: "finish"}
	g.Connect("start", "wait", OnSuccess).Priority = 5
	g.ConnectWhen("start", "finish", "value > 10")
	g.WithEntryNode("start").
		WithPauseNode("wait", "finish").
		WithTerminalNode("finish")

	assert.Equal(t, "start", g.EntryNode)
	require.NotNil(t, g.Node("wait"))
	assert.Nil(t, g.Node("ghost"))
	assert.True(t, g.IsPause("wait"))
	assert.True(t, g.IsTerminal("finish"))
	assert.False(t, g.IsTerminal("wait"))

	outgoing := g.Outgoing("start")
	require.Len(t, outgoing, 2)
	assert.Equal(t, 5, outgoing[0].Priority)
	assert.Equal(t, Conditional, outgoing[1].Condition)
	assert.Equal(t, "value > 10", outgoing[1].When)
	require.Len(t, g.Incoming("finish"), 1)

	target, ok := g.EntryPoint("wait_resume")
	require.True(t, ok)
	assert.Equal(t, "finish", target)
	assert.Equal(t, "wait_resume", ResumeEntryPoint("wait"))
}

func TestGraph_Clone(t *testing.T) {
	g := NewGraph("demo")
	g.AddNode("route", KindRouter).
		WithOutputKeys("lane").
		Router = &Router{
		Branches: []*Branch{{When: "x > 1", Label: "high"}},
		Default:  "low",
	}
	g.AddNode("done", KindFunction).Function = &Function{Ref: "noop"}
	g.Connect("route", "done", Always)
	g.WithEntryNode("route").WithTerminalNode("done")

	clone := g.Clone()
	require.NotSame(t, g, clone)
	assert.Equal(t, g.ID, clone.ID)
	require.Len(t, clone.Nodes, 2)

	// mutating the clone leaves the original untouched
	clone.Node("route").Router.Branches[0].Label = "changed"
	clone.Outgoing("route")[0].Condition = OnFailure
	assert.Equal(t, "high", g.Node("route").Router.Branches[0].Label)
	assert.Equal(t, Always, g.Outgoing("route")[0].Condition)
}
