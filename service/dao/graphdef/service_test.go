package graphdef

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/service/dao"
)

//go:embed testdata/support.yaml
var supportYAML []byte

func TestDecodeYAML(t *testing.T) {
	svc := New()
	g, err := svc.DecodeYAML(supportYAML)
	require.NoError(t, err)

	assert.Equal(t, "support", g.ID)
	assert.Equal(t, "classify", g.EntryNode)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, graph.KindGeneration, g.Node("classify").Kind)
	assert.Equal(t, []string{"intent"}, g.Node("classify").OutputKeys)
	assert.True(t, g.IsPause("confirm"))
	assert.True(t, g.IsTerminal("finalize"))

	target, ok := g.EntryPoint("confirm_resume")
	require.True(t, ok)
	assert.Equal(t, "finalize", target)

	outgoing := g.Outgoing("classify")
	require.Len(t, outgoing, 1)
	assert.Equal(t, graph.OnSuccess, outgoing[0].Condition)
}

func TestDecodeYAML_Invalid(t *testing.T) {
	svc := New()
	_, err := svc.DecodeYAML([]byte(`
id: broken
entryNode: missing
nodes:
  - id: lonely
    kind: function
    function:
      ref: noop
edges: []
`))
	assert.Error(t, err)
}

func TestUpsertLookup(t *testing.T) {
	svc := New()
	g := graph.NewGraph("tiny")
	g.AddNode("only", graph.KindFunction).Function = &graph.Function{Ref: "noop"}
	g.WithEntryNode("only").WithTerminalNode("only")
	require.NoError(t, svc.Upsert(g))

	loaded, err := svc.Lookup("tiny")
	require.NoError(t, err)
	assert.Same(t, g, loaded)

	_, err = svc.Lookup("absent")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	assert.Equal(t, []string{"tiny"}, svc.IDs())
}
