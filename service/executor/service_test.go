package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/model/types"
	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/runtime/router"
	"github.com/arcflow/arcflow/service/capability"
	"github.com/arcflow/arcflow/service/dao/session/memory"
	"github.com/arcflow/arcflow/service/dispatcher"
)

type fixture struct {
	executor *Service
	sessions *memory.Service
	dispatch *dispatcher.Service
}

func newFixture(generator capability.Generator) *fixture {
	sessions := memory.New()
	dispatch := dispatcher.New(generator, capability.NewRegistry(), dispatcher.NewTransforms(), zerolog.Nop())
	return &fixture{
		executor: New(dispatch, router.New(), sessions),
		sessions: sessions,
		dispatch: dispatch,
	}
}

func passthrough(outputs map[string]interface{}) dispatcher.TransformFunc {
	return func(ctx context.Context, input interface{}) (map[string]interface{}, error) {
		return outputs, nil
	}
}

func TestStart_LinearCompletion(t *testing.T) {
	generator := capability.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"summary": "all good"}`, nil
	})
	f := newFixture(generator)
	f.dispatch.Transforms().Register("archive", passthrough(map[string]interface{}{"archived": true}))

	g := graph.NewGraph("report")
	g.AddNode("summarize", graph.KindGeneration).
		WithInputKeys("document").
		WithOutputKeys("summary").
		Generation = &graph.Generation{Prompt: "Summarize: ${document}"}
	g.AddNode("archive", graph.KindFunction).
		WithInputKeys("summary").
		WithOutputKeys("archived").
		Function = &graph.Function{Ref: "archive"}
	g.Connect("summarize", "archive", graph.OnSuccess)
	g.WithEntryNode("summarize").WithTerminalNode("archive")

	session, err := f.executor.Start(context.Background(), g, map[string]interface{}{"document": "quarterly numbers"})
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, session.Status)
	assert.Equal(t, "archive", session.CurrentNode)

	value, ok := session.Memory.Get("summary")
	require.True(t, ok)
	assert.Equal(t, "all good", value)

	require.Len(t, session.History, 2)
	assert.Equal(t, "summarize", session.History[0].Node)
	assert.Equal(t, "archive", session.History[1].Node)

	// terminal transition persisted the snapshot
	snapshot, err := f.sessions.Load(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, snapshot.Status)
}

func pausingGraph(t *testing.T, f *fixture) *graph.Graph {
	f.dispatch.Transforms().Register("draft", passthrough(map[string]interface{}{"draft": "proposal v1"}))
	f.dispatch.Transforms().Register("hold", passthrough(nil))
	f.dispatch.Transforms().Register("publish", passthrough(map[string]interface{}{"published": true}))

	g := graph.NewGraph("approval")
	g.AddNode("draft", graph.KindFunction).
		WithOutputKeys("draft").
		Function = &graph.Function{Ref: "draft"}
	g.AddNode("await_review", graph.KindFunction).
		WithInputKeys("draft").
		Function = &graph.Function{Ref: "hold"}
	g.AddNode("publish", graph.KindFunction).
		WithInputKeys("draft").
		WithOutputKeys("published").
		Function = &graph.Function{Ref: "publish"}
	g.Connect("draft", "await_review", graph.OnSuccess)
	g.WithEntryNode("draft").
		WithPauseNode("await_review", "publish").
		WithTerminalNode("publish")
	require.True(t, g.Validate().Valid())
	return g
}

func TestStart_PauseAndResume(t *testing.T) {
	f := newFixture(nil)
	g := pausingGraph(t, f)
	ctx := context.Background()

	session, err := f.executor.Start(ctx, g, nil)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusPaused, session.Status)
	assert.Equal(t, "await_review", session.CurrentNode)
	assert.Equal(t, "await_review_resume", session.PendingResume)

	// pause transition persisted the snapshot
	snapshot, err := f.sessions.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusPaused, snapshot.Status)
	assert.Equal(t, "await_review_resume", snapshot.PendingResume)

	// resume from the persisted snapshot, as an operator would after a restart
	restored := execution.Restore(snapshot)
	err = f.executor.Resume(ctx, g, restored, "await_review_resume", map[string]interface{}{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, restored.Status)
	assert.Equal(t, "publish", restored.CurrentNode)
	value, ok := restored.Memory.Get("approved")
	require.True(t, ok)
	assert.Equal(t, true, value)
}

func TestResume_WrongEntryPoint(t *testing.T) {
	f := newFixture(nil)
	g := pausingGraph(t, f)
	ctx := context.Background()

	session, err := f.executor.Start(ctx, g, nil)
	require.NoError(t, err)
	require.Equal(t, execution.StatusPaused, session.Status)

	err = f.executor.Resume(ctx, g, session, "other_resume", nil)
	var resumeErr *types.ResumeError
	require.ErrorAs(t, err, &resumeErr)
	assert.Equal(t, "await_review_resume", resumeErr.Pending)
	assert.Equal(t, "other_resume", resumeErr.Requested)
	// the session is left untouched and still resumable
	assert.Equal(t, execution.StatusPaused, session.Status)

	err = f.executor.Resume(ctx, g, session, "await_review_resume", nil)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, session.Status)

	// a completed session rejects further resumes
	err = f.executor.Resume(ctx, g, session, "await_review_resume", nil)
	require.ErrorAs(t, err, &resumeErr)
}

func TestStart_FailureRecovered(t *testing.T) {
	f := newFixture(nil)
	f.dispatch.Transforms().Register("flaky", func(ctx context.Context, input interface{}) (map[string]interface{}, error) {
		return nil, errors.New("upstream unavailable")
	})
	f.dispatch.Transforms().Register("fallback", passthrough(map[string]interface{}{"answer": "cached"}))

	g := graph.NewGraph("lookup")
	g.AddNode("flaky", graph.KindFunction).
		WithOutputKeys("answer").
		Function = &graph.Function{Ref: "flaky"}
	g.AddNode("fallback", graph.KindFunction).
		WithOutputKeys("answer").
		Function = &graph.Function{Ref: "fallback"}
	g.Connect("flaky", "fallback", graph.OnFailure)
	g.WithEntryNode("flaky").WithTerminalNode("fallback")

	session, err := f.executor.Start(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, session.Status)
	value, _ := session.Memory.Get("answer")
	assert.Equal(t, "cached", value)
	require.Len(t, session.History, 2)
	assert.Equal(t, execution.ResultFailure, session.History[0].Status)
}

func TestStart_FailureUnrecovered(t *testing.T) {
	f := newFixture(nil)
	f.dispatch.Transforms().Register("flaky", func(ctx context.Context, input interface{}) (map[string]interface{}, error) {
		return nil, errors.New("upstream unavailable")
	})
	f.dispatch.Transforms().Register("noop", passthrough(nil))

	g := graph.NewGraph("lookup")
	g.AddNode("flaky", graph.KindFunction).
		WithOutputKeys("answer").
		Function = &graph.Function{Ref: "flaky"}
	g.AddNode("done", graph.KindFunction).
		Function = &graph.Function{Ref: "noop"}
	g.Connect("flaky", "done", graph.OnSuccess)
	g.WithEntryNode("flaky").WithTerminalNode("done")

	session, err := f.executor.Start(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, session.Status)
	require.Len(t, session.History, 1)
	assert.Contains(t, session.History[0].Summary, "upstream unavailable")

	// failure transition persisted the snapshot
	snapshot, err := f.sessions.Load(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, snapshot.Status)
}

func TestStart_MissingInputRoutesAsFailure(t *testing.T) {
	f := newFixture(nil)
	f.dispatch.Transforms().Register("needy", passthrough(nil))

	g := graph.NewGraph("needy-flow")
	g.AddNode("needy", graph.KindFunction).
		WithInputKeys("never_written").
		Function = &graph.Function{Ref: "needy"}
	g.AddNode("recover", graph.KindFunction).
		Function = &graph.Function{Ref: "needy"}
	g.Connect("needy", "recover", graph.OnFailure)
	g.WithEntryNode("needy").WithTerminalNode("recover")

	session, err := f.executor.Start(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, session.Status)
	assert.Contains(t, session.History[0].Summary, "never_written")
}

func TestRun_IterationBudget(t *testing.T) {
	f := newFixture(nil)
	f.dispatch.Transforms().Register("spin", passthrough(nil))

	g := graph.NewGraph("cycle")
	g.AddNode("a", graph.KindFunction).Function = &graph.Function{Ref: "spin"}
	g.AddNode("b", graph.KindFunction).Function = &graph.Function{Ref: "spin"}
	g.Connect("a", "b", graph.Always)
	g.Connect("b", "a", graph.Always)
	g.WithEntryNode("a")

	exec := New(f.dispatch, router.New(), f.sessions, WithMaxIterations(10))
	session, err := exec.Start(context.Background(), g, nil)
	var budget *types.ExecutionBudgetError
	require.ErrorAs(t, err, &budget)
	assert.Equal(t, 10, budget.Limit)
	assert.Equal(t, execution.StatusFailed, session.Status)
}

func TestRun_SingleActiveInvocation(t *testing.T) {
	f := newFixture(nil)
	g := graph.NewGraph("tiny")
	g.AddNode("only", graph.KindFunction).Function = &graph.Function{Ref: "noop"}
	g.WithEntryNode("only").WithTerminalNode("only")

	session := execution.NewSession(g.ID, g.EntryNode)
	require.True(t, session.Acquire())
	err := f.executor.Run(context.Background(), g, session)
	assert.ErrorContains(t, err, "already being executed")
	session.Release()
}
