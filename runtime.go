package arcflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/dao/graphdef"
	"github.com/arcflow/arcflow/service/executor"
	"github.com/arcflow/arcflow/service/processor"
	"github.com/arcflow/arcflow/service/registry"
)

// Runtime is the invocation API over loaded graphs and tracked sessions.
type Runtime struct {
	graphs    *graphdef.Service
	sessions  *registry.Service
	executor  *executor.Service
	processor *processor.Service
	logger    zerolog.Logger
}

// Output is the caller-facing outcome of an invocation or resume.
type Output struct {
	SessionID     string                   `json:"sessionId"`
	GraphID       string                   `json:"graphId"`
	Status        execution.Status         `json:"status"`
	PendingResume string                   `json:"pendingResume,omitempty"`
	Memory        map[string]interface{}   `json:"memory,omitempty"`
	History       []execution.HistoryEntry `json:"history,omitempty"`

	// Err carries the typed error behind a failed status, matchable with
	// errors.As.  It is process local and never serialised.
	Err error `json:"-"`
}

func newOutput(session *execution.Session) *Output {
	return &Output{
		SessionID:     session.ID,
		GraphID:       session.GraphID,
		Status:        session.Status,
		PendingResume: session.PendingResume,
		Memory:        session.Memory.Snapshot(),
		History:       append([]execution.HistoryEntry(nil), session.History...),
		Err:           session.LastErr,
	}
}

// LoadGraph loads, validates and caches a graph definition from a URL.
func (r *Runtime) LoadGraph(ctx context.Context, URL string) (*graph.Graph, error) {
	return r.graphs.Load(ctx, URL)
}

// UpsertGraph validates and caches a programmatically built graph.
func (r *Runtime) UpsertGraph(g *graph.Graph) error {
	return r.graphs.Upsert(g)
}

// UpsertDefinition decodes YAML bytes and caches the resulting graph.
func (r *Runtime) UpsertDefinition(data []byte) (*graph.Graph, error) {
	g, err := r.graphs.DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	if err := r.graphs.Upsert(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Invoke starts a new session over the named graph and drives it until it
// pauses, completes or fails.
func (r *Runtime) Invoke(ctx context.Context, graphID string, input map[string]interface{}) (*Output, error) {
	g, err := r.graphs.Lookup(graphID)
	if err != nil {
		return nil, fmt.Errorf("unknown graph %q: %w", graphID, err)
	}
	session, err := r.executor.Start(ctx, g, input)
	if session != nil {
		r.sessions.Add(session)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("graph", graphID).Str("session", session.ID).Str("status", string(session.Status)).Msg("invocation finished")
	return newOutput(session), nil
}

// Resume continues a paused session through the named entry point.
func (r *Runtime) Resume(ctx context.Context, sessionID, entryPoint string, input map[string]interface{}) (*Output, error) {
	session, err := r.sessions.Lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	g, err := r.graphs.Lookup(session.GraphID)
	if err != nil {
		return nil, fmt.Errorf("unknown graph %q: %w", session.GraphID, err)
	}
	if err := r.executor.Resume(ctx, g, session, entryPoint, input); err != nil {
		return nil, err
	}
	r.logger.Info().Str("session", sessionID).Str("status", string(session.Status)).Msg("resume finished")
	return newOutput(session), nil
}

// InvokeAsync queues an invocation for the worker pool.
func (r *Runtime) InvokeAsync(ctx context.Context, graphID string, input map[string]interface{}) error {
	if _, err := r.graphs.Lookup(graphID); err != nil {
		return fmt.Errorf("unknown graph %q: %w", graphID, err)
	}
	return r.processor.Queue().Publish(ctx, &processor.Invocation{GraphID: graphID, Input: input})
}

// ResumeAsync queues a resume for the worker pool.
func (r *Runtime) ResumeAsync(ctx context.Context, sessionID, entryPoint string, input map[string]interface{}) error {
	return r.processor.Queue().Publish(ctx, &processor.Invocation{SessionID: sessionID, EntryPoint: entryPoint, Input: input})
}

// handleInvocation dispatches queued invocations to Invoke or Resume.
func (r *Runtime) handleInvocation(ctx context.Context, invocation *processor.Invocation) error {
	if invocation.SessionID != "" {
		_, err := r.Resume(ctx, invocation.SessionID, invocation.EntryPoint, invocation.Input)
		return err
	}
	_, err := r.Invoke(ctx, invocation.GraphID, invocation.Input)
	return err
}

// Session returns the persisted snapshot of a session.
func (r *Runtime) Session(ctx context.Context, sessionID string) (*execution.Snapshot, error) {
	session, err := r.sessions.Lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Snapshot(), nil
}

// Sessions lists stored sessions, optionally filtered by status.
func (r *Runtime) Sessions(ctx context.Context, statuses ...execution.Status) ([]*execution.Snapshot, error) {
	return r.sessions.List(ctx, statuses...)
}

// Archive removes a session record.  Completed and failed sessions stay
// queryable until archived.
func (r *Runtime) Archive(ctx context.Context, sessionID string) error {
	return r.sessions.Archive(ctx, sessionID)
}
