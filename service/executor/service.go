// Package executor drives sessions through their graphs: it reads node
// inputs from memory, dispatches the node, commits outputs, routes the
// result and manages the pause, resume and terminal transitions.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arcflow/arcflow/model/graph"
	"github.com/arcflow/arcflow/model/types"
	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/runtime/router"
	"github.com/arcflow/arcflow/service/dao"
	"github.com/arcflow/arcflow/service/dispatcher"
	"github.com/arcflow/arcflow/tracing"
)

// DefaultMaxIterations bounds a single invocation; it guards against cyclic
// graphs that slip past validation through conditional edges.
const DefaultMaxIterations = 1000

// Service executes graphs over sessions.
type Service struct {
	dispatcher    *dispatcher.Service
	router        *router.Service
	sessions      dao.Service[string, execution.Snapshot]
	maxIterations int
	logger        zerolog.Logger
}

// Option customises the executor.
type Option func(*Service)

// WithMaxIterations overrides the per-invocation step ceiling.
func WithMaxIterations(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxIterations = limit
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates an executor.
func New(dispatcherSvc *dispatcher.Service, routerSvc *router.Service, sessions dao.Service[string, execution.Snapshot], opts ...Option) *Service {
	s := &Service{
		dispatcher:    dispatcherSvc,
		router:        routerSvc,
		sessions:      sessions,
		maxIterations: DefaultMaxIterations,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a session at the graph entry node, stores the invocation
// input under the reserved input key and runs until the session pauses,
// completes or fails.
func (s *Service) Start(ctx context.Context, g *graph.Graph, input map[string]interface{}) (*execution.Session, error) {
	session := execution.NewSession(g.ID, g.EntryNode)
	s.applyInput(session, input)
	if err := s.Run(ctx, g, session); err != nil {
		return session, err
	}
	return session, nil
}

// Resume validates the requested entry point against the pending resume
// recorded at pause time, merges the resume input into memory and continues
// execution from the entry point target.
func (s *Service) Resume(ctx context.Context, g *graph.Graph, session *execution.Session, entryPoint string, input map[string]interface{}) error {
	if session.Status != execution.StatusPaused {
		return &types.ResumeError{Session: session.ID, Requested: entryPoint, Pending: session.PendingResume}
	}
	if entryPoint != session.PendingResume {
		return &types.ResumeError{Session: session.ID, Requested: entryPoint, Pending: session.PendingResume}
	}
	target, ok := g.EntryPoint(entryPoint)
	if !ok {
		return &types.ResumeError{Session: session.ID, Requested: entryPoint, Pending: session.PendingResume}
	}
	s.applyInput(session, input)
	session.Status = execution.StatusRunning
	session.CurrentNode = target
	session.PendingResume = ""
	return s.Run(ctx, g, session)
}

// applyInput stores the payload under the reserved input key and, being a
// map, also merges its entries as individual memory keys so downstream nodes
// can declare them directly.
func (s *Service) applyInput(session *execution.Session, input map[string]interface{}) {
	if input == nil {
		return
	}
	session.Memory.Set(execution.InputKey, input)
	for key, value := range input {
		if key == execution.InputKey {
			continue
		}
		session.Memory.Set(key, value)
	}
}

// Run drives the session from its current node until a pause, a terminal
// node or an unrecovered failure.  Graph-level failures end with the session
// in StatusFailed and a nil error; a non-nil error reports an engine-level
// problem such as an exhausted iteration budget, a concurrent invocation or
// a persistence failure.
func (s *Service) Run(ctx context.Context, g *graph.Graph, session *execution.Session) error {
	if !session.Acquire() {
		return fmt.Errorf("session %s is already being executed", session.ID)
	}
	defer session.Release()

	if session.Status.Terminal() {
		return fmt.Errorf("session %s is already %s", session.ID, session.Status)
	}

	var span *tracing.Span
	ctx, span = tracing.StartSpan(ctx, "session.run", "INTERNAL")
	span.WithAttributes(map[string]string{"session.id": session.ID, "graph.id": g.ID})
	err := s.run(ctx, g, session)
	tracing.EndSpan(span, err)
	return err
}

func (s *Service) run(ctx context.Context, g *graph.Graph, session *execution.Session) error {
	for iteration := 0; ; iteration++ {
		if iteration >= s.maxIterations {
			budgetErr := &types.ExecutionBudgetError{Session: session.ID, Limit: s.maxIterations}
			session.Fail(session.CurrentNode)
			if err := s.persist(ctx, session); err != nil {
				return errors.Join(budgetErr, err)
			}
			return budgetErr
		}

		node := g.Node(session.CurrentNode)
		if node == nil {
			session.Fail(session.CurrentNode)
			if err := s.persist(ctx, session); err != nil {
				return err
			}
			return fmt.Errorf("session %s references unknown node %q", session.ID, session.CurrentNode)
		}

		result := s.step(ctx, g, session, node)
		session.Record(result)

		if result.Succeeded() {
			if g.IsTerminal(node.ID) {
				session.Complete(node.ID)
				return s.persist(ctx, session)
			}
			if g.IsPause(node.ID) {
				session.Pause(node.ID, graph.ResumeEntryPoint(node.ID))
				s.logger.Info().Str("session", session.ID).Str("node", node.ID).Msg("session paused")
				return s.persist(ctx, session)
			}
		}

		targets, err := s.router.SelectNext(g, result, session.Memory)
		if err != nil {
			var dead *types.DeadEndError
			if errors.As(err, &dead) {
				s.logger.Warn().Str("session", session.ID).Str("node", node.ID).Err(result.Err).Msg("no matching edge, session failed")
				session.Fail(node.ID)
				return s.persist(ctx, session)
			}
			session.Fail(node.ID)
			if persistErr := s.persist(ctx, session); persistErr != nil {
				return errors.Join(err, persistErr)
			}
			return err
		}
		session.CurrentNode = targets[0]
	}
}

// step executes a single node: input read, dispatch, output commit.  Every
// failure mode is folded into a routable NodeResult.
func (s *Service) step(ctx context.Context, g *graph.Graph, session *execution.Session, node *graph.Node) *execution.NodeResult {
	ctx, span := tracing.StartSpan(ctx, "node."+node.ID, "INTERNAL")
	span.WithAttributes(map[string]string{
		"session.id": session.ID,
		"graph.id":   g.ID,
		"node.kind":  string(node.Kind),
	})

	inputs, err := session.Memory.Read(node.ID, node.InputKeys)
	if err != nil {
		tracing.EndSpan(span, err)
		s.logger.Warn().Str("session", session.ID).Str("node", node.ID).Err(err).Msg("input read failed")
		return execution.NewFailure(node.ID, err)
	}

	result := s.dispatcher.Execute(ctx, node, inputs)
	if result.Succeeded() {
		if err := session.Memory.Apply(node.ID, node.OutputKeys, result.Outputs); err != nil {
			tracing.EndSpan(span, err)
			s.logger.Error().Str("session", session.ID).Str("node", node.ID).Err(err).Msg("output rejected")
			return execution.NewFailure(node.ID, err)
		}
	}
	tracing.EndSpan(span, result.Err)
	s.logger.Debug().Str("session", session.ID).Str("node", node.ID).Str("status", string(result.Status)).Msg("node executed")
	return result
}

// persist saves the session snapshot when a store is configured.  Pause,
// completion and failure transitions all pass through here.
func (s *Service) persist(ctx context.Context, session *execution.Session) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Save(ctx, session.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", session.ID, err)
	}
	return nil
}
