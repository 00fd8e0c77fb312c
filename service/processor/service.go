// Package processor runs asynchronous graph invocations: requests are
// published to a queue and a worker pool drains them, acking on success and
// nacking on failure so the queue's retry policy applies.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcflow/arcflow/service/messaging"
)

// Invocation is an asynchronous request to start or resume a session.
type Invocation struct {
	SessionID  string                 `json:"sessionId,omitempty"`
	GraphID    string                 `json:"graphId"`
	EntryPoint string                 `json:"entryPoint,omitempty"`
	Input      map[string]interface{} `json:"input,omitempty"`
}

// Handler executes one invocation.
type Handler func(ctx context.Context, invocation *Invocation) error

// Config controls the worker pool.
type Config struct {
	// WorkerCount is the number of workers draining the queue.
	WorkerCount int

	// PollTimeout bounds a single blocking consume.
	PollTimeout time.Duration
}

// DefaultConfig returns the default processor configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 5,
		PollTimeout: time.Second,
	}
}

// Service drains the invocation queue with a pool of workers.
type Service struct {
	config  Config
	queue   messaging.Queue[Invocation]
	handler Handler
	logger  zerolog.Logger

	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
	once       sync.Once
}

// New creates a processor over the given queue and handler.
func New(queue messaging.Queue[Invocation], handler Handler, config Config, logger zerolog.Logger) *Service {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultConfig().PollTimeout
	}
	return &Service{
		config:     config,
		queue:      queue,
		handler:    handler,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// Queue exposes the invocation queue for publishing.
func (s *Service) Queue() messaging.Queue[Invocation] {
	return s.queue
}

// Start launches the worker pool.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.config.WorkerCount; i++ {
		s.workerWg.Add(1)
		go s.work(ctx, i)
	}
}

// Shutdown stops the workers and waits for in-flight invocations.
func (s *Service) Shutdown() {
	s.once.Do(func() {
		close(s.shutdownCh)
	})
	s.workerWg.Wait()
}

func (s *Service) work(ctx context.Context, id int) {
	defer s.workerWg.Done()
	for {
		select {
		case <-s.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		pollCtx, cancel := context.WithTimeout(ctx, s.config.PollTimeout)
		message, err := s.queue.Consume(pollCtx)
		cancel()
		if err != nil {
			continue
		}
		invocation := message.T()
		if err := s.handler(ctx, invocation); err != nil {
			s.logger.Warn().Int("worker", id).Str("graph", invocation.GraphID).Err(err).Msg("invocation failed")
			_ = message.Nack(err)
			continue
		}
		_ = message.Ack()
	}
}
