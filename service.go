package arcflow

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/arcflow/arcflow/logging"
	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/runtime/router"
	"github.com/arcflow/arcflow/service/capability"
	"github.com/arcflow/arcflow/service/dao"
	"github.com/arcflow/arcflow/service/dao/graphdef"
	sessionfs "github.com/arcflow/arcflow/service/dao/session/fs"
	sessionpg "github.com/arcflow/arcflow/service/dao/session/postgres"
	sessionredis "github.com/arcflow/arcflow/service/dao/session/redis"
	"github.com/arcflow/arcflow/service/dispatcher"
	"github.com/arcflow/arcflow/service/executor"
	"github.com/arcflow/arcflow/service/messaging"
	mmemory "github.com/arcflow/arcflow/service/messaging/memory"
	"github.com/arcflow/arcflow/service/processor"
	"github.com/arcflow/arcflow/service/registry"
	"github.com/arcflow/arcflow/tracing"
)

// Service is the engine facade: it wires capabilities, stores and the
// executor into a Runtime that applications invoke graphs through.
type Service struct {
	config       *Config
	logger       zerolog.Logger
	loggerSet    bool
	generator    capability.Generator
	tools        *capability.Registry
	transforms   *dispatcher.Transforms
	sessionStore dao.Service[string, execution.Snapshot]
	queue        messaging.Queue[processor.Invocation]
	runtime      *Runtime
}

// New creates and wires an engine service.
func New(options ...Option) *Service {
	s := &Service{
		config:     DefaultConfig(),
		tools:      capability.NewRegistry(),
		transforms: dispatcher.NewTransforms(),
	}
	for _, option := range options {
		option(s)
	}
	s.init()
	return s
}

func (s *Service) init() {
	if !s.loggerSet {
		logger, err := logging.Init(s.config.Logging)
		if err != nil {
			logger = zerolog.Nop()
		}
		s.logger = logger
	}
	if s.config.Tracing.Enabled {
		_ = tracing.Init(s.config.Tracing.ServiceName, s.config.Tracing.ServiceVersion, s.config.Tracing.OutputFile)
	}
	if s.queue == nil {
		s.queue = mmemory.NewQueue[processor.Invocation](mmemory.DefaultConfig())
	}

	generator := s.generator
	if timeout := s.config.Executor.CapabilityTimeout; timeout > 0 {
		if generator != nil {
			generator = capability.WithGeneratorTimeout(generator, timeout)
		}
		for _, name := range s.tools.Names() {
			tool, err := s.tools.Lookup(name)
			if err != nil {
				continue
			}
			s.tools.Register(capability.WithToolTimeout(tool, timeout))
		}
	}

	dispatch := dispatcher.New(generator, s.tools, s.transforms, logging.New(s.logger, "dispatcher"))
	s.initSessionStore()
	sessions := registry.New(s.sessionStore)
	exec := executor.New(dispatch, router.New(), sessions.Store(),
		executor.WithMaxIterations(s.config.Executor.MaxIterations),
		executor.WithLogger(logging.New(s.logger, "executor")))

	s.runtime = &Runtime{
		graphs:   graphdef.New(),
		sessions: sessions,
		executor: exec,
		logger:   logging.New(s.logger, "runtime"),
	}
	s.runtime.processor = processor.New(s.queue, s.runtime.handleInvocation,
		processor.Config{WorkerCount: s.config.Processor.Workers},
		logging.New(s.logger, "processor"))
}

// initSessionStore builds the configuration-selected snapshot store unless
// one was injected via WithSessionStore.  Store failures fall back to the
// in-memory store so the engine stays usable.
func (s *Service) initSessionStore() {
	if s.sessionStore != nil {
		return
	}
	ctx := context.Background()
	switch s.config.Session.Store {
	case "", "memory":
	case "fs":
		store, err := sessionfs.New(s.config.Session.BasePath)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to initialise fs session store")
			return
		}
		s.sessionStore = store
	case "redis":
		store, err := sessionredis.New(ctx, s.config.Session.RedisURL, s.config.Session.RedisTTL)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to initialise redis session store")
			return
		}
		s.sessionStore = store
	case "postgres":
		pool, err := pgxpool.New(ctx, s.config.Session.PostgresDSN)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to initialise postgres session store")
			return
		}
		store := sessionpg.New(pool)
		if err := store.CreateSchema(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to create session schema")
			return
		}
		s.sessionStore = store
	}
}

// Runtime returns the invocation API.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Tools exposes the tool registry for late registration.
func (s *Service) Tools() *capability.Registry {
	return s.tools
}

// Transforms exposes the transform registry for late registration.
func (s *Service) Transforms() *dispatcher.Transforms {
	return s.transforms
}

// Start launches the async invocation workers.
func (s *Service) Start(ctx context.Context) {
	s.runtime.processor.Start(ctx)
}

// Shutdown stops the async workers and waits for in-flight invocations.
func (s *Service) Shutdown() {
	s.runtime.processor.Shutdown()
}
