package arcflow

import (
	"github.com/rs/zerolog"

	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/capability"
	"github.com/arcflow/arcflow/service/dao"
	"github.com/arcflow/arcflow/service/dispatcher"
	"github.com/arcflow/arcflow/service/messaging"
	"github.com/arcflow/arcflow/service/processor"
)

// Option customises the engine service.
type Option func(s *Service)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithGenerator sets the text generation capability.
func WithGenerator(generator capability.Generator) Option {
	return func(s *Service) {
		s.generator = generator
	}
}

// WithTools registers invocable tools.
func WithTools(tools ...capability.Tool) Option {
	return func(s *Service) {
		for _, tool := range tools {
			s.tools.Register(tool)
		}
	}
}

// WithTransform registers a named transform for function nodes.
func WithTransform(name string, fn dispatcher.TransformFunc, options ...dispatcher.TransformOption) Option {
	return func(s *Service) {
		s.transforms.Register(name, fn, options...)
	}
}

// WithSessionStore sets the session snapshot store, overriding the
// configuration-selected one.
func WithSessionStore(store dao.Service[string, execution.Snapshot]) Option {
	return func(s *Service) {
		s.sessionStore = store
	}
}

// WithQueue sets the async invocation queue.
func WithQueue(queue messaging.Queue[processor.Invocation]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithWorkers sets the async worker count.
func WithWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.config.Processor.Workers = count
		}
	}
}

// WithLogger sets the root logger, bypassing logging configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.loggerSet = true
	}
}
