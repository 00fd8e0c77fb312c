package arcflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/arcflow/arcflow/logging"
)

// Config is a serialisable representation of the engine configuration.  It
// can be populated from YAML or built in code; the zero value is useful, all
// nested fields inherit their package defaults.
type Config struct {
	Logging   logging.Config  `json:"logging" yaml:"logging"`
	Executor  ExecutorConfig  `json:"executor" yaml:"executor"`
	Processor ProcessorConfig `json:"processor" yaml:"processor"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
}

type ExecutorConfig struct {
	// MaxIterations bounds a single invocation.
	MaxIterations int `json:"maxIterations" yaml:"maxIterations"`

	// CapabilityTimeout bounds each generator and tool call.
	CapabilityTimeout time.Duration `json:"capabilityTimeout" yaml:"capabilityTimeout"`
}

type ProcessorConfig struct {
	// Workers is the number of workers draining the async invocation queue.
	Workers int `json:"workers" yaml:"workers"`
}

// SessionConfig selects and configures the session snapshot store.
type SessionConfig struct {
	// Store is one of memory, fs, redis or postgres.
	Store string `json:"store" yaml:"store"`

	// BasePath roots the fs store.
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`

	// RedisURL connects the redis store.
	RedisURL string `json:"redisURL,omitempty" yaml:"redisURL,omitempty"`

	// RedisTTL controls how long redis keeps inactive sessions.
	RedisTTL time.Duration `json:"redisTTL,omitempty" yaml:"redisTTL,omitempty"`

	// PostgresDSN connects the postgres store.
	PostgresDSN string `json:"postgresDSN,omitempty" yaml:"postgresDSN,omitempty"`
}

type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Executor: ExecutorConfig{
			MaxIterations:     1000,
			CapabilityTimeout: 60 * time.Second,
		},
		Processor: ProcessorConfig{Workers: 5},
		Session:   SessionConfig{Store: "memory"},
		Tracing:   TracingConfig{ServiceName: "arcflow", ServiceVersion: "dev"},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Executor.MaxIterations <= 0 {
		return fmt.Errorf("executor.maxIterations must be > 0")
	}
	if c.Processor.Workers <= 0 {
		return fmt.Errorf("processor.workers must be > 0")
	}
	switch c.Session.Store {
	case "", "memory":
	case "fs":
		if c.Session.BasePath == "" {
			return fmt.Errorf("session.basePath is required for the fs store")
		}
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session.redisURL is required for the redis store")
		}
	case "postgres":
		if c.Session.PostgresDSN == "" {
			return fmt.Errorf("session.postgresDSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}
	return nil
}

// LoadConfig reads a YAML configuration from the URL.  A .env file next to
// the process, when present, is loaded first and ${env.KEY} expressions in
// the document are expanded from the environment.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	_ = godotenv.Load()
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", URL, err)
	}
	config := DefaultConfig()
	expanded := expandEnvExpr(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// expandEnvExpr replaces all occurrences of ${env.KEY} in the input with the
// value of the environment variable KEY (or "" if unset).
func expandEnvExpr(value string) string {
	const prefix = "${env."
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(value[i:], prefix)
		if idx < 0 {
			b.WriteString(value[i:])
			break
		}
		b.WriteString(value[i : i+idx])
		startKey := i + idx + len(prefix)
		endKey := strings.IndexByte(value[startKey:], '}')
		if endKey < 0 {
			b.WriteString(value[i+idx:])
			break
		}
		key := value[startKey : startKey+endKey]
		valid := true
		for _, r := range key {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
				valid = false
				break
			}
		}
		if !valid {
			b.WriteString(value[i+idx : startKey])
			i = startKey
			continue
		}
		b.WriteString(os.Getenv(key))
		i = startKey + endKey + 1
	}
	return b.String()
}
