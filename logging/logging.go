// Package logging configures the zerolog logger shared by the engine.
// Components obtain a child logger tagged with their name via New.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the log level, format and destination.
type Config struct {
	Level    string `json:"level,omitempty" yaml:"level,omitempty"`
	Format   string `json:"format,omitempty" yaml:"format,omitempty"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty"`
	FilePath string `json:"filePath,omitempty" yaml:"filePath,omitempty"`
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: "stderr"}
}

// Init builds the root logger from the configuration and installs it as the
// global zerolog logger.
func Init(config Config) (zerolog.Logger, error) {
	if config.Level == "" {
		config.Level = "info"
	}
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var output io.Writer
	switch strings.ToLower(config.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	case "file":
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to open log file %q: %w", config.FilePath, err)
		}
		output = file
	default:
		output = os.Stderr
	}

	if strings.ToLower(config.Format) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

// New returns a child of the given logger tagged with a component name.
func New(parent zerolog.Logger, component string) zerolog.Logger {
	return parent.With().Str("component", component).Logger()
}
