package capability

import (
	"context"
	"errors"
	"time"

	"github.com/arcflow/arcflow/model/types"
)

// WithGeneratorTimeout bounds every Generate call with the given timeout.
// A deadline overrun surfaces as *types.CapabilityTimeout; any other failure
// is wrapped in *types.CapabilityError.
func WithGeneratorTimeout(delegate Generator, timeout time.Duration) Generator {
	return GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		text, err := delegate.Generate(ctx, prompt)
		if err != nil {
			return "", classify("generator", timeout, err)
		}
		return text, nil
	})
}

// WithToolTimeout bounds every Invoke call with the given timeout.
func WithToolTimeout(delegate Tool, timeout time.Duration) Tool {
	return ToolFunc(delegate.Name(), func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		result, err := delegate.Invoke(ctx, args)
		if err != nil {
			return nil, classify(delegate.Name(), timeout, err)
		}
		return result, nil
	})
}

func classify(name string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.CapabilityTimeout{Capability: name, Timeout: timeout}
	}
	var timedOut *types.CapabilityTimeout
	if errors.As(err, &timedOut) {
		return err
	}
	return &types.CapabilityError{Capability: name, Err: err}
}
