package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcflow/arcflow/model/types"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(ToolFunc("search", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return "results", nil
	}))
	registry.Register(ToolFunc("calculator", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return 42, nil
	}))

	tool, err := registry.Lookup("search")
	require.NoError(t, err)
	assert.Equal(t, "search", tool.Name())

	_, err = registry.Lookup("browser")
	assert.Error(t, err)
	assert.Equal(t, []string{"calculator", "search"}, registry.Names())
}

func TestWithGeneratorTimeout(t *testing.T) {
	slow := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	})
	_, err := WithGeneratorTimeout(slow, 5*time.Millisecond).Generate(context.Background(), "hi")
	var timedOut *types.CapabilityTimeout
	require.ErrorAs(t, err, &timedOut)
	assert.Equal(t, "generator", timedOut.Capability)
}

func TestWithToolTimeout_Failure(t *testing.T) {
	cause := errors.New("connection refused")
	failing := ToolFunc("search", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return nil, cause
	})
	_, err := WithToolTimeout(failing, time.Second).Invoke(context.Background(), nil)
	var capErr *types.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "search", capErr.Capability)
	assert.ErrorIs(t, err, cause)
}
