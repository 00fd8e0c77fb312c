package processor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcflow/arcflow/service/messaging/memory"
)

func TestService_DrainsQueue(t *testing.T) {
	queue := memory.NewQueue[Invocation](memory.DefaultConfig())
	var handled int32
	handler := func(ctx context.Context, invocation *Invocation) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}
	svc := New(queue, handler, Config{WorkerCount: 2, PollTimeout: 50 * time.Millisecond}, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Publish(ctx, &Invocation{GraphID: "flow"}))
	}
	svc.Start(ctx)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&handled) < 5 {
		select {
		case <-deadline:
			t.Fatal("queue not drained in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	svc.Shutdown()
	assert.Equal(t, int32(5), atomic.LoadInt32(&handled))
}

func TestService_NackOnFailure(t *testing.T) {
	config := memory.DefaultConfig()
	config.MaxRetries = 0
	queue := memory.NewQueue[Invocation](config)
	handler := func(ctx context.Context, invocation *Invocation) error {
		return errors.New("boom")
	}
	svc := New(queue, handler, Config{WorkerCount: 1, PollTimeout: 50 * time.Millisecond}, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &Invocation{GraphID: "flow"}))
	svc.Start(ctx)

	deadline := time.After(2 * time.Second)
	for queue.DLQSize() == 0 {
		select {
		case <-deadline:
			t.Fatal("message not dead lettered in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	svc.Shutdown()
	assert.Equal(t, 1, queue.DLQSize())
}
