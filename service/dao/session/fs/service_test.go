package fs

import (
	"context"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/dao"
)

func TestService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, err := New(path.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	snapshot := &execution.Snapshot{
		ID:            "s1",
		GraphID:       "flow",
		Status:        execution.StatusPaused,
		CurrentNode:   "confirm",
		PendingResume: "confirm_resume",
		Memory:        map[string]interface{}{"intent": "billing"},
	}
	require.NoError(t, svc.Save(ctx, snapshot))

	loaded, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, execution.StatusPaused, loaded.Status)
	assert.Equal(t, "confirm_resume", loaded.PendingResume)
	assert.Equal(t, "billing", loaded.Memory["intent"])

	listed, err := svc.List(ctx, dao.NewParameter("Status", string(execution.StatusPaused)))
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, svc.Delete(ctx, "s1"))
	_, err = svc.Load(ctx, "s1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}
