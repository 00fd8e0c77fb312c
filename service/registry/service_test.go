package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/dao"
)

func TestLookup_LiveAndRestored(t *testing.T) {
	ctx := context.Background()
	svc := New(nil)

	session := execution.NewSession("flow", "start")
	svc.Add(session)

	found, err := svc.Lookup(ctx, session.ID)
	require.NoError(t, err)
	assert.Same(t, session, found)

	// persisted but not live: lookup restores from the store
	other := execution.NewSession("flow", "start")
	other.Pause("wait", "wait_resume")
	require.NoError(t, svc.Persist(ctx, other))
	restored := New(svc.Store())
	found, err = restored.Lookup(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, found.ID)
	assert.Equal(t, execution.StatusPaused, found.Status)

	_, err = restored.Lookup(ctx, "absent")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestList_ByStatus(t *testing.T) {
	ctx := context.Background()
	svc := New(nil)

	paused := execution.NewSession("flow", "start")
	paused.Pause("wait", "wait_resume")
	completed := execution.NewSession("flow", "start")
	completed.Complete("done")
	require.NoError(t, svc.Persist(ctx, paused))
	require.NoError(t, svc.Persist(ctx, completed))

	listed, err := svc.List(ctx, execution.StatusPaused)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, paused.ID, listed[0].ID)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	svc := New(nil)

	session := execution.NewSession("flow", "start")
	session.Complete("done")
	svc.Add(session)
	require.NoError(t, svc.Persist(ctx, session))

	require.NoError(t, svc.Archive(ctx, session.ID))
	_, err := svc.Lookup(ctx, session.ID)
	assert.ErrorIs(t, err, dao.ErrNotFound)

	// archiving an unknown id is not an error
	assert.NoError(t, svc.Archive(ctx, "absent"))
}
