package localfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
	"github.com/volaas/volauth/localfs"
)

func TestBackend_CreateDeleteMount(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b := localfs.New(root, zaptest.NewLogger(t))

	require.NoError(t, b.CreateVolume(ctx, "ds-1", "vol", 1<<20))

	info, err := os.Stat(filepath.Join(root, "ds-1", "vol.vmdk"))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), info.Size())

	// Creating a taken name fails.
	err = b.CreateVolume(ctx, "ds-1", "vol", 1<<20)
	require.Error(t, err)
	assert.Equal(t, errors.EConflict, errors.ErrorCode(err))

	require.NoError(t, b.MountVolume(ctx, "ds-1", "vol", "vm-1"))
	assert.ErrorIs(t, b.MountVolume(ctx, "ds-1", "missing", "vm-1"), volauth.ErrVolumeNotFound)

	require.NoError(t, b.DeleteVolume(ctx, "ds-1", "vol"))
	assert.ErrorIs(t, b.DeleteVolume(ctx, "ds-1", "vol"), volauth.ErrVolumeNotFound)
}

func TestBackend_ListDatastores(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b := localfs.New(root, zaptest.NewLogger(t))

	// An empty or missing root lists no datastores.
	ds, err := b.ListDatastores(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds)

	require.NoError(t, b.CreateVolume(ctx, "ds-1", "vol", 1))
	require.NoError(t, b.CreateVolume(ctx, "ds-2", "vol", 1))

	ds, err = b.ListDatastores(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []volauth.Datastore{
		{ID: "ds-1", Name: "ds-1"},
		{ID: "ds-2", Name: "ds-2"},
	}, ds)
}
