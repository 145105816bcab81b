package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/inmem"
	"github.com/volaas/volauth/kv"
)

func TestStore_ListsSkipAndLogCorruptRecords(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	st := NewStore(inmem.NewKVStore(), WithStoreLogger(zap.New(core)))

	err := st.Update(ctx, func(tx kv.Tx) error {
		if err := st.putTenant(tx, &volauth.Tenant{ID: "t1", Name: "eng"}); err != nil {
			return err
		}
		if err := st.PutPrivilege(ctx, tx, &volauth.AccessPrivilege{TenantID: "t1", Datastore: "ds-1"}); err != nil {
			return err
		}
		if err := st.PutVolume(ctx, tx, &volauth.Volume{TenantID: "t1", Datastore: "ds-1", Name: "vol", Size: 1}); err != nil {
			return err
		}

		// Plant unparseable values next to the good records.
		for _, bad := range []struct {
			bucket []byte
			key    string
		}{
			{tenantBucket, "zz"},
			{privilegeBucket, "t1/zz"},
			{volumeBucket, "ds-1/zz"},
		} {
			b, err := tx.Bucket(bad.bucket)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(bad.key), []byte("{")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = st.View(ctx, func(tx kv.Tx) error {
		ts, err := st.ListTenants(ctx, tx)
		require.NoError(t, err)
		assert.Len(t, ts, 1)

		ps, err := st.ListPrivileges(ctx, tx, "t1")
		require.NoError(t, err)
		assert.Len(t, ps, 1)

		vols, err := st.ListTenantVolumes(ctx, tx, "t1")
		require.NoError(t, err)
		assert.Len(t, vols, 1)
		return nil
	})
	require.NoError(t, err)

	// Every skipped record surfaces in the log, one warning per record.
	assert.Equal(t, 3, logs.FilterMessageSnippet("corrupt").Len())
}
