package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/inmem"
	"github.com/volaas/volauth/kv"
	"github.com/volaas/volauth/mock"
	"github.com/volaas/volauth/tenant"
)

func newTestStore(t *testing.T) *tenant.Store {
	t.Helper()

	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	return tenant.NewStore(inmem.NewKVStore(),
		tenant.WithIDGenerator(mock.NewStaticIDGenerator("tenant-1")),
		tenant.WithClock(mockClock))
}

func TestStore_TenantRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	want := &volauth.Tenant{Name: "eng", Description: "engineering"}
	err := st.Update(ctx, func(tx kv.Tx) error {
		return st.CreateTenant(ctx, tx, want)
	})
	require.NoError(t, err)

	var byID, byName *volauth.Tenant
	err = st.View(ctx, func(tx kv.Tx) error {
		var err error
		if byID, err = st.GetTenant(ctx, tx, "tenant-1"); err != nil {
			return err
		}
		byName, err = st.GetTenantByName(ctx, tx, "eng")
		return err
	})
	require.NoError(t, err)

	if diff := cmp.Diff(want, byID); diff != "" {
		t.Fatalf("tenant by ID mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, byName); diff != "" {
		t.Fatalf("tenant by name mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), byID.CreatedAt)
}

func TestStore_PrivilegeReplacesAtKey(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	err := st.Update(ctx, func(tx kv.Tx) error {
		for _, p := range []volauth.AccessPrivilege{
			{TenantID: "t1", Datastore: "ds-2", MountVolumes: true},
			{TenantID: "t1", Datastore: "ds-1", CreateVolumes: true, UsageQuota: 10},
			// Same key again: the record is replaced, not appended.
			{TenantID: "t1", Datastore: "ds-1", CreateVolumes: true, UsageQuota: 99},
			{TenantID: "t2", Datastore: "ds-1", DeleteVolumes: true},
		} {
			p := p
			if err := st.PutPrivilege(ctx, tx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var got []volauth.AccessPrivilege
	err = st.View(ctx, func(tx kv.Tx) error {
		var err error
		got, err = st.ListPrivileges(ctx, tx, "t1")
		return err
	})
	require.NoError(t, err)

	want := []volauth.AccessPrivilege{
		{TenantID: "t1", Datastore: "ds-1", CreateVolumes: true, UsageQuota: 99},
		{TenantID: "t1", Datastore: "ds-2", MountVolumes: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("privileges mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ListTenantVolumes(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	err := st.Update(ctx, func(tx kv.Tx) error {
		for _, v := range []volauth.Volume{
			{TenantID: "t1", Datastore: "ds-1", Name: "a", Size: 1},
			{TenantID: "t2", Datastore: "ds-1", Name: "b", Size: 2},
			{TenantID: "t1", Datastore: "ds-2", Name: "c", Size: 3},
		} {
			v := v
			if err := st.PutVolume(ctx, tx, &v); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var got []volauth.Volume
	err = st.View(ctx, func(tx kv.Tx) error {
		var err error
		got, err = st.ListTenantVolumes(ctx, tx, "t1")
		return err
	})
	require.NoError(t, err)

	want := []volauth.Volume{
		{TenantID: "t1", Datastore: "ds-1", Name: "a", Size: 1},
		{TenantID: "t1", Datastore: "ds-2", Name: "c", Size: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("volumes mismatch (-want +got):\n%s", diff)
	}
}
