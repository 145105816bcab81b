package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
)

func TestService_SetAccessPrivileges(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	tn := &volauth.Tenant{Name: "a"}
	require.NoError(t, f.svc.CreateTenant(ctx, tn, nil, []volauth.AccessPrivilege{
		{Datastore: "ds-1", CreateVolumes: true},
		{Datastore: "ds-2", MountVolumes: true},
	}))

	// A replace leaves no residue of the prior set.
	require.NoError(t, f.svc.SetAccessPrivileges(ctx, tn.ID, []volauth.AccessPrivilege{
		{Datastore: "ds-2", CreateVolumes: true, DeleteVolumes: true, UsageQuota: 50},
	}))

	ps, err := f.svc.ListPrivileges(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, volauth.DatastoreID("ds-2"), ps[0].Datastore)
	assert.True(t, ps[0].DeleteVolumes)

	_, err = f.svc.LookupPrivilege(ctx, tn.ID, "ds-1")
	assert.Equal(t, errors.ENotFound, errors.ErrorCode(err))

	// The default moved off the dropped datastore.
	got, err := f.svc.FindTenantByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, volauth.DatastoreID("ds-2"), got.DefaultDatastore)
}

func TestService_SetAccessPrivileges_GrandfathersQuota(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	tn := &volauth.Tenant{Name: "a"}
	require.NoError(t, f.svc.CreateTenant(ctx, tn, nil, []volauth.AccessPrivilege{
		{Datastore: "ds-1", CreateVolumes: true, UsageQuota: 100},
	}))

	ok, err := f.ledger.Reserve(ctx, tn.ID, "ds-1", 80, 0, 100)
	require.NoError(t, err)
	require.True(t, ok)

	// Lowering the quota below current consumption is accepted, not
	// rejected; the existing usage stays on the books.
	require.NoError(t, f.svc.SetAccessPrivileges(ctx, tn.ID, []volauth.AccessPrivilege{
		{Datastore: "ds-1", CreateVolumes: true, UsageQuota: 50},
	}))

	used, err := f.ledger.Usage(ctx, tn.ID, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(80), used)

	// New reserves against the lowered quota are blocked.
	ok, err = f.ledger.Reserve(ctx, tn.ID, "ds-1", 10, 0, 50)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_AddAccessPrivilege(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	tn := &volauth.Tenant{Name: "a"}
	require.NoError(t, f.svc.CreateTenant(ctx, tn, nil, nil))

	require.NoError(t, f.svc.AddAccessPrivilege(ctx, tn.ID, volauth.AccessPrivilege{
		Datastore: "ds-1", MountVolumes: true,
	}, false))

	// The first granted datastore becomes the default even without the
	// explicit flag.
	got, err := f.svc.FindTenantByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, volauth.DatastoreID("ds-1"), got.DefaultDatastore)

	err = f.svc.AddAccessPrivilege(ctx, tn.ID, volauth.AccessPrivilege{Datastore: "ds-1"}, false)
	require.Error(t, err)
	assert.Equal(t, errors.EConflict, errors.ErrorCode(err))

	require.NoError(t, f.svc.AddAccessPrivilege(ctx, tn.ID, volauth.AccessPrivilege{
		Datastore: "ds-2", CreateVolumes: true,
	}, true))
	got, err = f.svc.FindTenantByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, volauth.DatastoreID("ds-2"), got.DefaultDatastore)
}

func TestService_UpdateAccessPrivilege(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	tn := &volauth.Tenant{Name: "a"}
	require.NoError(t, f.svc.CreateTenant(ctx, tn, nil, []volauth.AccessPrivilege{
		{Datastore: "ds-1", CreateVolumes: true, MaxVolumeSize: 10, UsageQuota: 100},
	}))

	quota := uint64(200)
	deletes := true
	got, err := f.svc.UpdateAccessPrivilege(ctx, tn.ID, "ds-1", volauth.PrivilegeUpdate{
		UsageQuota:    &quota,
		DeleteVolumes: &deletes,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(200), got.UsageQuota)
	assert.True(t, got.DeleteVolumes)
	// Untouched fields survive.
	assert.True(t, got.CreateVolumes)
	assert.Equal(t, uint64(10), got.MaxVolumeSize)

	// A max volume size above the quota is rejected.
	bad := uint64(500)
	_, err = f.svc.UpdateAccessPrivilege(ctx, tn.ID, "ds-1", volauth.PrivilegeUpdate{MaxVolumeSize: &bad})
	require.Error(t, err)
	assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))

	_, err = f.svc.UpdateAccessPrivilege(ctx, tn.ID, "ds-9", volauth.PrivilegeUpdate{UsageQuota: &quota})
	assert.Equal(t, errors.ENotFound, errors.ErrorCode(err))
}

func TestService_RemoveAccessPrivilege(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	tn := &volauth.Tenant{Name: "a"}
	require.NoError(t, f.svc.CreateTenant(ctx, tn, nil, []volauth.AccessPrivilege{
		{Datastore: "ds-1", CreateVolumes: true},
		{Datastore: "ds-2", MountVolumes: true},
	}))

	// Dropping the default datastore's record clears the default.
	require.NoError(t, f.svc.RemoveAccessPrivilege(ctx, tn.ID, "ds-1"))
	got, err := f.svc.FindTenantByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, volauth.DatastoreID(""), got.DefaultDatastore)

	_, err = f.svc.LookupPrivilege(ctx, tn.ID, "ds-1")
	assert.Equal(t, errors.ENotFound, errors.ErrorCode(err))

	err = f.svc.RemoveAccessPrivilege(ctx, tn.ID, "ds-1")
	assert.Equal(t, errors.ENotFound, errors.ErrorCode(err))
}
