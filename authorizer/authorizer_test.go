package authorizer_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/authorizer"
	"github.com/volaas/volauth/inmem"
	"github.com/volaas/volauth/kit/platform/errors"
	"github.com/volaas/volauth/ledger"
	"github.com/volaas/volauth/mock"
	"github.com/volaas/volauth/tenant"
)

type engineFixture struct {
	engine  *authorizer.Authorizer
	svc     *tenant.Service
	backend *mock.StorageBackend
	ledger  *ledger.Ledger

	eng volauth.ID
	hr  volauth.ID
}

// newEngineFixture seeds two tenants:
//
//	eng: vm-1, ds-1 create+mount, max size 10, quota 20
//	hr:  vm-2, ds-1 full access, unlimited
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctx := context.Background()

	kvStore := inmem.NewKVStore()
	st := tenant.NewStore(kvStore, tenant.WithIDGenerator(mock.NewSequentialIDGenerator("tenant")))
	backend := mock.NewStorageBackend()
	inv := mock.NewInventoryService(
		[]volauth.VM{{ID: "vm-1"}, {ID: "vm-2"}},
		[]volauth.Datastore{{ID: "ds-1"}},
	)
	led := ledger.New(kvStore, zaptest.NewLogger(t))
	svc := tenant.NewService(st, backend, inv, led)

	eng := &volauth.Tenant{Name: "eng"}
	require.NoError(t, svc.CreateTenant(ctx, eng, []volauth.VMID{"vm-1"}, []volauth.AccessPrivilege{
		{Datastore: "ds-1", CreateVolumes: true, MountVolumes: true, MaxVolumeSize: 10, UsageQuota: 20},
	}))
	hr := &volauth.Tenant{Name: "hr"}
	require.NoError(t, svc.CreateTenant(ctx, hr, []volauth.VMID{"vm-2"}, []volauth.AccessPrivilege{
		{Datastore: "ds-1", CreateVolumes: true, DeleteVolumes: true, MountVolumes: true},
	}))

	return &engineFixture{
		engine:  authorizer.New(st, led, authorizer.WithLogger(zaptest.NewLogger(t))),
		svc:     svc,
		backend: backend,
		ledger:  led,
		eng:     eng.ID,
		hr:      hr.ID,
	}
}

func (f *engineFixture) authorize(t *testing.T, req volauth.AuthorizeRequest) volauth.Decision {
	t.Helper()
	d, err := f.engine.Authorize(context.Background(), req)
	require.NoError(t, err)
	return d
}

func TestAuthorizer_Denials(t *testing.T) {
	f := newEngineFixture(t)

	tests := []struct {
		name   string
		req    volauth.AuthorizeRequest
		reason volauth.DenyReason
	}{
		{
			name:   "vm without tenant",
			req:    volauth.AuthorizeRequest{VM: "vm-9", Datastore: "ds-1", Operation: volauth.OperationMount, Name: "v"},
			reason: volauth.DenyNoTenant,
		},
		{
			name:   "no privilege for datastore",
			req:    volauth.AuthorizeRequest{VM: "vm-1", Datastore: "ds-9", Operation: volauth.OperationMount, Name: "v"},
			reason: volauth.DenyNoAccess,
		},
		{
			name:   "operation not permitted",
			req:    volauth.AuthorizeRequest{VM: "vm-1", Datastore: "ds-1", Operation: volauth.OperationDelete, Name: "v"},
			reason: volauth.DenyOperationNotPermitted,
		},
		{
			name:   "volume above size cap",
			req:    volauth.AuthorizeRequest{VM: "vm-1", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "big", Size: 15},
			reason: volauth.DenyVolumeTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.authorize(t, tt.req)
			assert.False(t, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}

	// A denied create must not touch the ledger.
	used, err := f.ledger.Usage(context.Background(), f.eng, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), used)
}

func TestAuthorizer_CreateReservesQuota(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	create := func(name string) volauth.Decision {
		return f.authorize(t, volauth.AuthorizeRequest{
			VM: "vm-1", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: name, Size: 8,
		})
	}

	d := create("vol-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, f.eng, d.TenantID)
	d = create("vol-2")
	assert.True(t, d.Allowed)

	// 16 of 20 consumed; the third create breaks the quota.
	d = create("vol-3")
	assert.False(t, d.Allowed)
	assert.Equal(t, volauth.DenyQuotaExceeded, d.Reason)

	used, err := f.ledger.Usage(ctx, f.eng, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), used)

	// Re-creating an admitted name is an error, not a double reserve.
	_, err = f.engine.Authorize(ctx, volauth.AuthorizeRequest{
		VM: "vm-1", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "vol-1", Size: 8,
	})
	require.Error(t, err)
	assert.Equal(t, errors.EConflict, errors.ErrorCode(err))
}

func TestAuthorizer_ConcurrentCreateChargesOnce(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	// Two tenants race to create the same (datastore, name). Whatever the
	// interleaving, exactly one create is admitted, exactly one
	// reservation survives, and the record has exactly one owner.
	var allowed int64
	var wg sync.WaitGroup
	for _, vm := range []volauth.VMID{"vm-1", "vm-1", "vm-1", "vm-2", "vm-2", "vm-2"} {
		wg.Add(1)
		go func(vm volauth.VMID) {
			defer wg.Done()
			d, err := f.engine.Authorize(ctx, volauth.AuthorizeRequest{
				VM: vm, Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "shared", Size: 8,
			})
			if err != nil {
				// Losing against your own tenant's winning create is the
				// name-taken conflict.
				assert.Equal(t, errors.EConflict, errors.ErrorCode(err))
				return
			}
			if d.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}(vm)
	}
	wg.Wait()

	assert.Equal(t, int64(1), allowed)

	usedEng, err := f.ledger.Usage(ctx, f.eng, "ds-1")
	require.NoError(t, err)
	usedHr, err := f.ledger.Usage(ctx, f.hr, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), usedEng+usedHr)
}

func TestAuthorizer_TenantIsolation(t *testing.T) {
	f := newEngineFixture(t)

	d := f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-2", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "hr-vol", Size: 5,
	})
	require.True(t, d.Allowed)

	// Another tenant's volume is invisible, whatever the operation.
	for _, op := range []volauth.Operation{volauth.OperationMount, volauth.OperationCreate} {
		d := f.authorize(t, volauth.AuthorizeRequest{
			VM: "vm-1", Datastore: "ds-1", Operation: op, Name: "hr-vol", Size: 5,
		})
		assert.False(t, d.Allowed, "operation %s", op)
		assert.Equal(t, volauth.DenyTenantIsolationViolated, d.Reason)
	}
}

func TestAuthorizer_DeleteReleasesQuota(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	d := f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-2", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "hr-vol", Size: 7,
	})
	require.True(t, d.Allowed)

	d = f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-2", Datastore: "ds-1", Operation: volauth.OperationDelete, Name: "hr-vol",
	})
	assert.True(t, d.Allowed)
	assert.Equal(t, uint64(7), d.ReleasedBytes)

	used, err := f.ledger.Usage(ctx, f.hr, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), used)

	// Deleting a volume this manager never admitted passes through with
	// nothing to release.
	d = f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-2", Datastore: "ds-1", Operation: volauth.OperationDelete, Name: "stray",
	})
	assert.True(t, d.Allowed)
	assert.Equal(t, uint64(0), d.ReleasedBytes)
}

func TestAuthorizer_CompensateCreate(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	d := f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-1", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "vol", Size: 8,
	})
	require.True(t, d.Allowed)

	require.NoError(t, f.engine.CompensateCreate(ctx, f.eng, "ds-1", "vol"))
	used, err := f.ledger.Usage(ctx, f.eng, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), used)

	// Running the compensation twice is harmless.
	require.NoError(t, f.engine.CompensateCreate(ctx, f.eng, "ds-1", "vol"))
	used, err = f.ledger.Usage(ctx, f.eng, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), used)

	// The name is free again.
	d = f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-1", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "vol", Size: 8,
	})
	assert.True(t, d.Allowed)
}

func TestVolumeService_CreateCompensatesBackendFailure(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.backend.CreateVolumeFn = func(ctx context.Context, ds volauth.DatastoreID, name string, size uint64) error {
		return fmt.Errorf("datastore offline")
	}
	vs := authorizer.NewVolumeService(f.engine, f.backend, zaptest.NewLogger(t))

	err := vs.CreateVolume(ctx, "vm-1", "ds-1", "vol", 8)
	require.Error(t, err)
	assert.Equal(t, errors.EUnavailable, errors.ErrorCode(err))

	// The failed create left no reservation and no record behind.
	used, err := f.ledger.Usage(ctx, f.eng, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), used)
	d := f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-1", Datastore: "ds-1", Operation: volauth.OperationCreate, Name: "vol", Size: 8,
	})
	assert.True(t, d.Allowed)
}

func TestVolumeService_DeleteCompensatesBackendFailure(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	vs := authorizer.NewVolumeService(f.engine, f.backend, zaptest.NewLogger(t))

	require.NoError(t, vs.CreateVolume(ctx, "vm-2", "ds-1", "vol", 7))

	f.backend.DeleteVolumeFn = func(ctx context.Context, ds volauth.DatastoreID, name string) error {
		return fmt.Errorf("datastore offline")
	}
	err := vs.DeleteVolume(ctx, "vm-2", "ds-1", "vol")
	require.Error(t, err)
	assert.Equal(t, errors.EUnavailable, errors.ErrorCode(err))

	// The admitted delete was rolled back: the reservation and the record
	// both still stand.
	used, err := f.ledger.Usage(ctx, f.hr, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), used)

	d := f.authorize(t, volauth.AuthorizeRequest{
		VM: "vm-2", Datastore: "ds-1", Operation: volauth.OperationDelete, Name: "vol",
	})
	assert.True(t, d.Allowed)
	assert.Equal(t, uint64(7), d.ReleasedBytes)
}

func TestVolumeService_DeniedOperation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	vs := authorizer.NewVolumeService(f.engine, f.backend, zaptest.NewLogger(t))

	err := vs.DeleteVolume(ctx, "vm-1", "ds-1", "vol")
	require.Error(t, err)
	assert.Equal(t, errors.EForbidden, errors.ErrorCode(err))
	assert.Equal(t, 0, f.backend.VolumeCount())
}
