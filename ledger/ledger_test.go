package ledger_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/inmem"
	"github.com/volaas/volauth/ledger"
)

func TestLedger_ReserveRelease(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(inmem.NewKVStore(), zaptest.NewLogger(t))

	ok, err := l.Reserve(ctx, "t1", "ds-1", 30, 0, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	used, err := l.Usage(ctx, "t1", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(30), used)

	// Oversized single volume.
	ok, err = l.Reserve(ctx, "t1", "ds-1", 20, 10, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	// Over quota.
	ok, err = l.Reserve(ctx, "t1", "ds-1", 80, 0, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	// Zero limits mean unlimited.
	ok, err = l.Reserve(ctx, "t1", "ds-1", 1<<40, 0, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "t1", "ds-1", 1<<40))
	used, err = l.Usage(ctx, "t1", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(30), used)
}

func TestLedger_ConcurrentReserves(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(inmem.NewKVStore(), zaptest.NewLogger(t))

	// 20 goroutines race for a quota of 100 with 30-byte volumes; at most
	// 3 may win regardless of interleaving.
	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Reserve(ctx, "t1", "ds-1", 30, 0, 100)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), admitted)
	used, err := l.Usage(ctx, "t1", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(90), used)
}

func TestLedger_ReserveRejectsWrappingSize(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(inmem.NewKVStore(), zaptest.NewLogger(t))

	ok, err := l.Reserve(ctx, "t1", "ds-1", 50, 0, 100)
	require.NoError(t, err)
	require.True(t, ok)

	// consumed+size wraps uint64 here; the wrapped sum must not pass the
	// quota check or reach the entry.
	ok, err = l.Reserve(ctx, "t1", "ds-1", math.MaxUint64-5, 0, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	// The same size against an unlimited quota must not wrap the counter
	// either.
	ok, err = l.Reserve(ctx, "t1", "ds-1", math.MaxUint64-5, 0, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	used, err := l.Usage(ctx, "t1", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), used)
}

func TestLedger_ReleaseClampsAtZero(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(inmem.NewKVStore(), zaptest.NewLogger(t))

	ok, err := l.Reserve(ctx, "t1", "ds-1", 10, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)

	// Releasing more than is consumed clamps instead of failing.
	require.NoError(t, l.Release(ctx, "t1", "ds-1", 25))
	used, err := l.Usage(ctx, "t1", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), used)
}

func TestLedger_Reload(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewKVStore()

	l := ledger.New(store, zaptest.NewLogger(t))
	ok, err := l.Reserve(ctx, "t1", "ds-1", 40, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = l.Reserve(ctx, "t1", "ds-2", 10, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)

	// A fresh ledger over the same store picks the entries back up.
	reloaded := ledger.New(store, zaptest.NewLogger(t))
	require.NoError(t, reloaded.Load(ctx))

	usage, err := reloaded.TenantUsage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, map[volauth.DatastoreID]uint64{"ds-1": 40, "ds-2": 10}, usage)
}

func TestLedger_DropTenant(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewKVStore()
	l := ledger.New(store, zaptest.NewLogger(t))

	for _, ds := range []volauth.DatastoreID{"ds-1", "ds-2"} {
		ok, err := l.Reserve(ctx, "t1", ds, 10, 0, 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := l.Reserve(ctx, "t2", "ds-1", 5, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.DropTenant(ctx, "t1"))

	usage, err := l.TenantUsage(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, usage)

	// Other tenants are untouched, and the drop survives a reload.
	reloaded := ledger.New(store, zaptest.NewLogger(t))
	require.NoError(t, reloaded.Load(ctx))
	usage, err = reloaded.TenantUsage(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, usage)
	used, err := reloaded.Usage(ctx, "t2", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), used)
}
