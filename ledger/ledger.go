// Package ledger tracks consumed storage per (tenant, datastore) pair.
//
// Reserve is a single atomic check-and-increment per key, so concurrent
// reservations can never over-allocate a quota. Keys are independent on
// the admission check: entries are guarded by striped mutexes chosen by
// key hash, so unrelated tenants and datastores do not contend in memory.
// The kv write-through behind each mutation still goes through the
// store's single writer.
package ledger

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kv"
)

const numStripes = 64

var usageBucket = []byte("usagev1")

// Ledger is the usage ledger. The in-memory entries are authoritative for
// admission; every mutation is written through to the kv store so the
// ledger can be reloaded at process start.
type Ledger struct {
	store kv.Store
	log   *zap.Logger

	stripes [numStripes]sync.Mutex

	mu      sync.RWMutex
	entries map[entryKey]uint64
}

var _ volauth.UsageLedger = (*Ledger)(nil)

type entryKey struct {
	tenant    volauth.ID
	datastore volauth.DatastoreID
}

func (k entryKey) bytes() []byte {
	b := make([]byte, 0, len(k.tenant)+len(k.datastore)+1)
	b = append(b, k.tenant...)
	b = append(b, '/')
	b = append(b, k.datastore...)
	return b
}

// New creates a ledger persisting to store.
func New(store kv.Store, log *zap.Logger) *Ledger {
	return &Ledger{
		store:   store,
		log:     log,
		entries: map[entryKey]uint64{},
	}
}

// Load rebuilds the in-memory entries from the kv store. Called once at
// process start before the ledger is handed to the engine.
func (l *Ledger) Load(ctx context.Context) error {
	entries := map[entryKey]uint64{}
	err := l.store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(usageBucket)
		if err != nil {
			return err
		}

		cursor, err := b.ForwardCursor(nil)
		if err != nil {
			return err
		}
		defer cursor.Close()

		for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
			var e volauth.UsageEntry
			if err := json.Unmarshal(v, &e); err != nil {
				l.log.Warn("skipping corrupt usage entry", zap.ByteString("key", k), zap.Error(err))
				continue
			}
			entries[entryKey{tenant: e.TenantID, datastore: e.Datastore}] = e.Consumed
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	return nil
}

func (l *Ledger) stripe(k entryKey) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(k.tenant))
	h.Write([]byte{'/'})
	h.Write([]byte(k.datastore))
	return &l.stripes[h.Sum32()%numStripes]
}

func (l *Ledger) consumed(k entryKey) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[k]
}

func (l *Ledger) setConsumed(k entryKey, v uint64) {
	l.mu.Lock()
	l.entries[k] = v
	l.mu.Unlock()
}

// Reserve checks size against maxVolumeSize and the remaining quota and
// increments the consumed bytes when both pass. A zero maxVolumeSize or
// quota means unlimited. The check and the increment happen under the
// key's stripe lock, so concurrent reserves on one key serialize while
// other keys proceed.
func (l *Ledger) Reserve(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID, size, maxVolumeSize, quota uint64) (bool, error) {
	if maxVolumeSize != 0 && size > maxVolumeSize {
		return false, nil
	}

	k := entryKey{tenant: tenantID, datastore: ds}
	mu := l.stripe(k)
	mu.Lock()
	defer mu.Unlock()

	consumed := l.consumed(k)
	// The sum must not wrap: a wrapped value slips under the quota
	// comparison and corrupts the entry.
	if size > math.MaxUint64-consumed {
		return false, nil
	}
	if quota != 0 && consumed+size > quota {
		return false, nil
	}

	if err := l.persist(ctx, k, consumed+size); err != nil {
		return false, err
	}
	l.setConsumed(k, consumed+size)
	return true, nil
}

// Release decrements the consumed bytes, floored at zero. Releasing more
// than is consumed clamps the entry and reports an accounting anomaly;
// it never fails the triggering operation.
func (l *Ledger) Release(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID, size uint64) error {
	k := entryKey{tenant: tenantID, datastore: ds}
	mu := l.stripe(k)
	mu.Lock()
	defer mu.Unlock()

	consumed := l.consumed(k)
	next := uint64(0)
	if size > consumed {
		l.log.Warn("accounting anomaly: release exceeds consumed bytes; clamping to zero",
			zap.String("tenant", string(tenantID)),
			zap.String("datastore", string(ds)),
			zap.Uint64("consumed", consumed),
			zap.Uint64("release", size))
	} else {
		next = consumed - size
	}

	if err := l.persist(ctx, k, next); err != nil {
		return err
	}
	l.setConsumed(k, next)
	return nil
}

// Usage returns the consumed bytes for the pair.
func (l *Ledger) Usage(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID) (uint64, error) {
	return l.consumed(entryKey{tenant: tenantID, datastore: ds}), nil
}

// TenantUsage returns consumed bytes per datastore for one tenant.
func (l *Ledger) TenantUsage(ctx context.Context, tenantID volauth.ID) (map[volauth.DatastoreID]uint64, error) {
	usage := map[volauth.DatastoreID]uint64{}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for k, v := range l.entries {
		if k.tenant == tenantID && v > 0 {
			usage[k.datastore] = v
		}
	}
	return usage, nil
}

// DropTenant removes every entry of a tenant, memory and store both.
func (l *Ledger) DropTenant(ctx context.Context, tenantID volauth.ID) error {
	l.mu.Lock()
	keys := []entryKey{}
	for k := range l.entries {
		if k.tenant == tenantID {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		delete(l.entries, k)
	}
	l.mu.Unlock()

	return l.store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(usageBucket)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k.bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

// persist writes the entry through to the kv store. The write shares the
// store's single writer, so this step serializes across keys; only the
// in-memory check-and-increment is contention-free per stripe.
func (l *Ledger) persist(ctx context.Context, k entryKey, consumed uint64) error {
	e := volauth.UsageEntry{
		TenantID:  k.tenant,
		Datastore: k.datastore,
		Consumed:  consumed,
	}
	v, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return l.store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(usageBucket)
		if err != nil {
			return err
		}
		return b.Put(k.bytes(), v)
	})
}
