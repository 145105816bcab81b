package tenant

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kv"
)

// Store wraps the kv store with the buckets and indexes the tenant
// registry owns. All reads go through View snapshots; every mutation of
// the membership or name indexes happens inside a single Update
// transaction, which is the consistency boundary for the system-wide
// uniqueness invariants.
type Store struct {
	kvStore kv.Store
	log     *zap.Logger

	IDGen volauth.IDGenerator

	clock clock.Clock
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the clock used for record timestamps.
func WithClock(c clock.Clock) StoreOption {
	return func(s *Store) {
		s.clock = c
	}
}

// WithIDGenerator sets the tenant ID generator.
func WithIDGenerator(g volauth.IDGenerator) StoreOption {
	return func(s *Store) {
		s.IDGen = g
	}
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(log *zap.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates a tenant store on top of the kv store.
func NewStore(kvStore kv.Store, opts ...StoreOption) *Store {
	store := &Store{
		kvStore: kvStore,
		log:     zap.NewNop(),
		IDGen:   volauth.NewIDGenerator(),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// View opens up a transaction that will not write to any data.
func (s *Store) View(ctx context.Context, fn func(kv.Tx) error) error {
	return s.kvStore.View(ctx, fn)
}

// Update opens up a transaction that will mutate data.
func (s *Store) Update(ctx context.Context, fn func(kv.Tx) error) error {
	return s.kvStore.Update(ctx, fn)
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}
