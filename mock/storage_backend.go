package mock

import (
	"context"
	"sync"

	"github.com/volaas/volauth"
)

var _ volauth.StorageBackend = (*StorageBackend)(nil)

// StorageBackend is a mock implementation of volauth.StorageBackend. The
// default functions keep an in-memory set of volumes so cascade and
// idempotency behavior can be exercised without a real backend.
type StorageBackend struct {
	CreateVolumeFn func(ctx context.Context, ds volauth.DatastoreID, name string, size uint64) error
	DeleteVolumeFn func(ctx context.Context, ds volauth.DatastoreID, name string) error
	MountVolumeFn  func(ctx context.Context, ds volauth.DatastoreID, name string, vm volauth.VMID) error

	mu      sync.Mutex
	volumes map[string]uint64

	// Deleted records every name passed to a successful delete, in order.
	Deleted []string
}

// NewStorageBackend returns a backend with the in-memory default
// behavior. Deleting an absent volume returns volauth.ErrVolumeNotFound.
func NewStorageBackend() *StorageBackend {
	b := &StorageBackend{
		volumes: map[string]uint64{},
	}
	b.CreateVolumeFn = func(ctx context.Context, ds volauth.DatastoreID, name string, size uint64) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.volumes[string(ds)+"/"+name] = size
		return nil
	}
	b.DeleteVolumeFn = func(ctx context.Context, ds volauth.DatastoreID, name string) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		key := string(ds) + "/" + name
		if _, ok := b.volumes[key]; !ok {
			return volauth.ErrVolumeNotFound
		}
		delete(b.volumes, key)
		b.Deleted = append(b.Deleted, key)
		return nil
	}
	b.MountVolumeFn = func(ctx context.Context, ds volauth.DatastoreID, name string, vm volauth.VMID) error {
		return nil
	}
	return b
}

func (b *StorageBackend) CreateVolume(ctx context.Context, ds volauth.DatastoreID, name string, size uint64) error {
	return b.CreateVolumeFn(ctx, ds, name, size)
}

func (b *StorageBackend) DeleteVolume(ctx context.Context, ds volauth.DatastoreID, name string) error {
	return b.DeleteVolumeFn(ctx, ds, name)
}

func (b *StorageBackend) MountVolume(ctx context.Context, ds volauth.DatastoreID, name string, vm volauth.VMID) error {
	return b.MountVolumeFn(ctx, ds, name, vm)
}

// VolumeCount reports how many volumes the in-memory backend holds.
func (b *StorageBackend) VolumeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.volumes)
}
