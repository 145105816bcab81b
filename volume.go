package volauth

import (
	"context"
	"fmt"
)

// Operation is a volume operation subject to authorization.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationDelete Operation = "delete"
	OperationMount  Operation = "mount"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationDelete, OperationMount:
		return true
	}
	return false
}

// Volume is the bookkeeping record of a volume admitted by the
// authorization engine. It ties the (datastore, name) pair to the owning
// tenant and remembers the size accounted against the tenant's quota.
type Volume struct {
	TenantID  ID          `json:"tenantID"`
	Datastore DatastoreID `json:"datastore"`
	Name      string      `json:"name"`
	Size      uint64      `json:"size"`
}

// UsageEntry is the consumed-storage accounting for a (tenant, datastore)
// pair.
type UsageEntry struct {
	TenantID  ID          `json:"tenantID"`
	Datastore DatastoreID `json:"datastore"`
	Consumed  uint64      `json:"consumed"`
}

// StorageBackend performs the physical volume operations. The engine
// authorizes before each call; callers report backend outcomes back so
// ledger reservations can be reconciled.
type StorageBackend interface {
	CreateVolume(ctx context.Context, ds DatastoreID, name string, size uint64) error
	DeleteVolume(ctx context.Context, ds DatastoreID, name string) error
	MountVolume(ctx context.Context, ds DatastoreID, name string, vm VMID) error
}

// ErrVolumeNotFound is the sentinel a StorageBackend returns when asked to
// delete a volume that is already gone. Cascading tenant removal treats it
// as success so re-running a removal converges.
var ErrVolumeNotFound = fmt.Errorf("volume not found")
