package volauth

import (
	"context"
)

// UsageLedger tracks consumed storage per (tenant, datastore) pair.
//
// Reserve and Release on the same key are atomic relative to each other;
// different keys do not contend. The authorization engine is the only
// writer on the admission path; tenant removal drains entries through
// Release and DropTenant.
type UsageLedger interface {
	// Reserve checks size against maxVolumeSize and the remaining quota
	// and, when both pass, increments the consumed bytes in the same
	// atomic step. A zero maxVolumeSize or quota means unlimited.
	Reserve(ctx context.Context, tenantID ID, ds DatastoreID, size, maxVolumeSize, quota uint64) (bool, error)

	// Release decrements the consumed bytes, floored at zero. An
	// underflow is reported as an accounting anomaly, never an error.
	Release(ctx context.Context, tenantID ID, ds DatastoreID, size uint64) error

	// Usage returns the consumed bytes for the pair.
	Usage(ctx context.Context, tenantID ID, ds DatastoreID) (uint64, error)

	// TenantUsage returns consumed bytes per datastore for one tenant.
	TenantUsage(ctx context.Context, tenantID ID) (map[DatastoreID]uint64, error)

	// DropTenant removes every entry of a tenant. Used by tenant removal
	// after the cascade has drained the tenant's volumes.
	DropTenant(ctx context.Context, tenantID ID) error
}
