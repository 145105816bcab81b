package volauth

import (
	"context"
)

// AccessPrivilege is the per (tenant, datastore) permission and limit
// record. At most one record exists per pair; setting privileges for a
// datastore replaces any prior record at the same key.
//
// A zero MaxVolumeSize or UsageQuota means unlimited.
type AccessPrivilege struct {
	TenantID      ID          `json:"tenantID"`
	Datastore     DatastoreID `json:"datastore"`
	CreateVolumes bool        `json:"createVolumes"`
	DeleteVolumes bool        `json:"deleteVolumes"`
	MountVolumes  bool        `json:"mountVolumes"`
	MaxVolumeSize uint64      `json:"maxVolumeSize"`
	UsageQuota    uint64      `json:"usageQuota"`
}

// Allows reports whether the privilege record permits op.
func (p *AccessPrivilege) Allows(op Operation) bool {
	switch op {
	case OperationCreate:
		return p.CreateVolumes
	case OperationDelete:
		return p.DeleteVolumes
	case OperationMount:
		return p.MountVolumes
	}
	return false
}

// PrivilegeService manages datastore access privileges for tenants.
type PrivilegeService interface {
	// LookupPrivilege returns the privilege record for the
	// (tenant, datastore) pair.
	LookupPrivilege(ctx context.Context, tenantID ID, ds DatastoreID) (*AccessPrivilege, error)

	// ListPrivileges returns all privilege records of a tenant in
	// datastore order.
	ListPrivileges(ctx context.Context, tenantID ID) ([]AccessPrivilege, error)

	// SetAccessPrivileges replaces the full set of privilege records for
	// the tenant in one atomic step.
	SetAccessPrivileges(ctx context.Context, tenantID ID, privileges []AccessPrivilege) error

	// AddAccessPrivilege installs a privilege record for a datastore the
	// tenant has no record for yet. The first record granted to a tenant
	// becomes its default datastore unless makeDefault forces it.
	AddAccessPrivilege(ctx context.Context, tenantID ID, p AccessPrivilege, makeDefault bool) error

	// UpdateAccessPrivilege modifies an existing privilege record.
	UpdateAccessPrivilege(ctx context.Context, tenantID ID, ds DatastoreID, upd PrivilegeUpdate) (*AccessPrivilege, error)

	// RemoveAccessPrivilege drops the record for the (tenant, datastore)
	// pair. Dropping the record of the tenant's default datastore clears
	// the default.
	RemoveAccessPrivilege(ctx context.Context, tenantID ID, ds DatastoreID) error
}

// PrivilegeUpdate represents updates to a privilege record.
// Only fields which are set are updated.
type PrivilegeUpdate struct {
	CreateVolumes *bool   `json:"createVolumes,omitempty"`
	DeleteVolumes *bool   `json:"deleteVolumes,omitempty"`
	MountVolumes  *bool   `json:"mountVolumes,omitempty"`
	MaxVolumeSize *uint64 `json:"maxVolumeSize,omitempty"`
	UsageQuota    *uint64 `json:"usageQuota,omitempty"`
}
