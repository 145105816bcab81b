package volauth

import (
	"context"
	"time"
)

const (
	// MaxTenantNameLength bounds tenant names.
	MaxTenantNameLength = 64
	// MaxTenantDescriptionLength bounds tenant descriptions.
	MaxTenantDescriptionLength = 256
)

// Tenant is the isolation boundary grouping VMs and their datastore
// privileges.
type Tenant struct {
	ID               ID          `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	DefaultDatastore DatastoreID `json:"defaultDatastore,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// TenantService manages tenants and their VM memberships.
//
// A VM is a member of at most one tenant system wide; every operation that
// mutates memberships upholds that invariant atomically.
type TenantService interface {
	// FindTenantByID returns a single tenant by ID.
	FindTenantByID(ctx context.Context, id ID) (*Tenant, error)

	// FindTenant returns the first tenant that matches filter.
	FindTenant(ctx context.Context, filter TenantFilter) (*Tenant, error)

	// ListTenants returns a consistent snapshot of all tenants.
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// CreateTenant creates a new tenant with the given member VMs and
	// privilege records, and sets t.ID with the new identifier.
	CreateTenant(ctx context.Context, t *Tenant, vms []VMID, privileges []AccessPrivilege) error

	// UpdateTenant updates a single tenant with changeset.
	// Returns the new tenant state after update.
	UpdateTenant(ctx context.Context, id ID, upd TenantUpdate) (*Tenant, error)

	// RemoveTenant removes a tenant by ID. When deleteVolumes is false the
	// removal fails while any of the tenant's volumes exist; when true the
	// tenant's volumes are deleted from the storage backend first.
	// Returns a snapshot of the removed tenant.
	RemoveTenant(ctx context.Context, id ID, deleteVolumes bool) (*Tenant, error)

	// AddVMs adds member VMs to a tenant. Fails if any VM is already a
	// member of any tenant.
	AddVMs(ctx context.Context, id ID, vms []VMID) error

	// RemoveVMs removes member VMs from a tenant. Fails if any VM is not
	// currently a member of this tenant.
	RemoveVMs(ctx context.Context, id ID, vms []VMID) error

	// ReplaceVMs swaps the tenant's member set in one atomic step.
	ReplaceVMs(ctx context.Context, id ID, vms []VMID) error

	// TenantVMs returns the member VMs of a tenant.
	TenantVMs(ctx context.Context, id ID) ([]VMID, error)

	// TenantByVM resolves the tenant a VM belongs to, if any.
	TenantByVM(ctx context.Context, vm VMID) (*Tenant, error)

	// AvailableVMs returns VMs present in inventory that are not a member
	// of any tenant.
	AvailableVMs(ctx context.Context) ([]VM, error)
}

// TenantUpdate represents updates to a tenant.
// Only fields which are set are updated.
type TenantUpdate struct {
	Name             *string      `json:"name,omitempty"`
	Description      *string      `json:"description,omitempty"`
	DefaultDatastore *DatastoreID `json:"defaultDatastore,omitempty"`
}

// TenantFilter restricts tenant lookups.
type TenantFilter struct {
	ID   *ID
	Name *string
}
