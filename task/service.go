package task

import (
	"context"

	"github.com/volaas/volauth"
)

// Service is the asynchronous management API. Every mutating tenant or
// privilege operation returns a task handle rather than blocking the
// caller to completion; synchronous reads pass straight through.
type Service struct {
	coordinator *Coordinator
	tenants     volauth.TenantService
	privileges  volauth.PrivilegeService
}

// NewService wraps the tenant and privilege services behind the
// coordinator.
func NewService(c *Coordinator, tenants volauth.TenantService, privileges volauth.PrivilegeService) *Service {
	return &Service{
		coordinator: c,
		tenants:     tenants,
		privileges:  privileges,
	}
}

// Coordinator exposes the underlying coordinator for task queries.
func (s *Service) Coordinator() *Coordinator {
	return s.coordinator
}

// CreateTenant enqueues a tenant creation. The task result is the created
// tenant.
func (s *Service) CreateTenant(ctx context.Context, t *volauth.Tenant, vms []volauth.VMID, privileges []volauth.AccessPrivilege) *Task {
	tenant := *t
	return s.coordinator.Submit(ctx, "tenant-create", func(ctx context.Context) (interface{}, error) {
		if err := s.tenants.CreateTenant(ctx, &tenant, vms, privileges); err != nil {
			return nil, err
		}
		return &tenant, nil
	})
}

// UpdateTenant enqueues a tenant update. The task result is the updated
// tenant.
func (s *Service) UpdateTenant(ctx context.Context, id volauth.ID, upd volauth.TenantUpdate) *Task {
	return s.coordinator.Submit(ctx, "tenant-update", func(ctx context.Context) (interface{}, error) {
		return s.tenants.UpdateTenant(ctx, id, upd)
	})
}

// RemoveTenant enqueues a tenant removal. The task result is a snapshot
// of the removed tenant.
func (s *Service) RemoveTenant(ctx context.Context, id volauth.ID, deleteVolumes bool) *Task {
	return s.coordinator.Submit(ctx, "tenant-remove", func(ctx context.Context) (interface{}, error) {
		return s.tenants.RemoveTenant(ctx, id, deleteVolumes)
	})
}

// AddVMs enqueues a membership addition.
func (s *Service) AddVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) *Task {
	return s.coordinator.Submit(ctx, "tenant-add-vms", func(ctx context.Context) (interface{}, error) {
		return nil, s.tenants.AddVMs(ctx, id, vms)
	})
}

// RemoveVMs enqueues a membership removal.
func (s *Service) RemoveVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) *Task {
	return s.coordinator.Submit(ctx, "tenant-remove-vms", func(ctx context.Context) (interface{}, error) {
		return nil, s.tenants.RemoveVMs(ctx, id, vms)
	})
}

// ReplaceVMs enqueues a member-set replacement.
func (s *Service) ReplaceVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) *Task {
	return s.coordinator.Submit(ctx, "tenant-replace-vms", func(ctx context.Context) (interface{}, error) {
		return nil, s.tenants.ReplaceVMs(ctx, id, vms)
	})
}

// SetAccessPrivileges enqueues a full privilege replacement.
func (s *Service) SetAccessPrivileges(ctx context.Context, id volauth.ID, privileges []volauth.AccessPrivilege) *Task {
	return s.coordinator.Submit(ctx, "privilege-set", func(ctx context.Context) (interface{}, error) {
		return nil, s.privileges.SetAccessPrivileges(ctx, id, privileges)
	})
}

// AddAccessPrivilege enqueues a privilege addition.
func (s *Service) AddAccessPrivilege(ctx context.Context, id volauth.ID, p volauth.AccessPrivilege, makeDefault bool) *Task {
	return s.coordinator.Submit(ctx, "privilege-add", func(ctx context.Context) (interface{}, error) {
		return nil, s.privileges.AddAccessPrivilege(ctx, id, p, makeDefault)
	})
}

// UpdateAccessPrivilege enqueues a privilege update. The task result is
// the updated record.
func (s *Service) UpdateAccessPrivilege(ctx context.Context, id volauth.ID, ds volauth.DatastoreID, upd volauth.PrivilegeUpdate) *Task {
	return s.coordinator.Submit(ctx, "privilege-update", func(ctx context.Context) (interface{}, error) {
		return s.privileges.UpdateAccessPrivilege(ctx, id, ds, upd)
	})
}

// RemoveAccessPrivilege enqueues a privilege removal.
func (s *Service) RemoveAccessPrivilege(ctx context.Context, id volauth.ID, ds volauth.DatastoreID) *Task {
	return s.coordinator.Submit(ctx, "privilege-remove", func(ctx context.Context) (interface{}, error) {
		return nil, s.privileges.RemoveAccessPrivilege(ctx, id, ds)
	})
}

// Synchronous reads pass through to the underlying services.

func (s *Service) ListTenants(ctx context.Context) ([]*volauth.Tenant, error) {
	return s.tenants.ListTenants(ctx)
}

func (s *Service) FindTenantByID(ctx context.Context, id volauth.ID) (*volauth.Tenant, error) {
	return s.tenants.FindTenantByID(ctx, id)
}

func (s *Service) FindTenant(ctx context.Context, filter volauth.TenantFilter) (*volauth.Tenant, error) {
	return s.tenants.FindTenant(ctx, filter)
}

func (s *Service) TenantVMs(ctx context.Context, id volauth.ID) ([]volauth.VMID, error) {
	return s.tenants.TenantVMs(ctx, id)
}

func (s *Service) AvailableVMs(ctx context.Context) ([]volauth.VM, error) {
	return s.tenants.AvailableVMs(ctx)
}

func (s *Service) ListPrivileges(ctx context.Context, id volauth.ID) ([]volauth.AccessPrivilege, error) {
	return s.privileges.ListPrivileges(ctx, id)
}
