package tenant

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kv"
)

// FindTenantByID returns a single tenant by ID.
func (s *Service) FindTenantByID(ctx context.Context, id volauth.ID) (*volauth.Tenant, error) {
	var t *volauth.Tenant
	err := s.store.View(ctx, func(tx kv.Tx) error {
		tenant, err := s.store.GetTenant(ctx, tx, id)
		if err != nil {
			return err
		}
		t = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// FindTenant returns the first tenant that matches filter.
func (s *Service) FindTenant(ctx context.Context, filter volauth.TenantFilter) (*volauth.Tenant, error) {
	if filter.ID != nil {
		return s.FindTenantByID(ctx, *filter.ID)
	}
	if filter.Name == nil {
		return nil, ErrTenantNotFound
	}

	var t *volauth.Tenant
	err := s.store.View(ctx, func(tx kv.Tx) error {
		tenant, err := s.store.GetTenantByName(ctx, tx, *filter.Name)
		if err != nil {
			return err
		}
		t = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// ListTenants returns a consistent snapshot of all tenants.
func (s *Service) ListTenants(ctx context.Context) ([]*volauth.Tenant, error) {
	var ts []*volauth.Tenant
	err := s.store.View(ctx, func(tx kv.Tx) error {
		tenants, err := s.store.ListTenants(ctx, tx)
		if err != nil {
			return err
		}
		ts = tenants
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ts, nil
}

// CreateTenant registers the tenant, indexes all VM memberships and
// installs the supplied privilege records in one atomic step.
func (s *Service) CreateTenant(ctx context.Context, t *volauth.Tenant, vms []volauth.VMID, privileges []volauth.AccessPrivilege) error {
	if err := validateTenantFields(t.Name, t.Description); err != nil {
		return err
	}
	for i := range privileges {
		if err := validatePrivilege(&privileges[i]); err != nil {
			return err
		}
	}

	return s.store.Update(ctx, func(tx kv.Tx) error {
		if err := s.store.CreateTenant(ctx, tx, t); err != nil {
			return err
		}

		if err := s.store.AddMemberships(ctx, tx, t.ID, vms); err != nil {
			return err
		}

		for i := range privileges {
			p := privileges[i]
			p.TenantID = t.ID
			if err := s.store.PutPrivilege(ctx, tx, &p); err != nil {
				return err
			}
		}

		// The first datastore a tenant is granted becomes its default.
		if t.DefaultDatastore == "" && len(privileges) > 0 {
			t.DefaultDatastore = privileges[0].Datastore
			if err := s.store.putTenant(tx, t); err != nil {
				return err
			}
		}

		return nil
	})
}

// UpdateTenant updates a single tenant with changeset.
func (s *Service) UpdateTenant(ctx context.Context, id volauth.ID, upd volauth.TenantUpdate) (*volauth.Tenant, error) {
	if upd.Name != nil {
		if err := validateTenantFields(*upd.Name, ""); err != nil {
			return nil, err
		}
	}
	if upd.Description != nil && len(*upd.Description) > volauth.MaxTenantDescriptionLength {
		return nil, ErrDescriptionTooLong
	}

	var t *volauth.Tenant
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		if upd.DefaultDatastore != nil && *upd.DefaultDatastore != "" {
			// The default datastore must be one the tenant has access to.
			if _, err := s.store.GetPrivilege(ctx, tx, id, *upd.DefaultDatastore); err != nil {
				return err
			}
		}

		tenant, err := s.store.UpdateTenant(ctx, tx, id, upd)
		if err != nil {
			return err
		}
		t = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RemoveTenant removes a tenant by ID. With deleteVolumes unset the call
// fails while the tenant still owns volumes. With it set the tenant's
// volumes are deleted from the storage backend first; the cascade is
// idempotent, so re-running a removal interrupted half way converges.
func (s *Service) RemoveTenant(ctx context.Context, id volauth.ID, deleteVolumes bool) (*volauth.Tenant, error) {
	var (
		t    *volauth.Tenant
		vols []volauth.Volume
	)
	err := s.store.View(ctx, func(tx kv.Tx) error {
		tenant, err := s.store.GetTenant(ctx, tx, id)
		if err != nil {
			return err
		}
		t = tenant

		vs, err := s.store.ListTenantVolumes(ctx, tx, id)
		if err != nil {
			return err
		}
		vols = vs
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !deleteVolumes && len(vols) > 0 {
		return nil, TenantHasVolumesError(id, len(vols))
	}

	if deleteVolumes {
		if err := s.deleteTenantVolumes(ctx, id, vols); err != nil {
			return nil, err
		}
	}

	err = s.store.Update(ctx, func(tx kv.Tx) error {
		members, err := s.store.ListMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(members) > 0 {
			if err := s.store.RemoveMemberships(ctx, tx, id, members); err != nil {
				return err
			}
		}

		if err := s.store.DeletePrivileges(ctx, tx, id); err != nil {
			return err
		}

		return s.store.DeleteTenant(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledger.DropTenant(ctx, id); err != nil {
		return nil, err
	}

	return t, nil
}

// deleteTenantVolumes drains the tenant's volumes one at a time: backend
// delete, then bookkeeping. A volume already gone on the backend counts
// as deleted, which is what makes a re-run converge instead of erroring.
func (s *Service) deleteTenantVolumes(ctx context.Context, id volauth.ID, vols []volauth.Volume) error {
	var errs *multierror.Error
	for _, vol := range vols {
		if err := s.backend.DeleteVolume(ctx, vol.Datastore, vol.Name); err != nil && !errors.Is(err, volauth.ErrVolumeNotFound) {
			errs = multierror.Append(errs, err)
			continue
		}

		err := s.store.Update(ctx, func(tx kv.Tx) error {
			return s.store.DeleteVolume(ctx, tx, vol.Datastore, vol.Name)
		})
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		if err := s.ledger.Release(ctx, id, vol.Datastore, vol.Size); err != nil {
			errs = multierror.Append(errs, err)
		}

		s.log.Debug("tenant volume deleted",
			zap.String("tenant", string(id)),
			zap.String("datastore", string(vol.Datastore)),
			zap.String("volume", vol.Name))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return BackendDeleteError(err)
	}
	return nil
}

// AddVMs adds member VMs to a tenant.
func (s *Service) AddVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) error {
	return s.store.Update(ctx, func(tx kv.Tx) error {
		if _, err := s.store.GetTenant(ctx, tx, id); err != nil {
			return err
		}
		return s.store.AddMemberships(ctx, tx, id, vms)
	})
}

// RemoveVMs removes member VMs from a tenant.
func (s *Service) RemoveVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) error {
	return s.store.Update(ctx, func(tx kv.Tx) error {
		if _, err := s.store.GetTenant(ctx, tx, id); err != nil {
			return err
		}
		return s.store.RemoveMemberships(ctx, tx, id, vms)
	})
}

// ReplaceVMs swaps the tenant's member set in one atomic step.
func (s *Service) ReplaceVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) error {
	if len(vms) == 0 {
		return ErrReplaceVMsEmpty
	}

	return s.store.Update(ctx, func(tx kv.Tx) error {
		if _, err := s.store.GetTenant(ctx, tx, id); err != nil {
			return err
		}

		members, err := s.store.ListMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(members) > 0 {
			if err := s.store.RemoveMemberships(ctx, tx, id, members); err != nil {
				return err
			}
		}
		return s.store.AddMemberships(ctx, tx, id, vms)
	})
}

// TenantVMs returns the member VMs of a tenant.
func (s *Service) TenantVMs(ctx context.Context, id volauth.ID) ([]volauth.VMID, error) {
	var members []volauth.VMID
	err := s.store.View(ctx, func(tx kv.Tx) error {
		if _, err := s.store.GetTenant(ctx, tx, id); err != nil {
			return err
		}

		ms, err := s.store.ListMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		members = ms
		return nil
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

// TenantByVM resolves the tenant a VM belongs to.
func (s *Service) TenantByVM(ctx context.Context, vm volauth.VMID) (*volauth.Tenant, error) {
	var t *volauth.Tenant
	err := s.store.View(ctx, func(tx kv.Tx) error {
		id, err := s.store.GetMembership(ctx, tx, vm)
		if err != nil {
			return err
		}

		tenant, err := s.store.GetTenant(ctx, tx, id)
		if err != nil {
			return err
		}
		t = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// AvailableVMs returns VMs present in inventory that are not a member of
// any tenant.
func (s *Service) AvailableVMs(ctx context.Context) ([]volauth.VM, error) {
	inventory, err := s.inventory.ListVMs(ctx)
	if err != nil {
		return nil, err
	}

	var members map[volauth.VMID]volauth.ID
	err = s.store.View(ctx, func(tx kv.Tx) error {
		ms, err := s.store.AllMembers(ctx, tx)
		if err != nil {
			return err
		}
		members = ms
		return nil
	})
	if err != nil {
		return nil, err
	}

	available := []volauth.VM{}
	for _, vm := range inventory {
		if _, ok := members[vm.ID]; !ok {
			available = append(available, vm)
		}
	}

	return available, nil
}
