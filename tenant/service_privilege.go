package tenant

import (
	"context"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
	"github.com/volaas/volauth/kv"
)

// LookupPrivilege returns the privilege record for the (tenant, datastore)
// pair. This is the authorization read path; it takes a single kv View and
// never waits behind a management cascade.
func (s *Service) LookupPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID) (*volauth.AccessPrivilege, error) {
	var p *volauth.AccessPrivilege
	err := s.store.View(ctx, func(tx kv.Tx) error {
		priv, err := s.store.GetPrivilege(ctx, tx, tenantID, ds)
		if err != nil {
			return err
		}
		p = priv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// ListPrivileges returns all privilege records of a tenant.
func (s *Service) ListPrivileges(ctx context.Context, tenantID volauth.ID) ([]volauth.AccessPrivilege, error) {
	var ps []volauth.AccessPrivilege
	err := s.store.View(ctx, func(tx kv.Tx) error {
		if _, err := s.store.GetTenant(ctx, tx, tenantID); err != nil {
			return err
		}

		privs, err := s.store.ListPrivileges(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		ps = privs
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ps, nil
}

// SetAccessPrivileges replaces the full set of per-datastore privilege
// records for the tenant in one atomic step. A record whose quota now sits
// below the tenant's current consumption is accepted; the existing usage
// is grandfathered and only new reserves are blocked.
func (s *Service) SetAccessPrivileges(ctx context.Context, tenantID volauth.ID, privileges []volauth.AccessPrivilege) error {
	for i := range privileges {
		if err := validatePrivilege(&privileges[i]); err != nil {
			return err
		}
	}

	err := s.store.Update(ctx, func(tx kv.Tx) error {
		t, err := s.store.GetTenant(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		if err := s.store.DeletePrivileges(ctx, tx, tenantID); err != nil {
			return err
		}

		kept := false
		for i := range privileges {
			p := privileges[i]
			p.TenantID = tenantID
			if err := s.store.PutPrivilege(ctx, tx, &p); err != nil {
				return err
			}
			if p.Datastore == t.DefaultDatastore {
				kept = true
			}
		}

		return s.reconcileDefaultDatastore(ctx, tx, t, kept, privileges)
	})
	if err != nil {
		return err
	}

	s.warnOnGrandfatheredQuota(ctx, tenantID, privileges)
	return nil
}

// AddAccessPrivilege installs a record for a datastore the tenant has no
// record for yet.
func (s *Service) AddAccessPrivilege(ctx context.Context, tenantID volauth.ID, p volauth.AccessPrivilege, makeDefault bool) error {
	if err := validatePrivilege(&p); err != nil {
		return err
	}

	return s.store.Update(ctx, func(tx kv.Tx) error {
		t, err := s.store.GetTenant(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		if _, err := s.store.GetPrivilege(ctx, tx, tenantID, p.Datastore); err == nil {
			return PrivilegeAlreadyExistsError(tenantID, p.Datastore)
		} else if errors.ErrorCode(err) != errors.ENotFound {
			return err
		}

		p.TenantID = tenantID
		if err := s.store.PutPrivilege(ctx, tx, &p); err != nil {
			return err
		}

		if makeDefault || t.DefaultDatastore == "" {
			t.DefaultDatastore = p.Datastore
			return s.store.putTenant(tx, t)
		}
		return nil
	})
}

// UpdateAccessPrivilege modifies an existing privilege record.
func (s *Service) UpdateAccessPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID, upd volauth.PrivilegeUpdate) (*volauth.AccessPrivilege, error) {
	var out *volauth.AccessPrivilege
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		p, err := s.store.GetPrivilege(ctx, tx, tenantID, ds)
		if err != nil {
			return err
		}

		if upd.CreateVolumes != nil {
			p.CreateVolumes = *upd.CreateVolumes
		}
		if upd.DeleteVolumes != nil {
			p.DeleteVolumes = *upd.DeleteVolumes
		}
		if upd.MountVolumes != nil {
			p.MountVolumes = *upd.MountVolumes
		}
		if upd.MaxVolumeSize != nil {
			p.MaxVolumeSize = *upd.MaxVolumeSize
		}
		if upd.UsageQuota != nil {
			p.UsageQuota = *upd.UsageQuota
		}

		if err := validatePrivilege(p); err != nil {
			return err
		}

		if err := s.store.PutPrivilege(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.warnOnGrandfatheredQuota(ctx, tenantID, []volauth.AccessPrivilege{*out})
	return out, nil
}

// RemoveAccessPrivilege drops the record for the (tenant, datastore) pair
// and clears the tenant's default datastore when it pointed there.
func (s *Service) RemoveAccessPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID) error {
	return s.store.Update(ctx, func(tx kv.Tx) error {
		t, err := s.store.GetTenant(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		if _, err := s.store.GetPrivilege(ctx, tx, tenantID, ds); err != nil {
			return err
		}

		if err := s.store.DeletePrivilege(ctx, tx, tenantID, ds); err != nil {
			return err
		}

		if t.DefaultDatastore == ds {
			t.DefaultDatastore = ""
			return s.store.putTenant(tx, t)
		}
		return nil
	})
}

// reconcileDefaultDatastore keeps the tenant's default datastore pointing
// at a datastore the tenant still has a record for.
func (s *Service) reconcileDefaultDatastore(ctx context.Context, tx kv.Tx, t *volauth.Tenant, defaultKept bool, privileges []volauth.AccessPrivilege) error {
	switch {
	case t.DefaultDatastore != "" && !defaultKept:
		t.DefaultDatastore = ""
		if len(privileges) > 0 {
			t.DefaultDatastore = privileges[0].Datastore
		}
	case t.DefaultDatastore == "" && len(privileges) > 0:
		t.DefaultDatastore = privileges[0].Datastore
	default:
		return nil
	}
	return s.store.putTenant(tx, t)
}

// warnOnGrandfatheredQuota raises the observability signal when a replace
// lowered a quota below what the tenant already consumes.
func (s *Service) warnOnGrandfatheredQuota(ctx context.Context, tenantID volauth.ID, privileges []volauth.AccessPrivilege) {
	for _, p := range privileges {
		if p.UsageQuota == 0 {
			continue
		}
		used, err := s.ledger.Usage(ctx, tenantID, p.Datastore)
		if err != nil || used <= p.UsageQuota {
			continue
		}
		s.log.Warn("usage quota set below current consumption; existing usage grandfathered",
			zap.String("tenant", string(tenantID)),
			zap.String("datastore", string(p.Datastore)),
			zap.Uint64("quota", p.UsageQuota),
			zap.Uint64("consumed", used))
	}
}
