package tenant

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
)

// TenantLogger is a logging service middleware for the Tenant Service.
type TenantLogger struct {
	logger        *zap.Logger
	tenantService volauth.TenantService
}

var _ volauth.TenantService = (*TenantLogger)(nil)

// NewTenantLogger returns a logging service middleware for the Tenant
// Service.
func NewTenantLogger(log *zap.Logger, s volauth.TenantService) *TenantLogger {
	return &TenantLogger{
		logger:        log,
		tenantService: s,
	}
}

func (l *TenantLogger) CreateTenant(ctx context.Context, t *volauth.Tenant, vms []volauth.VMID, privileges []volauth.AccessPrivilege) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to create tenant", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant create", dur)
	}(time.Now())
	return l.tenantService.CreateTenant(ctx, t, vms, privileges)
}

func (l *TenantLogger) FindTenantByID(ctx context.Context, id volauth.ID) (t *volauth.Tenant, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to find tenant with ID %v", id)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant find by ID", dur)
	}(time.Now())
	return l.tenantService.FindTenantByID(ctx, id)
}

func (l *TenantLogger) FindTenant(ctx context.Context, filter volauth.TenantFilter) (t *volauth.Tenant, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to find tenant matching the given filter", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant find", dur)
	}(time.Now())
	return l.tenantService.FindTenant(ctx, filter)
}

func (l *TenantLogger) ListTenants(ctx context.Context) (ts []*volauth.Tenant, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to list tenants", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenants list", dur)
	}(time.Now())
	return l.tenantService.ListTenants(ctx)
}

func (l *TenantLogger) UpdateTenant(ctx context.Context, id volauth.ID, upd volauth.TenantUpdate) (t *volauth.Tenant, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to update tenant", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant update", dur)
	}(time.Now())
	return l.tenantService.UpdateTenant(ctx, id, upd)
}

func (l *TenantLogger) RemoveTenant(ctx context.Context, id volauth.ID, deleteVolumes bool) (t *volauth.Tenant, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to remove tenant with ID %v", id)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant remove", dur)
	}(time.Now())
	return l.tenantService.RemoveTenant(ctx, id, deleteVolumes)
}

func (l *TenantLogger) AddVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to add vms to tenant", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant add vms", dur)
	}(time.Now())
	return l.tenantService.AddVMs(ctx, id, vms)
}

func (l *TenantLogger) RemoveVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to remove vms from tenant", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant remove vms", dur)
	}(time.Now())
	return l.tenantService.RemoveVMs(ctx, id, vms)
}

func (l *TenantLogger) ReplaceVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to replace vms of tenant", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant replace vms", dur)
	}(time.Now())
	return l.tenantService.ReplaceVMs(ctx, id, vms)
}

func (l *TenantLogger) TenantVMs(ctx context.Context, id volauth.ID) (vms []volauth.VMID, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to list tenant vms", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant vms list", dur)
	}(time.Now())
	return l.tenantService.TenantVMs(ctx, id)
}

func (l *TenantLogger) TenantByVM(ctx context.Context, vm volauth.VMID) (t *volauth.Tenant, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to resolve tenant by vm", zap.Error(err), dur)
			return
		}
		l.logger.Debug("tenant find by vm", dur)
	}(time.Now())
	return l.tenantService.TenantByVM(ctx, vm)
}

func (l *TenantLogger) AvailableVMs(ctx context.Context) (vms []volauth.VM, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to list available vms", zap.Error(err), dur)
			return
		}
		l.logger.Debug("available vms list", dur)
	}(time.Now())
	return l.tenantService.AvailableVMs(ctx)
}

// PrivilegeLogger is a logging service middleware for the Privilege
// Service.
type PrivilegeLogger struct {
	logger           *zap.Logger
	privilegeService volauth.PrivilegeService
}

var _ volauth.PrivilegeService = (*PrivilegeLogger)(nil)

// NewPrivilegeLogger returns a logging service middleware for the
// Privilege Service.
func NewPrivilegeLogger(log *zap.Logger, s volauth.PrivilegeService) *PrivilegeLogger {
	return &PrivilegeLogger{
		logger:           log,
		privilegeService: s,
	}
}

func (l *PrivilegeLogger) LookupPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID) (p *volauth.AccessPrivilege, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to lookup privilege", zap.Error(err), dur)
			return
		}
		l.logger.Debug("privilege lookup", dur)
	}(time.Now())
	return l.privilegeService.LookupPrivilege(ctx, tenantID, ds)
}

func (l *PrivilegeLogger) ListPrivileges(ctx context.Context, tenantID volauth.ID) (ps []volauth.AccessPrivilege, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to list privileges", zap.Error(err), dur)
			return
		}
		l.logger.Debug("privileges list", dur)
	}(time.Now())
	return l.privilegeService.ListPrivileges(ctx, tenantID)
}

func (l *PrivilegeLogger) SetAccessPrivileges(ctx context.Context, tenantID volauth.ID, privileges []volauth.AccessPrivilege) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to set access privileges", zap.Error(err), dur)
			return
		}
		l.logger.Debug("privileges set", dur)
	}(time.Now())
	return l.privilegeService.SetAccessPrivileges(ctx, tenantID, privileges)
}

func (l *PrivilegeLogger) AddAccessPrivilege(ctx context.Context, tenantID volauth.ID, p volauth.AccessPrivilege, makeDefault bool) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to add access privilege", zap.Error(err), dur)
			return
		}
		l.logger.Debug("privilege add", dur)
	}(time.Now())
	return l.privilegeService.AddAccessPrivilege(ctx, tenantID, p, makeDefault)
}

func (l *PrivilegeLogger) UpdateAccessPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID, upd volauth.PrivilegeUpdate) (p *volauth.AccessPrivilege, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to update access privilege", zap.Error(err), dur)
			return
		}
		l.logger.Debug("privilege update", dur)
	}(time.Now())
	return l.privilegeService.UpdateAccessPrivilege(ctx, tenantID, ds, upd)
}

func (l *PrivilegeLogger) RemoveAccessPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to remove access privilege", zap.Error(err), dur)
			return
		}
		l.logger.Debug("privilege remove", dur)
	}(time.Now())
	return l.privilegeService.RemoveAccessPrivilege(ctx, tenantID, ds)
}
