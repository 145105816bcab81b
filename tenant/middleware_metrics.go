package tenant

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/volaas/volauth"
)

// redMetrics records request rate, errors and duration per method.
type redMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newREDMetrics(reg prometheus.Registerer, subsystem string) *redMetrics {
	m := &redMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volauth",
			Subsystem: subsystem,
			Name:      "calls_total",
			Help:      "Number of calls to the service, by method and error status.",
		}, []string{"method", "error"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "volauth",
			Subsystem: subsystem,
			Name:      "call_duration_seconds",
			Help:      "Duration of service calls, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

// record returns a function to be deferred with the call's error.
func (m *redMetrics) record(method string) func(error) {
	start := time.Now()
	return func(err error) {
		m.calls.WithLabelValues(method, strconv.FormatBool(err != nil)).Inc()
		m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// TenantMetrics is a metrics service middleware for the Tenant Service.
type TenantMetrics struct {
	red           *redMetrics
	tenantService volauth.TenantService
}

var _ volauth.TenantService = (*TenantMetrics)(nil)

// NewTenantMetrics returns a metrics service middleware for the Tenant
// Service, registering its collectors with reg.
func NewTenantMetrics(reg prometheus.Registerer, s volauth.TenantService) *TenantMetrics {
	return &TenantMetrics{
		red:           newREDMetrics(reg, "tenant"),
		tenantService: s,
	}
}

func (m *TenantMetrics) CreateTenant(ctx context.Context, t *volauth.Tenant, vms []volauth.VMID, privileges []volauth.AccessPrivilege) error {
	rec := m.red.record("create_tenant")
	err := m.tenantService.CreateTenant(ctx, t, vms, privileges)
	rec(err)
	return err
}

func (m *TenantMetrics) FindTenantByID(ctx context.Context, id volauth.ID) (*volauth.Tenant, error) {
	rec := m.red.record("find_tenant_by_id")
	t, err := m.tenantService.FindTenantByID(ctx, id)
	rec(err)
	return t, err
}

func (m *TenantMetrics) FindTenant(ctx context.Context, filter volauth.TenantFilter) (*volauth.Tenant, error) {
	rec := m.red.record("find_tenant")
	t, err := m.tenantService.FindTenant(ctx, filter)
	rec(err)
	return t, err
}

func (m *TenantMetrics) ListTenants(ctx context.Context) ([]*volauth.Tenant, error) {
	rec := m.red.record("list_tenants")
	ts, err := m.tenantService.ListTenants(ctx)
	rec(err)
	return ts, err
}

func (m *TenantMetrics) UpdateTenant(ctx context.Context, id volauth.ID, upd volauth.TenantUpdate) (*volauth.Tenant, error) {
	rec := m.red.record("update_tenant")
	t, err := m.tenantService.UpdateTenant(ctx, id, upd)
	rec(err)
	return t, err
}

func (m *TenantMetrics) RemoveTenant(ctx context.Context, id volauth.ID, deleteVolumes bool) (*volauth.Tenant, error) {
	rec := m.red.record("remove_tenant")
	t, err := m.tenantService.RemoveTenant(ctx, id, deleteVolumes)
	rec(err)
	return t, err
}

func (m *TenantMetrics) AddVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) error {
	rec := m.red.record("add_vms")
	err := m.tenantService.AddVMs(ctx, id, vms)
	rec(err)
	return err
}

func (m *TenantMetrics) RemoveVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) error {
	rec := m.red.record("remove_vms")
	err := m.tenantService.RemoveVMs(ctx, id, vms)
	rec(err)
	return err
}

func (m *TenantMetrics) ReplaceVMs(ctx context.Context, id volauth.ID, vms []volauth.VMID) error {
	rec := m.red.record("replace_vms")
	err := m.tenantService.ReplaceVMs(ctx, id, vms)
	rec(err)
	return err
}

func (m *TenantMetrics) TenantVMs(ctx context.Context, id volauth.ID) ([]volauth.VMID, error) {
	rec := m.red.record("tenant_vms")
	vms, err := m.tenantService.TenantVMs(ctx, id)
	rec(err)
	return vms, err
}

func (m *TenantMetrics) TenantByVM(ctx context.Context, vm volauth.VMID) (*volauth.Tenant, error) {
	rec := m.red.record("tenant_by_vm")
	t, err := m.tenantService.TenantByVM(ctx, vm)
	rec(err)
	return t, err
}

func (m *TenantMetrics) AvailableVMs(ctx context.Context) ([]volauth.VM, error) {
	rec := m.red.record("available_vms")
	vms, err := m.tenantService.AvailableVMs(ctx)
	rec(err)
	return vms, err
}

// PrivilegeMetrics is a metrics service middleware for the Privilege
// Service.
type PrivilegeMetrics struct {
	red              *redMetrics
	privilegeService volauth.PrivilegeService
}

var _ volauth.PrivilegeService = (*PrivilegeMetrics)(nil)

// NewPrivilegeMetrics returns a metrics service middleware for the
// Privilege Service, registering its collectors with reg.
func NewPrivilegeMetrics(reg prometheus.Registerer, s volauth.PrivilegeService) *PrivilegeMetrics {
	return &PrivilegeMetrics{
		red:              newREDMetrics(reg, "privilege"),
		privilegeService: s,
	}
}

func (m *PrivilegeMetrics) LookupPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID) (*volauth.AccessPrivilege, error) {
	rec := m.red.record("lookup_privilege")
	p, err := m.privilegeService.LookupPrivilege(ctx, tenantID, ds)
	rec(err)
	return p, err
}

func (m *PrivilegeMetrics) ListPrivileges(ctx context.Context, tenantID volauth.ID) ([]volauth.AccessPrivilege, error) {
	rec := m.red.record("list_privileges")
	ps, err := m.privilegeService.ListPrivileges(ctx, tenantID)
	rec(err)
	return ps, err
}

func (m *PrivilegeMetrics) SetAccessPrivileges(ctx context.Context, tenantID volauth.ID, privileges []volauth.AccessPrivilege) error {
	rec := m.red.record("set_access_privileges")
	err := m.privilegeService.SetAccessPrivileges(ctx, tenantID, privileges)
	rec(err)
	return err
}

func (m *PrivilegeMetrics) AddAccessPrivilege(ctx context.Context, tenantID volauth.ID, p volauth.AccessPrivilege, makeDefault bool) error {
	rec := m.red.record("add_access_privilege")
	err := m.privilegeService.AddAccessPrivilege(ctx, tenantID, p, makeDefault)
	rec(err)
	return err
}

func (m *PrivilegeMetrics) UpdateAccessPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID, upd volauth.PrivilegeUpdate) (*volauth.AccessPrivilege, error) {
	rec := m.red.record("update_access_privilege")
	p, err := m.privilegeService.UpdateAccessPrivilege(ctx, tenantID, ds, upd)
	rec(err)
	return p, err
}

func (m *PrivilegeMetrics) RemoveAccessPrivilege(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID) error {
	rec := m.red.record("remove_access_privilege")
	err := m.privilegeService.RemoveAccessPrivilege(ctx, tenantID, ds)
	rec(err)
	return err
}
