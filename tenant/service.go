package tenant

import (
	"go.uber.org/zap"

	"github.com/volaas/volauth"
)

// Service implements the tenant registry and the privilege table on top of
// the Store. External collaborators (storage backend, inventory, usage
// ledger) are injected at their interface boundary.
type Service struct {
	store *Store
	log   *zap.Logger

	inventory volauth.InventoryService
	backend   volauth.StorageBackend
	ledger    volauth.UsageLedger
}

var (
	_ volauth.TenantService    = (*Service)(nil)
	_ volauth.PrivilegeService = (*Service)(nil)
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a tenant service. The storage backend is used for
// removal cascades, the inventory for AvailableVMs, and the ledger for
// quota grandfathering checks and removal accounting.
func NewService(st *Store, backend volauth.StorageBackend, inventory volauth.InventoryService, ledger volauth.UsageLedger, opts ...ServiceOption) *Service {
	svc := &Service{
		store:     st,
		log:       zap.NewNop(),
		inventory: inventory,
		backend:   backend,
		ledger:    ledger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func validateTenantFields(name, description string) error {
	if name == "" {
		return ErrNameisEmpty
	}
	if len(name) > volauth.MaxTenantNameLength {
		return ErrNameTooLong
	}
	if len(description) > volauth.MaxTenantDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func validatePrivilege(p *volauth.AccessPrivilege) error {
	if p.MaxVolumeSize != 0 && p.UsageQuota != 0 && p.MaxVolumeSize > p.UsageQuota {
		return InvalidPrivilegeError(p.MaxVolumeSize, p.UsageQuota)
	}
	return nil
}
