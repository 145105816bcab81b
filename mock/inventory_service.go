package mock

import (
	"context"

	"github.com/volaas/volauth"
)

var _ volauth.InventoryService = (*InventoryService)(nil)

// InventoryService is a mock implementation of volauth.InventoryService.
type InventoryService struct {
	ListVMsFn        func(ctx context.Context) ([]volauth.VM, error)
	ListDatastoresFn func(ctx context.Context) ([]volauth.Datastore, error)
}

// NewInventoryService returns a mock inventory returning the given VMs
// and datastores.
func NewInventoryService(vms []volauth.VM, datastores []volauth.Datastore) *InventoryService {
	return &InventoryService{
		ListVMsFn: func(ctx context.Context) ([]volauth.VM, error) {
			return vms, nil
		},
		ListDatastoresFn: func(ctx context.Context) ([]volauth.Datastore, error) {
			return datastores, nil
		},
	}
}

func (s *InventoryService) ListVMs(ctx context.Context) ([]volauth.VM, error) {
	return s.ListVMsFn(ctx)
}

func (s *InventoryService) ListDatastores(ctx context.Context) ([]volauth.Datastore, error) {
	return s.ListDatastoresFn(ctx)
}
