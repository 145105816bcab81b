package authorizer

import (
	"context"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
)

// VolumeService drives the storage backend through the engine: every
// operation is authorized first, and a backend failure after an allowed
// create triggers the compensating release so the ledger stays honest.
type VolumeService struct {
	engine  *Authorizer
	backend volauth.StorageBackend
	log     *zap.Logger
}

// NewVolumeService couples the engine with a storage backend.
func NewVolumeService(engine *Authorizer, backend volauth.StorageBackend, log *zap.Logger) *VolumeService {
	return &VolumeService{
		engine:  engine,
		backend: backend,
		log:     log,
	}
}

// CreateVolume authorizes and performs a volume creation.
func (s *VolumeService) CreateVolume(ctx context.Context, vm volauth.VMID, ds volauth.DatastoreID, name string, size uint64) error {
	req := volauth.AuthorizeRequest{
		VM:        vm,
		Datastore: ds,
		Operation: volauth.OperationCreate,
		Name:      name,
		Size:      size,
	}
	d, err := s.engine.Authorize(ctx, req)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return DeniedError(d)
	}

	if err := s.backend.CreateVolume(ctx, ds, name, size); err != nil {
		if cerr := s.engine.CompensateCreate(ctx, d.TenantID, ds, name); cerr != nil {
			s.log.Error("failed to compensate create reservation",
				zap.String("datastore", string(ds)),
				zap.String("volume", name),
				zap.Error(cerr))
		}
		return BackendError(volauth.OperationCreate, err)
	}

	return nil
}

// DeleteVolume authorizes and performs a volume deletion.
func (s *VolumeService) DeleteVolume(ctx context.Context, vm volauth.VMID, ds volauth.DatastoreID, name string) error {
	req := volauth.AuthorizeRequest{
		VM:        vm,
		Datastore: ds,
		Operation: volauth.OperationDelete,
		Name:      name,
	}
	d, err := s.engine.Authorize(ctx, req)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return DeniedError(d)
	}

	if err := s.backend.DeleteVolume(ctx, ds, name); err != nil {
		if cerr := s.compensateDelete(ctx, d, ds, name); cerr != nil {
			s.log.Error("failed to compensate delete release",
				zap.String("datastore", string(ds)),
				zap.String("volume", name),
				zap.Error(cerr))
		}
		return BackendError(volauth.OperationDelete, err)
	}

	return nil
}

// compensateDelete restores bookkeeping only when the admitted delete had
// a record to release in the first place.
func (s *VolumeService) compensateDelete(ctx context.Context, d volauth.Decision, ds volauth.DatastoreID, name string) error {
	if d.ReleasedBytes == 0 {
		return nil
	}
	return s.engine.CompensateDelete(ctx, d.TenantID, ds, name, d.ReleasedBytes)
}

// MountVolume authorizes and performs a volume mount.
func (s *VolumeService) MountVolume(ctx context.Context, vm volauth.VMID, ds volauth.DatastoreID, name string) error {
	req := volauth.AuthorizeRequest{
		VM:        vm,
		Datastore: ds,
		Operation: volauth.OperationMount,
		Name:      name,
	}
	d, err := s.engine.Authorize(ctx, req)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return DeniedError(d)
	}

	if err := s.backend.MountVolume(ctx, ds, name, vm); err != nil {
		return BackendError(volauth.OperationMount, err)
	}

	return nil
}
