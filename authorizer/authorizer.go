// Package authorizer decides volume operations against the tenant
// registry, the privilege table and the usage ledger.
package authorizer

import (
	"context"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
	"github.com/volaas/volauth/kv"
	"github.com/volaas/volauth/tenant"
)

// Authorizer is the authorization engine. It reads the membership and
// privilege indexes through store snapshots, owns the volume bookkeeping
// records, and is the only writer of the usage ledger on the admission
// path.
type Authorizer struct {
	store  *tenant.Store
	ledger volauth.UsageLedger
	log    *zap.Logger

	metrics *decisionMetrics
}

var _ volauth.AuthorizationService = (*Authorizer)(nil)

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Authorizer) {
		a.log = log
	}
}

// New creates the engine over the tenant store and the ledger.
func New(st *tenant.Store, ledger volauth.UsageLedger, opts ...Option) *Authorizer {
	a := &Authorizer{
		store:  st,
		ledger: ledger,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize decides one volume operation. Denials are returned as data
// with a reason code; the error return is reserved for infrastructure
// failures. Allowed creates reserve quota and record the volume; allowed
// deletes release the recorded size and drop the record.
func (a *Authorizer) Authorize(ctx context.Context, req volauth.AuthorizeRequest) (volauth.Decision, error) {
	if !req.Operation.Valid() {
		return volauth.Decision{}, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "unknown volume operation",
			Op:   "authorizer.Authorize",
		}
	}

	var (
		t    *volauth.Tenant
		priv *volauth.AccessPrivilege
		vol  *volauth.Volume
	)
	err := a.store.View(ctx, func(tx kv.Tx) error {
		id, err := a.store.GetMembership(ctx, tx, req.VM)
		if errors.ErrorCode(err) == errors.ENotFound {
			return nil
		}
		if err != nil {
			return err
		}

		t, err = a.store.GetTenant(ctx, tx, id)
		if err != nil {
			return err
		}

		priv, err = a.store.GetPrivilege(ctx, tx, id, req.Datastore)
		if errors.ErrorCode(err) == errors.ENotFound {
			priv = nil
		} else if err != nil {
			return err
		}

		vol, err = a.store.GetVolume(ctx, tx, req.Datastore, req.Name)
		if errors.ErrorCode(err) == errors.ENotFound {
			vol = nil
			return nil
		}
		return err
	})
	if err != nil {
		return volauth.Decision{}, err
	}

	if t == nil {
		return a.deny(req, volauth.DenyNoTenant), nil
	}
	if priv == nil {
		return a.denyTenant(req, t, volauth.DenyNoAccess), nil
	}
	if !priv.Allows(req.Operation) {
		return a.denyTenant(req, t, volauth.DenyOperationNotPermitted), nil
	}

	// A volume of the requested name owned by another tenant is never
	// visible to this one, whatever the operation.
	if vol != nil && vol.TenantID != t.ID {
		return a.denyTenant(req, t, volauth.DenyTenantIsolationViolated), nil
	}

	switch req.Operation {
	case volauth.OperationCreate:
		return a.authorizeCreate(ctx, req, t, priv, vol)
	case volauth.OperationDelete:
		return a.authorizeDelete(ctx, req, t, vol)
	default:
		return a.allow(req, t), nil
	}
}

func (a *Authorizer) authorizeCreate(ctx context.Context, req volauth.AuthorizeRequest, t *volauth.Tenant, priv *volauth.AccessPrivilege, vol *volauth.Volume) (volauth.Decision, error) {
	// A live record for the same tenant means the name is taken; admitting
	// the create would double-count the reservation.
	if vol != nil {
		return volauth.Decision{}, VolumeExistsError(req.Datastore, req.Name)
	}

	if priv.MaxVolumeSize != 0 && req.Size > priv.MaxVolumeSize {
		return a.denyTenant(req, t, volauth.DenyVolumeTooLarge), nil
	}

	ok, err := a.ledger.Reserve(ctx, t.ID, req.Datastore, req.Size, priv.MaxVolumeSize, priv.UsageQuota)
	if err != nil {
		return volauth.Decision{}, err
	}
	if !ok {
		return a.denyTenant(req, t, volauth.DenyQuotaExceeded), nil
	}

	// Re-check the name inside the write transaction: a concurrent create
	// may have recorded it after the snapshot read above. The record is
	// only put if the key is still absent, and a losing reservation is
	// released.
	var taken *volauth.Volume
	err = a.store.Update(ctx, func(tx kv.Tx) error {
		existing, err := a.store.GetVolume(ctx, tx, req.Datastore, req.Name)
		if err != nil && errors.ErrorCode(err) != errors.ENotFound {
			return err
		}
		if existing != nil {
			taken = existing
			return nil
		}
		return a.store.PutVolume(ctx, tx, &volauth.Volume{
			TenantID:  t.ID,
			Datastore: req.Datastore,
			Name:      req.Name,
			Size:      req.Size,
		})
	})
	if err != nil {
		// The reservation must not leak when bookkeeping fails.
		if rerr := a.ledger.Release(ctx, t.ID, req.Datastore, req.Size); rerr != nil {
			a.log.Error("failed to roll back reservation", zap.Error(rerr))
		}
		return volauth.Decision{}, err
	}
	if taken != nil {
		if rerr := a.ledger.Release(ctx, t.ID, req.Datastore, req.Size); rerr != nil {
			a.log.Error("failed to roll back reservation", zap.Error(rerr))
		}
		if taken.TenantID != t.ID {
			return a.denyTenant(req, t, volauth.DenyTenantIsolationViolated), nil
		}
		return volauth.Decision{}, VolumeExistsError(req.Datastore, req.Name)
	}

	return a.allow(req, t), nil
}

func (a *Authorizer) authorizeDelete(ctx context.Context, req volauth.AuthorizeRequest, t *volauth.Tenant, vol *volauth.Volume) (volauth.Decision, error) {
	// Deleting a volume this manager never admitted is allowed through
	// with no accounting to reconcile.
	if vol == nil {
		return a.allow(req, t), nil
	}

	err := a.store.Update(ctx, func(tx kv.Tx) error {
		return a.store.DeleteVolume(ctx, tx, req.Datastore, req.Name)
	})
	if err != nil {
		return volauth.Decision{}, err
	}

	if err := a.ledger.Release(ctx, t.ID, req.Datastore, vol.Size); err != nil {
		return volauth.Decision{}, err
	}

	d := a.allow(req, t)
	d.ReleasedBytes = vol.Size
	return d, nil
}

// CompensateCreate undoes an allowed create whose backend operation
// failed afterwards: the volume record is dropped and the reserved bytes
// are released. Safe to call more than once for the same volume.
func (a *Authorizer) CompensateCreate(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID, name string) error {
	var vol *volauth.Volume
	err := a.store.View(ctx, func(tx kv.Tx) error {
		v, err := a.store.GetVolume(ctx, tx, ds, name)
		if errors.ErrorCode(err) == errors.ENotFound {
			return nil
		}
		if err != nil {
			return err
		}
		vol = v
		return nil
	})
	if err != nil {
		return err
	}

	if vol == nil || vol.TenantID != tenantID {
		return nil
	}

	err = a.store.Update(ctx, func(tx kv.Tx) error {
		return a.store.DeleteVolume(ctx, tx, ds, name)
	})
	if err != nil {
		return err
	}

	return a.ledger.Release(ctx, tenantID, ds, vol.Size)
}

// CompensateDelete restores the bookkeeping of an allowed delete whose
// backend operation failed: the volume record is re-written and the
// released bytes are re-reserved. The re-reserve bypasses limits, since
// the bytes were already accounted before the delete was admitted.
func (a *Authorizer) CompensateDelete(ctx context.Context, tenantID volauth.ID, ds volauth.DatastoreID, name string, size uint64) error {
	err := a.store.Update(ctx, func(tx kv.Tx) error {
		return a.store.PutVolume(ctx, tx, &volauth.Volume{
			TenantID:  tenantID,
			Datastore: ds,
			Name:      name,
			Size:      size,
		})
	})
	if err != nil {
		return err
	}

	if _, err := a.ledger.Reserve(ctx, tenantID, ds, size, 0, 0); err != nil {
		return err
	}
	return nil
}

func (a *Authorizer) allow(req volauth.AuthorizeRequest, t *volauth.Tenant) volauth.Decision {
	a.metrics.record(req.Operation, "")
	a.log.Debug("operation allowed",
		zap.String("vm", string(req.VM)),
		zap.String("datastore", string(req.Datastore)),
		zap.String("operation", string(req.Operation)),
		zap.String("tenant", t.Name))
	return volauth.Allow(t)
}

func (a *Authorizer) deny(req volauth.AuthorizeRequest, reason volauth.DenyReason) volauth.Decision {
	a.metrics.record(req.Operation, reason)
	a.log.Info("operation denied",
		zap.String("vm", string(req.VM)),
		zap.String("datastore", string(req.Datastore)),
		zap.String("operation", string(req.Operation)),
		zap.String("reason", string(reason)))
	return volauth.Deny(reason)
}

func (a *Authorizer) denyTenant(req volauth.AuthorizeRequest, t *volauth.Tenant, reason volauth.DenyReason) volauth.Decision {
	d := a.deny(req, reason)
	d.TenantID = t.ID
	d.TenantName = t.Name
	return d
}
