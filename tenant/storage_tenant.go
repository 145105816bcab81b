package tenant

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kv"
)

var (
	tenantBucket = []byte("tenantsv1")
	tenantIndex  = []byte("tenantindexv1")
)

func tenantIndexKey(n string) []byte {
	return []byte(strings.TrimSpace(n))
}

func (s *Store) uniqueTenantName(ctx context.Context, tx kv.Tx, uname string) error {
	key := tenantIndexKey(uname)
	if len(key) == 0 {
		return ErrNameisEmpty
	}

	idx, err := tx.Bucket(tenantIndex)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	_, err = idx.Get(key)
	// if not found then this is _unique_.
	if kv.IsNotFound(err) {
		return nil
	}

	// no error means this is not unique
	if err == nil {
		return TenantAlreadyExistsError(uname)
	}

	return ErrInternalServiceError(err)
}

func unmarshalTenant(v []byte) (*volauth.Tenant, error) {
	t := &volauth.Tenant{}
	if err := json.Unmarshal(v, t); err != nil {
		return nil, ErrCorruptTenant(err)
	}

	return t, nil
}

func marshalTenant(t *volauth.Tenant) ([]byte, error) {
	v, err := json.Marshal(t)
	if err != nil {
		return nil, ErrUnprocessableTenant(err)
	}

	return v, nil
}

// GetTenant returns the tenant record stored under id.
func (s *Store) GetTenant(ctx context.Context, tx kv.Tx, id volauth.ID) (*volauth.Tenant, error) {
	if !id.Valid() {
		return nil, InvalidTenantIDError
	}

	b, err := tx.Bucket(tenantBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	v, err := b.Get([]byte(id))
	if kv.IsNotFound(err) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	return unmarshalTenant(v)
}

// GetTenantByName resolves a tenant through the name uniqueness index.
func (s *Store) GetTenantByName(ctx context.Context, tx kv.Tx, n string) (*volauth.Tenant, error) {
	idx, err := tx.Bucket(tenantIndex)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	id, err := idx.Get(tenantIndexKey(n))
	if kv.IsNotFound(err) {
		return nil, TenantNotFoundByName(n)
	}
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	return s.GetTenant(ctx, tx, volauth.ID(id))
}

// ListTenants returns every tenant record in the bucket.
func (s *Store) ListTenants(ctx context.Context, tx kv.Tx) ([]*volauth.Tenant, error) {
	b, err := tx.Bucket(tenantBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	cursor, err := b.ForwardCursor(nil)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}
	defer cursor.Close()

	ts := []*volauth.Tenant{}
	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		t, err := unmarshalTenant(v)
		if err != nil {
			s.log.Warn("skipping corrupt tenant record", zap.ByteString("key", k), zap.Error(err))
			continue
		}
		ts = append(ts, t)
	}

	return ts, nil
}

// CreateTenant writes the tenant record and its name index entry. The
// caller supplies memberships and privileges in the same transaction.
func (s *Store) CreateTenant(ctx context.Context, tx kv.Tx, t *volauth.Tenant) error {
	if err := s.uniqueTenantName(ctx, tx, t.Name); err != nil {
		return err
	}

	t.ID = s.IDGen.ID()
	t.CreatedAt = s.now()
	t.UpdatedAt = s.now()

	return s.putTenant(tx, t)
}

// UpdateTenant applies the changeset and moves the name index entry when
// the name changes.
func (s *Store) UpdateTenant(ctx context.Context, tx kv.Tx, id volauth.ID, upd volauth.TenantUpdate) (*volauth.Tenant, error) {
	t, err := s.GetTenant(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	t.UpdatedAt = s.now()
	if upd.Name != nil && t.Name != *upd.Name {
		if err := s.uniqueTenantName(ctx, tx, *upd.Name); err != nil {
			return nil, err
		}

		idx, err := tx.Bucket(tenantIndex)
		if err != nil {
			return nil, ErrInternalServiceError(err)
		}

		if err := idx.Delete(tenantIndexKey(t.Name)); err != nil {
			return nil, ErrInternalServiceError(err)
		}

		t.Name = *upd.Name
	}

	if upd.Description != nil {
		t.Description = *upd.Description
	}

	if upd.DefaultDatastore != nil {
		t.DefaultDatastore = *upd.DefaultDatastore
	}

	if err := s.putTenant(tx, t); err != nil {
		return nil, err
	}

	return t, nil
}

// DeleteTenant removes the tenant record and its name index entry.
func (s *Store) DeleteTenant(ctx context.Context, tx kv.Tx, id volauth.ID) error {
	t, err := s.GetTenant(ctx, tx, id)
	if err != nil {
		return err
	}

	idx, err := tx.Bucket(tenantIndex)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := idx.Delete(tenantIndexKey(t.Name)); err != nil {
		return ErrInternalServiceError(err)
	}

	b, err := tx.Bucket(tenantBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := b.Delete([]byte(id)); err != nil {
		return ErrInternalServiceError(err)
	}

	return nil
}

func (s *Store) putTenant(tx kv.Tx, t *volauth.Tenant) error {
	v, err := marshalTenant(t)
	if err != nil {
		return err
	}

	idx, err := tx.Bucket(tenantIndex)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := idx.Put(tenantIndexKey(t.Name), []byte(t.ID)); err != nil {
		return ErrInternalServiceError(err)
	}

	b, err := tx.Bucket(tenantBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := b.Put([]byte(t.ID), v); err != nil {
		return ErrInternalServiceError(err)
	}

	return nil
}
