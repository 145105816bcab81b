package tenant

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kv"
)

// privilegeBucket holds one record per (tenant, datastore) pair, keyed
// tenantID/datastore so one tenant's records are a contiguous range.
var privilegeBucket = []byte("privilegesv1")

func privilegeKey(tenantID volauth.ID, ds volauth.DatastoreID) []byte {
	k := make([]byte, 0, len(tenantID)+len(ds)+1)
	k = append(k, tenantID...)
	k = append(k, '/')
	k = append(k, ds...)
	return k
}

func privilegePrefix(tenantID volauth.ID) []byte {
	return append([]byte(tenantID), '/')
}

func unmarshalPrivilege(v []byte) (*volauth.AccessPrivilege, error) {
	p := &volauth.AccessPrivilege{}
	if err := json.Unmarshal(v, p); err != nil {
		return nil, ErrCorruptPrivilege(err)
	}

	return p, nil
}

// GetPrivilege returns the record for the (tenant, datastore) pair.
func (s *Store) GetPrivilege(ctx context.Context, tx kv.Tx, tenantID volauth.ID, ds volauth.DatastoreID) (*volauth.AccessPrivilege, error) {
	b, err := tx.Bucket(privilegeBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	v, err := b.Get(privilegeKey(tenantID, ds))
	if kv.IsNotFound(err) {
		return nil, PrivilegeNotFoundError(tenantID, ds)
	}
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	return unmarshalPrivilege(v)
}

// ListPrivileges returns all records of a tenant in datastore key order.
func (s *Store) ListPrivileges(ctx context.Context, tx kv.Tx, tenantID volauth.ID) ([]volauth.AccessPrivilege, error) {
	b, err := tx.Bucket(privilegeBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	prefix := privilegePrefix(tenantID)
	cursor, err := b.ForwardCursor(prefix)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}
	defer cursor.Close()

	ps := []volauth.AccessPrivilege{}
	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		p, err := unmarshalPrivilege(v)
		if err != nil {
			s.log.Warn("skipping corrupt privilege record", zap.ByteString("key", k), zap.Error(err))
			continue
		}
		ps = append(ps, *p)
	}

	return ps, nil
}

// PutPrivilege writes one record, replacing any record at the same key.
func (s *Store) PutPrivilege(ctx context.Context, tx kv.Tx, p *volauth.AccessPrivilege) error {
	v, err := json.Marshal(p)
	if err != nil {
		return ErrUnprocessablePrivilege(err)
	}

	b, err := tx.Bucket(privilegeBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := b.Put(privilegeKey(p.TenantID, p.Datastore), v); err != nil {
		return ErrInternalServiceError(err)
	}

	return nil
}

// DeletePrivilege drops the record for the (tenant, datastore) pair.
func (s *Store) DeletePrivilege(ctx context.Context, tx kv.Tx, tenantID volauth.ID, ds volauth.DatastoreID) error {
	b, err := tx.Bucket(privilegeBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := b.Delete(privilegeKey(tenantID, ds)); err != nil {
		return ErrInternalServiceError(err)
	}

	return nil
}

// DeletePrivileges drops every record of a tenant.
func (s *Store) DeletePrivileges(ctx context.Context, tx kv.Tx, tenantID volauth.ID) error {
	ps, err := s.ListPrivileges(ctx, tx, tenantID)
	if err != nil {
		return err
	}

	for _, p := range ps {
		if err := s.DeletePrivilege(ctx, tx, tenantID, p.Datastore); err != nil {
			return err
		}
	}

	return nil
}
