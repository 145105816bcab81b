package tenant

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kv"
)

// volumeBucket records every admitted volume keyed datastore/name. The
// key is tenant-agnostic on purpose: the isolation check needs to see a
// name collision on a shared datastore regardless of which tenant owns
// the existing volume.
var volumeBucket = []byte("volumesv1")

func volumeKey(ds volauth.DatastoreID, name string) []byte {
	k := make([]byte, 0, len(ds)+len(name)+1)
	k = append(k, ds...)
	k = append(k, '/')
	k = append(k, name...)
	return k
}

func unmarshalVolume(v []byte) (*volauth.Volume, error) {
	vol := &volauth.Volume{}
	if err := json.Unmarshal(v, vol); err != nil {
		return nil, ErrCorruptVolume(err)
	}

	return vol, nil
}

// GetVolume returns the record of the volume at (datastore, name).
func (s *Store) GetVolume(ctx context.Context, tx kv.Tx, ds volauth.DatastoreID, name string) (*volauth.Volume, error) {
	b, err := tx.Bucket(volumeBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	v, err := b.Get(volumeKey(ds, name))
	if kv.IsNotFound(err) {
		return nil, ErrVolumeRecordNotFound
	}
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	return unmarshalVolume(v)
}

// PutVolume writes the bookkeeping record for an admitted volume.
func (s *Store) PutVolume(ctx context.Context, tx kv.Tx, vol *volauth.Volume) error {
	v, err := json.Marshal(vol)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	b, err := tx.Bucket(volumeBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := b.Put(volumeKey(vol.Datastore, vol.Name), v); err != nil {
		return ErrInternalServiceError(err)
	}

	return nil
}

// DeleteVolume drops the record of the volume at (datastore, name).
func (s *Store) DeleteVolume(ctx context.Context, tx kv.Tx, ds volauth.DatastoreID, name string) error {
	b, err := tx.Bucket(volumeBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if err := b.Delete(volumeKey(ds, name)); err != nil {
		return ErrInternalServiceError(err)
	}

	return nil
}

// ListTenantVolumes returns all volume records owned by one tenant.
func (s *Store) ListTenantVolumes(ctx context.Context, tx kv.Tx, tenantID volauth.ID) ([]volauth.Volume, error) {
	b, err := tx.Bucket(volumeBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	cursor, err := b.ForwardCursor(nil)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}
	defer cursor.Close()

	vols := []volauth.Volume{}
	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		vol, err := unmarshalVolume(v)
		if err != nil {
			s.log.Warn("skipping corrupt volume record", zap.ByteString("key", k), zap.Error(err))
			continue
		}
		if vol.TenantID == tenantID {
			vols = append(vols, *vol)
		}
	}

	return vols, nil
}
