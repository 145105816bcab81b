package tenant

import (
	"context"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kv"
)

// membershipBucket is the system-wide VM to tenant index. Membership
// exclusivity is enforced here: a vm key maps to exactly one tenant id.
var membershipBucket = []byte("membershipsv1")

// GetMembership resolves the tenant a VM belongs to.
func (s *Store) GetMembership(ctx context.Context, tx kv.Tx, vm volauth.VMID) (volauth.ID, error) {
	b, err := tx.Bucket(membershipBucket)
	if err != nil {
		return "", ErrInternalServiceError(err)
	}

	v, err := b.Get([]byte(vm))
	if kv.IsNotFound(err) {
		return "", ErrMembershipNotFound
	}
	if err != nil {
		return "", ErrInternalServiceError(err)
	}

	return volauth.ID(v), nil
}

// AddMemberships indexes vms as members of tenantID. Fails with a
// conflict if any VM is already a member of any tenant, including this
// one.
func (s *Store) AddMemberships(ctx context.Context, tx kv.Tx, tenantID volauth.ID, vms []volauth.VMID) error {
	b, err := tx.Bucket(membershipBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	for _, vm := range vms {
		_, err := b.Get([]byte(vm))
		if err == nil {
			return VMAlreadyMemberError(vm)
		}
		if !kv.IsNotFound(err) {
			return ErrInternalServiceError(err)
		}
	}

	for _, vm := range vms {
		if err := b.Put([]byte(vm), []byte(tenantID)); err != nil {
			return ErrInternalServiceError(err)
		}
	}

	return nil
}

// RemoveMemberships unindexes vms from tenantID. Fails if any VM is not
// currently a member of this tenant.
func (s *Store) RemoveMemberships(ctx context.Context, tx kv.Tx, tenantID volauth.ID, vms []volauth.VMID) error {
	b, err := tx.Bucket(membershipBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	for _, vm := range vms {
		v, err := b.Get([]byte(vm))
		if kv.IsNotFound(err) || (err == nil && volauth.ID(v) != tenantID) {
			return VMNotMemberError(vm)
		}
		if err != nil {
			return ErrInternalServiceError(err)
		}
	}

	for _, vm := range vms {
		if err := b.Delete([]byte(vm)); err != nil {
			return ErrInternalServiceError(err)
		}
	}

	return nil
}

// ListMembers returns the member VMs of one tenant.
func (s *Store) ListMembers(ctx context.Context, tx kv.Tx, tenantID volauth.ID) ([]volauth.VMID, error) {
	members := []volauth.VMID{}
	err := s.forEachMembership(tx, func(vm volauth.VMID, owner volauth.ID) {
		if owner == tenantID {
			members = append(members, vm)
		}
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// AllMembers returns every indexed VM across all tenants.
func (s *Store) AllMembers(ctx context.Context, tx kv.Tx) (map[volauth.VMID]volauth.ID, error) {
	members := map[volauth.VMID]volauth.ID{}
	err := s.forEachMembership(tx, func(vm volauth.VMID, owner volauth.ID) {
		members[vm] = owner
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) forEachMembership(tx kv.Tx, fn func(vm volauth.VMID, owner volauth.ID)) error {
	b, err := tx.Bucket(membershipBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	cursor, err := b.ForwardCursor(nil)
	if err != nil {
		return ErrInternalServiceError(err)
	}
	defer cursor.Close()

	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		fn(volauth.VMID(k), volauth.ID(v))
	}

	return nil
}
