package tenant

import (
	"fmt"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
)

var (
	// ErrNameisEmpty is returned when a tenant name is empty.
	ErrNameisEmpty = &errors.Error{
		Code: errors.EInvalid,
		Msg:  "tenant name is empty",
	}

	// ErrNameTooLong is returned when a tenant name exceeds the limit.
	ErrNameTooLong = &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("tenant name exceeds %d characters", volauth.MaxTenantNameLength),
	}

	// ErrDescriptionTooLong is returned when a description exceeds the limit.
	ErrDescriptionTooLong = &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("tenant description exceeds %d characters", volauth.MaxTenantDescriptionLength),
	}

	// InvalidTenantIDError is returned on an unusable tenant id.
	InvalidTenantIDError = &errors.Error{
		Code: errors.EInvalid,
		Msg:  "tenant id provided is invalid",
	}

	// ErrTenantNotFound is the shared not-found error for tenant lookups.
	ErrTenantNotFound = &errors.Error{
		Code: errors.ENotFound,
		Msg:  "tenant not found",
	}

	// ErrMembershipNotFound is returned when a VM belongs to no tenant.
	ErrMembershipNotFound = &errors.Error{
		Code: errors.ENotFound,
		Msg:  "vm is not a member of any tenant",
	}

	// ErrVolumeRecordNotFound is returned when no volume record exists at
	// the (datastore, name) key.
	ErrVolumeRecordNotFound = &errors.Error{
		Code: errors.ENotFound,
		Msg:  "volume record not found",
	}

	// ErrReplaceVMsEmpty is returned when a member-set replacement carries
	// no VMs.
	ErrReplaceVMsEmpty = &errors.Error{
		Code: errors.EInvalid,
		Msg:  "replacement vm list cannot be empty",
	}
)

// TenantAlreadyExistsError is used when creating or renaming a tenant to a
// name already in use.
func TenantAlreadyExistsError(name string) error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("tenant with name %s already exists", name),
	}
}

// TenantNotFoundByName is used when a name lookup misses.
func TenantNotFoundByName(name string) error {
	return &errors.Error{
		Code: errors.ENotFound,
		Msg:  fmt.Sprintf("tenant %q not found", name),
	}
}

// TenantHasVolumesError blocks removal while volumes exist and the caller
// did not ask for a cascade.
func TenantHasVolumesError(id volauth.ID, n int) error {
	return &errors.Error{
		Code: errors.EPreconditionFailed,
		Msg:  fmt.Sprintf("tenant %s still owns %d volume(s); remove them first or request volume deletion", id, n),
	}
}

// VMAlreadyMemberError is used when a VM is already indexed to a tenant.
func VMAlreadyMemberError(vm volauth.VMID) error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("vm %s is already a member of a tenant", vm),
	}
}

// VMNotMemberError is used when removing a VM that is not a member of the
// tenant.
func VMNotMemberError(vm volauth.VMID) error {
	return &errors.Error{
		Code: errors.ENotFound,
		Msg:  fmt.Sprintf("vm %s is not a member of this tenant", vm),
	}
}

// PrivilegeNotFoundError is used when no record exists for the
// (tenant, datastore) pair.
func PrivilegeNotFoundError(id volauth.ID, ds volauth.DatastoreID) error {
	return &errors.Error{
		Code: errors.ENotFound,
		Msg:  fmt.Sprintf("no privilege exists for (%s, %s)", id, ds),
	}
}

// PrivilegeAlreadyExistsError is used when adding a record for a pair that
// already has one.
func PrivilegeAlreadyExistsError(id volauth.ID, ds volauth.DatastoreID) error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("privilege for (%s, %s) already exists", id, ds),
	}
}

// InvalidPrivilegeError rejects a record whose max volume size exceeds its
// usage quota.
func InvalidPrivilegeError(maxVolumeSize, quota uint64) error {
	return &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("max volume size %d exceeds the usage quota %d", maxVolumeSize, quota),
	}
}

// ErrCorruptTenant is used when a stored tenant record cannot be decoded.
func ErrCorruptTenant(err error) error {
	return &errors.Error{
		Code: errors.EInternal,
		Msg:  "tenant could not be unmarshalled",
		Err:  err,
		Op:   "tenant.unmarshalTenant",
	}
}

// ErrUnprocessableTenant is used when a tenant record cannot be encoded.
func ErrUnprocessableTenant(err error) error {
	return &errors.Error{
		Code: errors.EInvalid,
		Msg:  "tenant could not be marshalled",
		Err:  err,
		Op:   "tenant.marshalTenant",
	}
}

// ErrCorruptPrivilege is used when a stored privilege record cannot be
// decoded.
func ErrCorruptPrivilege(err error) error {
	return &errors.Error{
		Code: errors.EInternal,
		Msg:  "privilege could not be unmarshalled",
		Err:  err,
		Op:   "tenant.unmarshalPrivilege",
	}
}

// ErrUnprocessablePrivilege is used when a privilege record cannot be
// encoded.
func ErrUnprocessablePrivilege(err error) error {
	return &errors.Error{
		Code: errors.EInvalid,
		Msg:  "privilege could not be marshalled",
		Err:  err,
		Op:   "tenant.PutPrivilege",
	}
}

// ErrCorruptVolume is used when a stored volume record cannot be decoded.
func ErrCorruptVolume(err error) error {
	return &errors.Error{
		Code: errors.EInternal,
		Msg:  "volume record could not be unmarshalled",
		Err:  err,
		Op:   "tenant.unmarshalVolume",
	}
}

// ErrInternalServiceError wraps errors coming from the kv layer.
func ErrInternalServiceError(err error) error {
	return &errors.Error{
		Code: errors.EInternal,
		Err:  err,
	}
}

// BackendDeleteError surfaces a storage backend failure during a removal
// cascade.
func BackendDeleteError(err error) error {
	return &errors.Error{
		Code: errors.EUnavailable,
		Msg:  "storage backend failed to delete tenant volumes",
		Err:  err,
	}
}
