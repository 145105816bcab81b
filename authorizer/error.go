package authorizer

import (
	"fmt"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
)

// VolumeExistsError is used when a create targets a (datastore, name)
// already admitted for the requesting tenant.
func VolumeExistsError(ds volauth.DatastoreID, name string) error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  fmt.Sprintf("volume %s already exists on datastore %s", name, ds),
	}
}

// BackendError wraps a storage backend failure behind an allowed
// operation.
func BackendError(op volauth.Operation, err error) error {
	return &errors.Error{
		Code: errors.EUnavailable,
		Msg:  fmt.Sprintf("storage backend failed during %s", op),
		Err:  err,
	}
}

// DeniedError converts a denial into an error for callers that drive the
// backend through the engine's volume operations.
func DeniedError(d volauth.Decision) error {
	return &errors.Error{
		Code: errors.EForbidden,
		Msg:  fmt.Sprintf("operation denied: %s", d.Reason),
	}
}
