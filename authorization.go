package volauth

import (
	"context"
)

// DenyReason is the machine-checkable reason attached to a denial.
type DenyReason string

const (
	DenyNoTenant                DenyReason = "no-tenant"
	DenyNoAccess                DenyReason = "no-access"
	DenyOperationNotPermitted   DenyReason = "operation-not-permitted"
	DenyVolumeTooLarge          DenyReason = "volume-too-large"
	DenyQuotaExceeded           DenyReason = "quota-exceeded"
	DenyTenantIsolationViolated DenyReason = "tenant-isolation-violation"
)

// AuthorizeRequest describes one volume operation to be decided.
type AuthorizeRequest struct {
	VM        VMID        `json:"vm"`
	Datastore DatastoreID `json:"datastore"`
	Operation Operation   `json:"operation"`
	Name      string      `json:"name"`
	// Size is the requested volume size for create operations, in bytes.
	Size uint64 `json:"size,omitempty"`
}

// Decision is the outcome of an authorization check. Denials are expected,
// frequent outcomes and are carried as data, not as errors.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	// TenantID is set when the requesting VM resolved to a tenant.
	TenantID ID `json:"tenantID,omitempty"`
	// TenantName is a convenience for callers that log decisions.
	TenantName string `json:"tenantName,omitempty"`
	// ReleasedBytes reports how much ledger capacity an allowed delete
	// released; callers need it to compensate a failed backend delete.
	ReleasedBytes uint64 `json:"releasedBytes,omitempty"`
}

// Allow returns an allowing decision for the tenant.
func Allow(t *Tenant) Decision {
	return Decision{Allowed: true, TenantID: t.ID, TenantName: t.Name}
}

// Deny returns a denying decision with the given reason.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// AuthorizationService decides volume operations and keeps the usage
// ledger consistent with the decisions it hands out.
type AuthorizationService interface {
	// Authorize decides one operation. For allowed creates the requested
	// size is reserved against the tenant's quota and a volume record is
	// written; for allowed deletes the recorded size is released and the
	// record dropped. Errors are reserved for infrastructure failures.
	Authorize(ctx context.Context, req AuthorizeRequest) (Decision, error)

	// CompensateCreate undoes the reservation and volume record of a
	// previously allowed create whose backend operation failed.
	CompensateCreate(ctx context.Context, tenantID ID, ds DatastoreID, name string) error

	// CompensateDelete restores the record and reservation of a
	// previously allowed delete whose backend operation failed.
	CompensateDelete(ctx context.Context, tenantID ID, ds DatastoreID, name string, size uint64) error
}
