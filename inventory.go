package volauth

import (
	"context"
)

// VMID identifies a virtual machine in inventory.
type VMID string

// VM is a virtual machine known to the inventory collaborator.
type VM struct {
	ID   VMID   `json:"id"`
	Name string `json:"name,omitempty"`
}

// DatastoreID identifies a storage backend volumes are created on.
type DatastoreID string

// Datastore is a storage backend known to the inventory collaborator.
type Datastore struct {
	ID   DatastoreID `json:"id"`
	Name string      `json:"name,omitempty"`
}

// InventoryService lists the VMs and datastores that exist outside this
// manager. It backs AvailableVMs and reference validation.
type InventoryService interface {
	ListVMs(ctx context.Context) ([]VM, error)
	ListDatastores(ctx context.Context) ([]Datastore, error)
}
