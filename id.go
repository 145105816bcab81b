package volauth

import (
	"github.com/google/uuid"
)

// ID uniquely identifies a tenant. IDs are generated once at creation time
// and are immutable afterwards.
type ID string

// Valid reports whether the ID is usable as a store key.
func (i ID) Valid() bool {
	return i != ""
}

func (i ID) String() string {
	return string(i)
}

// IDGenerator produces tenant IDs.
type IDGenerator interface {
	ID() ID
}

// UUIDGenerator generates random uuid4-based IDs.
type UUIDGenerator struct{}

// NewIDGenerator returns the default uuid-backed generator.
func NewIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) ID() ID {
	return ID(uuid.New().String())
}
