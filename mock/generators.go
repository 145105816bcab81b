package mock

import (
	"fmt"
	"sync/atomic"

	"github.com/volaas/volauth"
)

// IDGenerator is a mock implementation of volauth.IDGenerator.
type IDGenerator struct {
	IDFn func() volauth.ID
}

// ID generates a new volauth.ID from a mock function.
func (g IDGenerator) ID() volauth.ID {
	return g.IDFn()
}

// NewStaticIDGenerator always returns the given id.
func NewStaticIDGenerator(id volauth.ID) IDGenerator {
	return IDGenerator{
		IDFn: func() volauth.ID {
			return id
		},
	}
}

// NewSequentialIDGenerator returns ids prefix-1, prefix-2, and so on.
// Deterministic ids keep store fixtures diffable.
func NewSequentialIDGenerator(prefix string) IDGenerator {
	var n uint64
	return IDGenerator{
		IDFn: func() volauth.ID {
			return volauth.ID(fmt.Sprintf("%s-%d", prefix, atomic.AddUint64(&n, 1)))
		},
	}
}
