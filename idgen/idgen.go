// Package idgen generates identifiers for recorded rows and runs.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// ID identifies a recorded row. IDs of one generator start at 1 and
// increase by one, so two runs of the same trace produce the same IDs.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is 1.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}

// RunID returns a globally unique, time-sortable name for one analysis run.
func RunID() string {
	return xid.New().String()
}
