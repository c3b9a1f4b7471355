package coherence

import (
	"fmt"

	"github.com/sarchlab/cachescope/mem/cache"
	"github.com/sarchlab/cachescope/mem/mesi"
	"github.com/sarchlab/cachescope/trace"
)

// OutcomeKind classifies what the engine did for an access.
type OutcomeKind uint8

// Outcome kinds.
const (
	Hit OutcomeKind = iota
	Miss
	Eviction
	Invalidation
	Writeback
	FalseSharing
)

func (k OutcomeKind) String() string {
	switch k {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Eviction:
		return "eviction"
	case Invalidation:
		return "invalidation"
	case Writeback:
		return "writeback"
	case FalseSharing:
		return "false_sharing"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
	}
}

// An Outcome is one observable effect of an access.
//
// For Eviction, Invalidation and Writeback, Core is the core whose copy was
// affected and State is the state of that copy before the effect. For
// Invalidation, Source is the core whose write caused it. MissKind is set on
// Miss outcomes only.
type Outcome struct {
	Kind      OutcomeKind
	Core      int
	Source    int
	ThreadID  uint32
	Line      uint64
	Op        trace.Op
	Timestamp uint64
	Location  string
	State     mesi.State
	MissKind  cache.MissKind

	FalseSharing *FalseSharingEvent
}

// FalseSharingEvent reports two cores writing disjoint bytes of the same
// line within the false sharing window. A is the earlier write.
type FalseSharingEvent struct {
	Line        uint64
	CoreA       int
	CoreB       int
	ThreadA     uint32
	ThreadB     uint32
	OffsetA     uint64
	OffsetB     uint64
	SizeA       uint64
	SizeB       uint64
	WindowStart uint64
	Timestamp   uint64
	LocationA   string
	LocationB   string
}
