package cache

import (
	"fmt"

	"github.com/sarchlab/cachescope/mem/cache/internal/tagging"
)

// MissKind tells why an access missed.
type MissKind uint8

// Miss kinds. NotMiss is the kind of a hit.
const (
	NotMiss MissKind = iota

	// Compulsory is the first access of the core to the line.
	Compulsory

	// Capacity would also miss in a fully associative LRU cache of the
	// same size.
	Capacity

	// Conflict would hit in a fully associative LRU cache of the same
	// size; limited associativity caused it.
	Conflict

	// Coherence is a miss on a line another core's write invalidated.
	Coherence
)

func (k MissKind) String() string {
	switch k {
	case NotMiss:
		return "none"
	case Compulsory:
		return "compulsory"
	case Capacity:
		return "capacity"
	case Conflict:
		return "conflict"
	case Coherence:
		return "coherence"
	default:
		return fmt.Sprintf("MissKind(%d)", uint8(k))
	}
}

// missClassifier tracks the lines a core has seen, the lines it lost to
// invalidation, and a shadow fully associative cache of equal capacity.
type missClassifier struct {
	seen        map[uint64]struct{}
	invalidated map[uint64]struct{}
	shadow      *tagging.ShadowLRU
}

func newMissClassifier(capacity int) *missClassifier {
	return &missClassifier{
		seen:        make(map[uint64]struct{}),
		invalidated: make(map[uint64]struct{}),
		shadow:      tagging.NewShadowLRU(capacity),
	}
}

// access classifies an access and updates the tracking state. The shadow is
// touched on hits too, so it sees the full reference stream.
func (m *missClassifier) access(tag uint64, hit bool) MissKind {
	inShadow := m.shadow.Touch(tag)

	if hit {
		return NotMiss
	}

	if _, ok := m.seen[tag]; !ok {
		m.seen[tag] = struct{}{}
		return Compulsory
	}

	if _, ok := m.invalidated[tag]; ok {
		delete(m.invalidated, tag)
		return Coherence
	}

	if !inShadow {
		return Capacity
	}

	return Conflict
}

func (m *missClassifier) invalidate(tag uint64) {
	m.invalidated[tag] = struct{}{}
	m.shadow.Remove(tag)
}

func (m *missClassifier) reset() {
	m.seen = make(map[uint64]struct{})
	m.invalidated = make(map[uint64]struct{})
	m.shadow.Reset()
}
