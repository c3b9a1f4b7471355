// Package mesi defines the MESI coherence states of a cache line and the
// transition table that governs them.
package mesi

import "fmt"

// State is the coherence state of a cache line held by one core.
type State uint8

// The MESI states.
const (
	Invalid State = iota
	Shared
	Exclusive
	Modified
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "I"
	case Shared:
		return "S"
	case Exclusive:
		return "E"
	case Modified:
		return "M"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsValid reports whether a line in this state holds usable data.
func (s State) IsValid() bool {
	return s == Shared || s == Exclusive || s == Modified
}

// IsDirty reports whether the line differs from memory.
func (s State) IsDirty() bool {
	return s == Modified
}

// IsUnique reports whether no other core may hold the line.
func (s State) IsUnique() bool {
	return s == Exclusive || s == Modified
}

// Event is something that happens to a line from the point of view of one
// core.
type Event uint8

// Coherence events.
const (
	// LocalRead is a load issued by the core holding the line.
	LocalRead Event = iota
	// LocalWrite is a store issued by the core holding the line.
	LocalWrite
	// RemoteRead is a load miss on another core that snoops this copy.
	RemoteRead
	// RemoteInvalidate is a store on another core that claims ownership.
	RemoteInvalidate
)

func (e Event) String() string {
	switch e {
	case LocalRead:
		return "LocalRead"
	case LocalWrite:
		return "LocalWrite"
	case RemoteRead:
		return "RemoteRead"
	case RemoteInvalidate:
		return "RemoteInvalidate"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}
