// Package trace reads memory access traces and merges the per-thread
// streams into a single, globally ordered sequence of events.
package trace

import "fmt"

// Op is the kind of a memory access.
type Op uint8

// Supported memory operations.
const (
	Read Op = iota
	Write
)

func (o Op) String() string {
	switch o {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// A MemoryAccessEvent is a single load or store captured from a running
// program.
type MemoryAccessEvent struct {
	// Timestamp is in nanoseconds. Only the relative order matters.
	Timestamp uint64
	ThreadID  uint32
	Address   uint64
	Size      uint32
	Op        Op

	// Location is the source position ("file:line") that issued the
	// access, if the recorder knows it.
	Location string
}

// End returns the address one past the last byte touched by the event. The
// result saturates at the top of the address space.
func (e MemoryAccessEvent) End() uint64 {
	end := e.Address + uint64(e.Size)
	if end < e.Address {
		return ^uint64(0)
	}

	return end
}

func (e MemoryAccessEvent) String() string {
	return fmt.Sprintf("T%d@%d %s 0x%x/%d",
		e.ThreadID, e.Timestamp, e.Op, e.Address, e.Size)
}
