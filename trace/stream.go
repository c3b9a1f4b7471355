package trace

import "sort"

// A Stream yields the events of one thread in capture order.
type Stream interface {
	// Next returns the next event. The boolean is false once the stream is
	// exhausted.
	Next() (MemoryAccessEvent, bool)
}

// SliceStream is a Stream backed by an in-memory slice.
type SliceStream struct {
	events []MemoryAccessEvent
	pos    int
}

// NewSliceStream creates a stream over events. The slice is not copied.
func NewSliceStream(events []MemoryAccessEvent) *SliceStream {
	return &SliceStream{events: events}
}

// Next returns the next event in the slice.
func (s *SliceStream) Next() (MemoryAccessEvent, bool) {
	if s.pos >= len(s.events) {
		return MemoryAccessEvent{}, false
	}

	evt := s.events[s.pos]
	s.pos++

	return evt, true
}

// Len returns the number of events not yet consumed.
func (s *SliceStream) Len() int {
	return len(s.events) - s.pos
}

// SplitByThread groups events by thread id, keeping the relative order of
// each thread's events. The result is ordered by ascending thread id.
func SplitByThread(events []MemoryAccessEvent) []*SliceStream {
	byThread := make(map[uint32][]MemoryAccessEvent)
	for _, e := range events {
		byThread[e.ThreadID] = append(byThread[e.ThreadID], e)
	}

	return streamsOf(byThread)
}

func streamsOf(byThread map[uint32][]MemoryAccessEvent) []*SliceStream {
	ids := make([]uint32, 0, len(byThread))
	for id := range byThread {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	streams := make([]*SliceStream, 0, len(ids))
	for _, id := range ids {
		streams = append(streams, NewSliceStream(byThread[id]))
	}

	return streams
}
