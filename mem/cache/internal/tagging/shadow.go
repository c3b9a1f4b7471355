package tagging

import "container/list"

// ShadowLRU is a fully associative LRU directory of line tags. It holds no
// state beyond presence and is used to tell capacity misses from conflict
// misses.
type ShadowLRU struct {
	capacity int
	entries  map[uint64]*list.Element
	order    *list.List
}

// NewShadowLRU creates a shadow directory that holds up to capacity lines.
func NewShadowLRU(capacity int) *ShadowLRU {
	return &ShadowLRU{
		capacity: capacity,
		entries:  make(map[uint64]*list.Element),
		order:    list.New(),
	}
}

// Touch marks a line as most recently used and reports whether it was
// already present. A new line may push out the least recently used one.
func (s *ShadowLRU) Touch(tag uint64) bool {
	if e, ok := s.entries[tag]; ok {
		s.order.MoveToFront(e)
		return true
	}

	if s.capacity <= 0 {
		return false
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(uint64))
	}

	s.entries[tag] = s.order.PushFront(tag)

	return false
}

// Remove drops a line.
func (s *ShadowLRU) Remove(tag uint64) {
	if e, ok := s.entries[tag]; ok {
		s.order.Remove(e)
		delete(s.entries, tag)
	}
}

// Len returns the number of lines held.
func (s *ShadowLRU) Len() int {
	return s.order.Len()
}

// Reset drops every line.
func (s *ShadowLRU) Reset() {
	s.entries = make(map[uint64]*list.Element)
	s.order.Init()
}
