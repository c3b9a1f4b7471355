package trace

import (
	"container/heap"

	"github.com/sirupsen/logrus"
)

// A Merger merges per-thread streams into one globally ordered sequence.
// Events are ordered by timestamp, then by thread id, then by position within
// their own stream. A Merger is a single-use cursor.
type Merger struct {
	log       logrus.FieldLogger
	sources   []*mergeSource
	heads     mergeHeap
	malformed uint64
	started   bool
}

type mergeSource struct {
	stream  Stream
	lastTS  uint64
	hasLast bool
	seq     uint64
}

type mergeItem struct {
	evt    MemoryAccessEvent
	source int
	seq    uint64
}

// Merge creates a Merger over the given per-thread streams.
func Merge(streams ...Stream) *Merger {
	m := &Merger{log: logrus.StandardLogger()}

	for _, s := range streams {
		m.sources = append(m.sources, &mergeSource{stream: s})
	}

	return m
}

// WithLogger sets the logger that receives malformed record warnings.
func (m *Merger) WithLogger(log logrus.FieldLogger) *Merger {
	m.log = log
	return m
}

// Malformed returns the number of records dropped so far.
func (m *Merger) Malformed() uint64 {
	return m.malformed
}

// Next returns the next event in global order. The boolean is false once all
// streams are exhausted.
func (m *Merger) Next() (MemoryAccessEvent, bool) {
	if !m.started {
		m.start()
	}

	if m.heads.Len() == 0 {
		return MemoryAccessEvent{}, false
	}

	item := heap.Pop(&m.heads).(mergeItem)
	m.advance(item.source)

	return item.evt, true
}

func (m *Merger) start() {
	m.started = true

	heap.Init(&m.heads)

	for i := range m.sources {
		m.advance(i)
	}
}

// advance pulls the next valid event of a source into the heap, dropping
// malformed records on the way.
func (m *Merger) advance(i int) {
	src := m.sources[i]

	for {
		evt, ok := src.stream.Next()
		if !ok {
			return
		}

		seq := src.seq
		src.seq++

		if err := src.check(evt); err != nil {
			m.malformed++
			m.log.WithFields(logrus.Fields{
				"thread":    evt.ThreadID,
				"timestamp": evt.Timestamp,
			}).Warn(err.Error())

			continue
		}

		src.lastTS = evt.Timestamp
		src.hasLast = true

		heap.Push(&m.heads, mergeItem{evt: evt, source: i, seq: seq})

		return
	}
}

func (s *mergeSource) check(evt MemoryAccessEvent) error {
	if evt.Size == 0 {
		return &MalformedTraceError{Event: evt, Reason: "zero size"}
	}

	if s.hasLast && evt.Timestamp < s.lastTS {
		return &MalformedTraceError{
			Event:  evt,
			Reason: "timestamp decreases within thread",
		}
	}

	return nil
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int {
	return len(h)
}

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i], h[j]

	if a.evt.Timestamp != b.evt.Timestamp {
		return a.evt.Timestamp < b.evt.Timestamp
	}

	if a.evt.ThreadID != b.evt.ThreadID {
		return a.evt.ThreadID < b.evt.ThreadID
	}

	if a.source != b.source {
		return a.source < b.source
	}

	return a.seq < b.seq
}

func (h mergeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *mergeHeap) Push(x any) {
	*h = append(*h, x.(mergeItem))
}

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}
