package coherence

// FalseSharingDetector watches writes and reports pairs of cores that write
// disjoint bytes of the same line within a sliding time window.
type FalseSharingDetector struct {
	window      uint64
	granularity uint64
	lineSize    uint64

	lines map[uint64]*lineWindow
	queue []queuedWrite
	head  int
}

type lineWindow struct {
	writes   []writeRecord
	reported map[pairKey]uint64
}

type writeRecord struct {
	core     int
	thread   uint32
	offset   uint64
	size     uint64
	lo, hi   uint64
	ts       uint64
	location string
}

type queuedWrite struct {
	line uint64
	ts   uint64
}

type pairKey struct {
	coreLo, coreHi     int
	offsetLo, offsetHi uint64
}

// NewFalseSharingDetector creates a detector. Timestamps, window and
// granularity share the units of the trace.
func NewFalseSharingDetector(
	window, granularity, lineSize uint64,
) *FalseSharingDetector {
	if granularity == 0 {
		granularity = 1
	}

	return &FalseSharingDetector{
		window:      window,
		granularity: granularity,
		lineSize:    lineSize,
		lines:       make(map[uint64]*lineWindow),
	}
}

// Advance expires every write older than now minus the window. Timestamps
// passed to Advance must not decrease.
func (d *FalseSharingDetector) Advance(now uint64) {
	for d.head < len(d.queue) {
		q := d.queue[d.head]
		if !d.expired(q.ts, now) {
			break
		}

		lw := d.lines[q.line]
		lw.writes = lw.writes[1:]

		if len(lw.writes) == 0 {
			delete(d.lines, q.line)
		}

		d.head++
	}

	if d.head > 1024 && d.head*2 > len(d.queue) {
		d.queue = append(d.queue[:0], d.queue[d.head:]...)
		d.head = 0
	}
}

// Pending returns the number of writes inside the window.
func (d *FalseSharingDetector) Pending() int {
	return len(d.queue) - d.head
}

// ObserveWrite records a write and returns one event for every other core
// that wrote disjoint bytes of the same line inside the window, unless the
// same pair was already reported in the current window.
func (d *FalseSharingDetector) ObserveWrite(req Request) []FalseSharingEvent {
	d.Advance(req.Timestamp)

	lw, ok := d.lines[req.Line]
	if !ok {
		lw = &lineWindow{reported: make(map[pairKey]uint64)}
		d.lines[req.Line] = lw
	}

	rec := d.record(req)

	var events []FalseSharingEvent

	for _, prev := range lw.writes {
		if prev.core == rec.core || overlaps(prev, rec) {
			continue
		}

		key := makePairKey(prev, rec)
		if start, seen := lw.reported[key]; seen &&
			!d.expired(start, req.Timestamp) {
			continue
		}

		lw.reported[key] = prev.ts

		events = append(events, FalseSharingEvent{
			Line:        req.Line,
			CoreA:       prev.core,
			CoreB:       rec.core,
			ThreadA:     prev.thread,
			ThreadB:     rec.thread,
			OffsetA:     prev.offset,
			OffsetB:     rec.offset,
			SizeA:       prev.size,
			SizeB:       rec.size,
			WindowStart: prev.ts,
			Timestamp:   req.Timestamp,
			LocationA:   prev.location,
			LocationB:   rec.location,
		})
	}

	d.pruneReported(lw, req.Timestamp)

	lw.writes = append(lw.writes, rec)
	d.queue = append(d.queue, queuedWrite{line: req.Line, ts: req.Timestamp})

	return events
}

func (d *FalseSharingDetector) record(req Request) writeRecord {
	mask := d.granularity - 1

	lo := req.Offset &^ mask
	hi := (req.Offset + req.Size + mask) &^ mask

	if hi > d.lineSize {
		hi = d.lineSize
	}

	return writeRecord{
		core:     req.Core,
		thread:   req.ThreadID,
		offset:   req.Offset,
		size:     req.Size,
		lo:       lo,
		hi:       hi,
		ts:       req.Timestamp,
		location: req.Location,
	}
}

func (d *FalseSharingDetector) pruneReported(lw *lineWindow, now uint64) {
	for key, start := range lw.reported {
		if d.expired(start, now) {
			delete(lw.reported, key)
		}
	}
}

// expired reports whether something that happened at ts is outside the
// window at time now.
func (d *FalseSharingDetector) expired(ts, now uint64) bool {
	return now > ts && now-ts > d.window
}

func overlaps(a, b writeRecord) bool {
	return a.lo < b.hi && b.lo < a.hi
}

func makePairKey(a, b writeRecord) pairKey {
	if a.core > b.core {
		a, b = b, a
	}

	return pairKey{
		coreLo:   a.core,
		coreHi:   b.core,
		offsetLo: a.offset,
		offsetHi: b.offset,
	}
}
