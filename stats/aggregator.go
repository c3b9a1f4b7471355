package stats

import (
	"sync"

	"github.com/sarchlab/cachescope/mem/coherence"
	"github.com/sarchlab/cachescope/simulation"
	"github.com/sarchlab/cachescope/trace"
)

// Aggregator is a simulation hook that turns outcomes into Stats.
type Aggregator struct {
	stats *Stats
}

// NewAggregator creates an aggregator for numCores cores.
func NewAggregator(numCores int) *Aggregator {
	return &Aggregator{stats: New(numCores)}
}

// Func records outcomes and dropped records.
func (a *Aggregator) Func(ctx simulation.HookCtx) {
	switch ctx.Pos {
	case simulation.HookPosOutcome:
		a.Record(ctx.Item.(coherence.Outcome))
	case simulation.HookPosMalformed:
		a.AddMalformed(ctx.Item.(uint64))
	}
}

// AddMalformed counts records dropped before simulation.
func (a *Aggregator) AddMalformed(n uint64) {
	a.stats.Malformed += n
}

// Record accounts for one outcome.
func (a *Aggregator) Record(o coherence.Outcome) {
	s := a.stats

	switch o.Kind {
	case coherence.Hit, coherence.Miss:
		a.recordAccess(o)
	case coherence.Eviction:
		s.Global.Evictions++
		s.core(o.Core).Evictions++
		a.line(o.Line, func(l *LineStats) { l.Evictions++ })
	case coherence.Invalidation:
		s.Global.Invalidations++
		s.core(o.Core).Invalidations++
		a.line(o.Line, func(l *LineStats) { l.Invalidations++ })
	case coherence.Writeback:
		s.Global.Writebacks++
		s.core(o.Core).Writebacks++
	case coherence.FalseSharing:
		a.recordFalseSharing(o.FalseSharing)
	}
}

func (a *Aggregator) recordAccess(o coherence.Outcome) {
	s := a.stats
	c := s.core(o.Core)

	for _, counters := range []*Counters{&s.Global, c} {
		counters.Accesses++

		if o.Op == trace.Write {
			counters.Writes++
		} else {
			counters.Reads++
		}

		if o.Kind == coherence.Hit {
			counters.Hits++
		} else {
			counters.Misses++
			counters.count(o.MissKind)
		}
	}

	a.line(o.Line, func(l *LineStats) {
		l.Accesses++
		if o.Kind == coherence.Miss {
			l.Misses++
			l.count(o.MissKind)
		}
	})

	if o.Location != "" {
		a.recordSource(o)
	}
}

func (a *Aggregator) recordSource(o coherence.Outcome) {
	src := a.stats.Sources[o.Location]

	src.Accesses++
	if o.Kind == coherence.Hit {
		src.Hits++
	} else {
		src.Misses++
	}

	src.addThread(o.ThreadID)
	a.stats.Sources[o.Location] = src
}

func (a *Aggregator) recordFalseSharing(evt *coherence.FalseSharingEvent) {
	s := a.stats

	s.Global.FalseSharingEvents++
	s.core(evt.CoreA).FalseSharingEvents++
	s.core(evt.CoreB).FalseSharingEvents++

	key := IncidentKey{
		Line:    evt.Line,
		CoreA:   evt.CoreA,
		CoreB:   evt.CoreB,
		OffsetA: evt.OffsetA,
		OffsetB: evt.OffsetB,
	}
	inc := Incident{
		Count:     1,
		FirstSeen: evt.Timestamp,
		ThreadA:   evt.ThreadA,
		ThreadB:   evt.ThreadB,
		LocationA: evt.LocationA,
		LocationB: evt.LocationB,
	}

	if key.CoreA > key.CoreB {
		key.CoreA, key.CoreB = key.CoreB, key.CoreA
		key.OffsetA, key.OffsetB = key.OffsetB, key.OffsetA
		inc.ThreadA, inc.ThreadB = inc.ThreadB, inc.ThreadA
		inc.LocationA, inc.LocationB = inc.LocationB, inc.LocationA
	}

	if prev, ok := s.Incidents[key]; ok {
		inc = prev.merge(inc)
	}

	s.Incidents[key] = inc
}

func (a *Aggregator) line(tag uint64, update func(l *LineStats)) {
	l := a.stats.Lines[tag]
	update(&l)
	a.stats.Lines[tag] = l
}

// Stats returns a copy of the stats accumulated so far.
func (a *Aggregator) Stats() *Stats {
	return a.stats.Clone()
}

// MergeAll merges parts pairwise, merging independent pairs in parallel.
// The parts are not modified.
func MergeAll(parts ...*Stats) *Stats {
	if len(parts) == 0 {
		return New(0)
	}

	level := make([]*Stats, len(parts))
	for i, p := range parts {
		level[i] = p.Clone()
	}

	for len(level) > 1 {
		next := make([]*Stats, (len(level)+1)/2)

		var wg sync.WaitGroup

		for i := 0; i+1 < len(level); i += 2 {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				level[i].Merge(level[i+1])
				next[i/2] = level[i]
			}(i)
		}

		if len(level)%2 == 1 {
			next[len(next)-1] = level[len(level)-1]
		}

		wg.Wait()

		level = next
	}

	return level[0]
}
