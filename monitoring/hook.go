package monitoring

import (
	"github.com/sarchlab/cachescope/simulation"
	"github.com/sarchlab/cachescope/stats"
)

// A SnapshotHook publishes the progress and state of a simulation to a
// Monitor every interval events and once at the end, when its progress bar
// is completed. It runs on the simulating goroutine, so the snapshots never
// observe a partial event.
type SnapshotHook struct {
	monitor  *Monitor
	bar      *ProgressBar
	agg      *stats.Aggregator
	interval uint64
	events   uint64
	reported uint64
}

// NewSnapshotHook creates a hook that reads stats from agg. The hook must be
// registered after agg so that snapshots include the latest event.
func NewSnapshotHook(
	m *Monitor,
	agg *stats.Aggregator,
	totalEvents uint64,
	interval uint64,
) *SnapshotHook {
	if interval == 0 {
		interval = 1
	}

	return &SnapshotHook{
		monitor:  m,
		bar:      m.CreateProgressBar("Events", totalEvents),
		agg:      agg,
		interval: interval,
	}
}

// Func counts events and publishes snapshots.
func (h *SnapshotHook) Func(ctx simulation.HookCtx) {
	switch ctx.Pos {
	case simulation.HookPosAccess:
		if h.events > 0 && h.events%h.interval == 0 {
			h.publish(ctx)
		}

		h.events++
	case simulation.HookPosEnd:
		h.publish(ctx)
		h.monitor.CompleteProgressBar(h.bar)
	}
}

func (h *SnapshotHook) publish(ctx simulation.HookCtx) {
	s := Snapshot{
		Events: h.events,
		Stats:  h.agg.Stats(),
	}

	if sim, ok := ctx.Domain.(*simulation.Simulator); ok {
		s.Events = sim.Events()
		engine := sim.Engine()

		for i := 0; i < engine.NumCores(); i++ {
			c := engine.Cache(i)
			s.Cores = append(s.Cores, CoreSnapshot{
				Core:      i,
				NumSets:   c.NumSets(),
				NumWays:   c.NumWays(),
				Occupancy: c.Occupancy(),
				Lines:     c.Lines(),
			})
		}
	}

	if s.Events > h.reported {
		h.bar.IncrementFinished(s.Events - h.reported)
		h.reported = s.Events
	}

	h.monitor.Publish(s)
}
