// Package simulation drives the coherence engine with a globally ordered
// trace and reports what happens through hooks.
package simulation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/mem/coherence"
	"github.com/sarchlab/cachescope/trace"
)

const cancelCheckInterval = 4096

// A Simulator replays a trace on the simulated caches. It is single
// threaded; hooks run on the simulating goroutine.
type Simulator struct {
	HookableBase

	log    logrus.FieldLogger
	config config.SimulationConfig
	engine *coherence.Engine

	cores    map[uint32]int
	nextCore int

	outcomes []coherence.Outcome
	events   uint64
}

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() config.SimulationConfig {
	return s.config
}

// Engine returns the coherence engine.
func (s *Simulator) Engine() *coherence.Engine {
	return s.engine
}

// Events returns the number of events simulated so far.
func (s *Simulator) Events() uint64 {
	return s.events
}

// CoreOf returns the core that runs a thread, assigning one on first use.
func (s *Simulator) CoreOf(thread uint32) int {
	if s.config.ThreadMapping == config.Modulo {
		return int(uint64(thread) % uint64(s.config.NumCores))
	}

	core, ok := s.cores[thread]
	if !ok {
		core = s.nextCore % s.config.NumCores
		s.cores[thread] = core
		s.nextCore++

		s.log.WithFields(logrus.Fields{
			"thread": thread,
			"core":   core,
		}).Debug("thread mapped")
	}

	return core
}

// Step simulates one event. An event that spans several lines is applied to
// each line in ascending address order.
func (s *Simulator) Step(evt trace.MemoryAccessEvent) error {
	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosAccess, Item: evt})

	core := s.CoreOf(evt.ThreadID)
	lineSize := s.config.LineSize
	end := evt.End()

	for addr := evt.Address; addr < end; {
		line := addr / lineSize
		lineStart := line * lineSize

		lineEnd := lineStart + lineSize
		if lineEnd < lineStart || lineEnd > end {
			lineEnd = end
		}

		req := coherence.Request{
			Core:      core,
			ThreadID:  evt.ThreadID,
			Line:      line,
			Offset:    addr - lineStart,
			Size:      lineEnd - addr,
			Op:        evt.Op,
			Timestamp: evt.Timestamp,
			Location:  evt.Location,
		}

		var err error

		s.outcomes, err = s.engine.Access(req, s.outcomes[:0])
		if err != nil {
			return fmt.Errorf("simulating %s: %w", evt, err)
		}

		for _, o := range s.outcomes {
			s.InvokeHook(HookCtx{
				Domain: s,
				Pos:    HookPosOutcome,
				Item:   o,
				Detail: evt,
			})
		}

		addr = lineEnd
	}

	s.events++

	return nil
}

// ReportMalformed tells the hooks that n records were dropped.
func (s *Simulator) ReportMalformed(n uint64) {
	if n == 0 {
		return
	}

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosMalformed, Item: n})
}

// Run simulates every event of src. If src counts malformed records, as a
// trace.Merger does, the count is reported once src is exhausted. Run stops
// at the first engine error or when ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, src trace.Stream) error {
	for {
		if s.events%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		evt, ok := src.Next()
		if !ok {
			break
		}

		if err := s.Step(evt); err != nil {
			return err
		}
	}

	if m, ok := src.(interface{ Malformed() uint64 }); ok {
		s.ReportMalformed(m.Malformed())
	}

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosEnd, Item: s.events})

	s.log.WithField("events", s.events).Info("simulation finished")

	return nil
}
