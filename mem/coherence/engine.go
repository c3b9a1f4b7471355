// Package coherence keeps the private caches of all cores coherent under a
// MESI protocol and detects false sharing.
package coherence

import (
	"fmt"

	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/mem/cache"
	"github.com/sarchlab/cachescope/mem/mesi"
	"github.com/sarchlab/cachescope/trace"
)

// A Request is an access by one core to one line. Offset and Size describe
// the bytes touched inside the line.
type Request struct {
	Core      int
	ThreadID  uint32
	Line      uint64
	Offset    uint64
	Size      uint64
	Op        trace.Op
	Timestamp uint64
	Location  string
}

// DirectoryInconsistencyError reports that a core's cache and the directory
// disagree about a line. It always indicates a defect.
type DirectoryInconsistencyError struct {
	Core       int
	Line       uint64
	CacheState mesi.State
	DirState   mesi.State
}

func (e *DirectoryInconsistencyError) Error() string {
	return fmt.Sprintf(
		"directory inconsistency on line 0x%x core %d: cache %s, directory %s",
		e.Line, e.Core, e.CacheState, e.DirState)
}

// Engine applies accesses to the core caches and the directory. It is not
// safe for concurrent use; accesses must be applied in global trace order.
type Engine struct {
	caches   []*cache.CoreCache
	dir      *Directory
	detector *FalseSharingDetector
}

// NewEngine creates the caches and directory described by c.
func NewEngine(c config.SimulationConfig) *Engine {
	e := &Engine{
		dir: NewDirectory(c.NumCores),
		detector: NewFalseSharingDetector(
			c.WindowTicks(), c.FalseSharingGranularity, c.LineSize),
	}

	builder := cache.MakeBuilder().WithConfig(c)
	for i := 0; i < c.NumCores; i++ {
		e.caches = append(e.caches, builder.Build(i))
	}

	return e
}

// NumCores returns the number of simulated cores.
func (e *Engine) NumCores() int {
	return len(e.caches)
}

// Cache returns the cache of a core.
func (e *Engine) Cache(core int) *cache.CoreCache {
	return e.caches[core]
}

// Directory returns the coherence directory.
func (e *Engine) Directory() *Directory {
	return e.dir
}

// Detector returns the false sharing detector.
func (e *Engine) Detector() *FalseSharingDetector {
	return e.detector
}

// Access applies one request and appends its outcomes to out. Any error is
// a defect and leaves the engine in an unspecified state.
func (e *Engine) Access(req Request, out []Outcome) ([]Outcome, error) {
	if req.Core < 0 || req.Core >= len(e.caches) {
		return out, fmt.Errorf("core %d out of range", req.Core)
	}

	local, present, err := e.localState(req)
	if err != nil {
		return out, err
	}

	e.detector.Advance(req.Timestamp)

	switch req.Op {
	case trace.Read:
		return e.read(req, local, present, out)
	case trace.Write:
		return e.write(req, local, out)
	default:
		return out, fmt.Errorf("unknown operation %s", req.Op)
	}
}

func (e *Engine) localState(req Request) (mesi.State, bool, error) {
	line, present := e.caches[req.Core].Lookup(req.Line)
	dirState := e.dir.State(req.Line, req.Core)

	cacheState := mesi.Invalid
	if present {
		cacheState = line.State
	}

	if cacheState != dirState {
		return mesi.Invalid, false, &DirectoryInconsistencyError{
			Core:       req.Core,
			Line:       req.Line,
			CacheState: cacheState,
			DirState:   dirState,
		}
	}

	return cacheState, present, nil
}

func (e *Engine) read(
	req Request,
	local mesi.State,
	present bool,
	out []Outcome,
) ([]Outcome, error) {
	others := e.dir.OtherHolders(req.Line, req.Core)

	next, err := mesi.Next(local, mesi.LocalRead, len(others) > 0)
	if err != nil {
		return out, err
	}

	out, err = e.resolveLocal(req, next, out)
	if err != nil {
		return out, err
	}

	if present {
		return out, nil
	}

	for _, core := range others {
		out, err = e.snoop(req, core, mesi.RemoteRead, out)
		if err != nil {
			return out, err
		}
	}

	return out, nil
}

func (e *Engine) write(
	req Request,
	local mesi.State,
	out []Outcome,
) ([]Outcome, error) {
	next, err := mesi.Next(local, mesi.LocalWrite, false)
	if err != nil {
		return out, err
	}

	out, err = e.resolveLocal(req, next, out)
	if err != nil {
		return out, err
	}

	for _, core := range e.dir.OtherHolders(req.Line, req.Core) {
		out, err = e.snoop(req, core, mesi.RemoteInvalidate, out)
		if err != nil {
			return out, err
		}
	}

	if err := e.dir.Check(req.Line); err != nil {
		return out, err
	}

	for _, fs := range e.detector.ObserveWrite(req) {
		evt := fs
		o := e.outcome(req, FalseSharing)
		o.FalseSharing = &evt
		out = append(out, o)
	}

	return out, nil
}

// resolveLocal performs the access in the requester's cache and leaves its
// copy in state next.
func (e *Engine) resolveLocal(
	req Request,
	next mesi.State,
	out []Outcome,
) ([]Outcome, error) {
	c := e.caches[req.Core]
	res := c.Access(req.Line, next)

	if res.Evicted {
		out = e.evict(req, res.Victim, out)
	}

	if res.Hit {
		if res.Line.State != next {
			if err := c.SetState(req.Line, next); err != nil {
				return out, err
			}
		}

		out = append(out, e.outcome(req, Hit))
	} else {
		o := e.outcome(req, Miss)
		o.MissKind = res.MissKind
		out = append(out, o)
	}

	e.dir.Set(req.Line, req.Core, next)

	return out, nil
}

func (e *Engine) evict(req Request, victim cache.Line, out []Outcome) []Outcome {
	e.dir.Remove(victim.Tag, req.Core)

	o := e.outcome(req, Eviction)
	o.Line = victim.Tag
	o.State = victim.State
	out = append(out, o)

	if victim.State.IsDirty() {
		wb := e.outcome(req, Writeback)
		wb.Line = victim.Tag
		wb.State = victim.State
		out = append(out, wb)
	}

	return out
}

// snoop applies a remote event to another core's copy of the requested line.
func (e *Engine) snoop(
	req Request,
	core int,
	event mesi.Event,
	out []Outcome,
) ([]Outcome, error) {
	from := e.dir.State(req.Line, core)

	t, err := mesi.Lookup(from, event)
	if err != nil {
		return out, err
	}

	if t.Next == mesi.Invalid {
		if _, ok := e.caches[core].Invalidate(req.Line); !ok {
			return out, &DirectoryInconsistencyError{
				Core:       core,
				Line:       req.Line,
				CacheState: mesi.Invalid,
				DirState:   from,
			}
		}
	} else if t.Next != from {
		if err := e.caches[core].SetState(req.Line, t.Next); err != nil {
			return out, err
		}
	}

	e.dir.Set(req.Line, core, t.Next)

	if event == mesi.RemoteInvalidate {
		o := e.outcome(req, Invalidation)
		o.Core = core
		o.State = from
		out = append(out, o)
	}

	if t.Writeback {
		o := e.outcome(req, Writeback)
		o.Core = core
		o.State = from
		out = append(out, o)
	}

	return out, nil
}

func (e *Engine) outcome(req Request, kind OutcomeKind) Outcome {
	return Outcome{
		Kind:      kind,
		Core:      req.Core,
		Source:    req.Core,
		ThreadID:  req.ThreadID,
		Line:      req.Line,
		Op:        req.Op,
		Timestamp: req.Timestamp,
		Location:  req.Location,
	}
}
