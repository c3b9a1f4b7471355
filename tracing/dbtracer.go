// Package tracing records simulation outcomes into a database so that they
// can be inspected after a run.
package tracing

import (
	"fmt"
	"math"

	"github.com/sarchlab/cachescope/datarecording"
	"github.com/sarchlab/cachescope/idgen"
	"github.com/sarchlab/cachescope/mem/coherence"
	"github.com/sarchlab/cachescope/simulation"
)

// Table names.
const (
	OutcomeTable      = "cachescope_outcomes"
	FalseSharingTable = "cachescope_false_sharing"
	RunTable          = "cachescope_runs"
)

// Entries store unsigned counters as int64 since SQLite integers are
// signed. Values above math.MaxInt64 are clamped.
type outcomeEntry struct {
	ID        string
	RunID     string
	Kind      string
	MissKind  string
	Core      int
	Source    int
	ThreadID  uint32
	Line      int64
	Op        string
	State     string
	Timestamp int64
	Location  string
}

type falseSharingEntry struct {
	ID          string
	RunID       string
	Line        int64
	CoreA       int
	CoreB       int
	ThreadA     uint32
	ThreadB     uint32
	OffsetA     int64
	OffsetB     int64
	SizeA       int64
	SizeB       int64
	WindowStart int64
	Timestamp   int64
	LocationA   string
	LocationB   string
}

type runEntry struct {
	RunID     string
	Events    int64
	Malformed int64
	Outcomes  int64
}

func sqlInt(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

// DBTracer is a simulation hook that stores outcomes in a DataRecorder.
// Recording errors do not stop the simulation; the first one is kept and
// reported by Err.
type DBTracer struct {
	backend datarecording.DataRecorder
	ids     idgen.Generator
	runID   string
	kinds   map[coherence.OutcomeKind]bool

	outcomes  uint64
	malformed uint64
	err       error
}

// NewDBTracer creates the tables of a run and returns a tracer that fills
// them. Without kinds, every outcome kind is recorded.
func NewDBTracer(
	backend datarecording.DataRecorder,
	ids idgen.Generator,
	runID string,
	kinds ...coherence.OutcomeKind,
) (*DBTracer, error) {
	t := &DBTracer{
		backend: backend,
		ids:     ids,
		runID:   runID,
	}

	if len(kinds) > 0 {
		t.kinds = make(map[coherence.OutcomeKind]bool)
		for _, k := range kinds {
			t.kinds[k] = true
		}
	}

	tables := []struct {
		name   string
		sample any
	}{
		{RunTable, runEntry{}},
		{OutcomeTable, outcomeEntry{}},
		{FalseSharingTable, falseSharingEntry{}},
	}

	existing := make(map[string]bool)
	for _, name := range backend.ListTables() {
		existing[name] = true
	}

	for _, tbl := range tables {
		if existing[tbl.name] {
			continue
		}

		if err := backend.CreateTable(tbl.name, tbl.sample); err != nil {
			return nil, fmt.Errorf("preparing trace database: %w", err)
		}
	}

	return t, nil
}

// Func records outcomes, counts dropped records, and writes the run summary
// when the simulation ends.
func (t *DBTracer) Func(ctx simulation.HookCtx) {
	switch ctx.Pos {
	case simulation.HookPosOutcome:
		t.recordOutcome(ctx.Item.(coherence.Outcome))
	case simulation.HookPosMalformed:
		t.malformed += ctx.Item.(uint64)
	case simulation.HookPosEnd:
		t.finish(ctx.Item.(uint64))
	}
}

// Err returns the first recording error.
func (t *DBTracer) Err() error {
	return t.err
}

// Outcomes returns the number of recorded outcomes.
func (t *DBTracer) Outcomes() uint64 {
	return t.outcomes
}

func (t *DBTracer) recordOutcome(o coherence.Outcome) {
	if t.kinds != nil && !t.kinds[o.Kind] {
		return
	}

	id := t.ids.Generate().String()

	t.insert(OutcomeTable, outcomeEntry{
		ID:        id,
		RunID:     t.runID,
		Kind:      o.Kind.String(),
		MissKind:  o.MissKind.String(),
		Core:      o.Core,
		Source:    o.Source,
		ThreadID:  o.ThreadID,
		Line:      sqlInt(o.Line),
		Op:        o.Op.String(),
		State:     o.State.String(),
		Timestamp: sqlInt(o.Timestamp),
		Location:  o.Location,
	})

	t.outcomes++

	if fs := o.FalseSharing; fs != nil {
		t.insert(FalseSharingTable, falseSharingEntry{
			ID:          id,
			RunID:       t.runID,
			Line:        sqlInt(fs.Line),
			CoreA:       fs.CoreA,
			CoreB:       fs.CoreB,
			ThreadA:     fs.ThreadA,
			ThreadB:     fs.ThreadB,
			OffsetA:     sqlInt(fs.OffsetA),
			OffsetB:     sqlInt(fs.OffsetB),
			SizeA:       sqlInt(fs.SizeA),
			SizeB:       sqlInt(fs.SizeB),
			WindowStart: sqlInt(fs.WindowStart),
			Timestamp:   sqlInt(fs.Timestamp),
			LocationA:   fs.LocationA,
			LocationB:   fs.LocationB,
		})
	}
}

func (t *DBTracer) finish(events uint64) {
	t.insert(RunTable, runEntry{
		RunID:     t.runID,
		Events:    sqlInt(events),
		Malformed: sqlInt(t.malformed),
		Outcomes:  sqlInt(t.outcomes),
	})

	if err := t.backend.Flush(); err != nil && t.err == nil {
		t.err = err
	}
}

func (t *DBTracer) insert(table string, entry any) {
	if t.err != nil {
		return
	}

	if err := t.backend.InsertData(table, entry); err != nil {
		t.err = fmt.Errorf("recording into %s: %w", table, err)
	}
}
