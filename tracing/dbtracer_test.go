package tracing

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachescope/datarecording"
	"github.com/sarchlab/cachescope/idgen"
	"github.com/sarchlab/cachescope/mem/cache"
	"github.com/sarchlab/cachescope/mem/coherence"
	"github.com/sarchlab/cachescope/mem/mesi"
	"github.com/sarchlab/cachescope/simulation"
	"github.com/sarchlab/cachescope/trace"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		backend  *MockDataRecorder
		tracer   *DBTracer
	)

	outcome := func(kind coherence.OutcomeKind) simulation.HookCtx {
		return simulation.HookCtx{
			Pos: simulation.HookPosOutcome,
			Item: coherence.Outcome{
				Kind:      kind,
				Core:      1,
				Source:    1,
				ThreadID:  7,
				Line:      0x40,
				Op:        trace.Write,
				Timestamp: 12,
				State:     mesi.Modified,
				MissKind:  cache.Capacity,
				Location:  "main.c:10",
			},
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		backend = NewMockDataRecorder(mockCtrl)

		backend.EXPECT().ListTables().Return(nil)
		backend.EXPECT().CreateTable(RunTable, runEntry{})
		backend.EXPECT().CreateTable(OutcomeTable, outcomeEntry{})
		backend.EXPECT().CreateTable(FalseSharingTable, falseSharingEntry{})

		var err error
		tracer, err = NewDBTracer(backend, idgen.New(), "run")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record an outcome", func() {
		backend.EXPECT().InsertData(OutcomeTable, outcomeEntry{
			ID:        "1",
			RunID:     "run",
			Kind:      "miss",
			MissKind:  "capacity",
			Core:      1,
			Source:    1,
			ThreadID:  7,
			Line:      0x40,
			Op:        "write",
			State:     "M",
			Timestamp: 12,
			Location:  "main.c:10",
		})

		tracer.Func(outcome(coherence.Miss))

		Expect(tracer.Outcomes()).To(Equal(uint64(1)))
		Expect(tracer.Err()).NotTo(HaveOccurred())
	})

	It("should record the pair of a false sharing outcome", func() {
		ctx := outcome(coherence.FalseSharing)
		o := ctx.Item.(coherence.Outcome)
		o.FalseSharing = &coherence.FalseSharingEvent{Line: 0x40, CoreA: 0, CoreB: 1}
		ctx.Item = o

		backend.EXPECT().InsertData(OutcomeTable, gomock.Any())
		backend.EXPECT().InsertData(FalseSharingTable, falseSharingEntry{
			ID:    "1",
			RunID: "run",
			Line:  0x40,
			CoreB: 1,
		})

		tracer.Func(ctx)
	})

	It("should write the run summary and flush at the end", func() {
		backend.EXPECT().InsertData(OutcomeTable, gomock.Any())
		backend.EXPECT().InsertData(RunTable, runEntry{
			RunID:     "run",
			Events:    5,
			Malformed: 2,
			Outcomes:  1,
		})
		backend.EXPECT().Flush()

		tracer.Func(outcome(coherence.Hit))
		tracer.Func(simulation.HookCtx{
			Pos:  simulation.HookPosMalformed,
			Item: uint64(2),
		})
		tracer.Func(simulation.HookCtx{
			Pos:  simulation.HookPosEnd,
			Item: uint64(5),
		})
	})

	It("should keep the first error and stop recording", func() {
		backend.EXPECT().
			InsertData(OutcomeTable, gomock.Any()).
			Return(errors.New("disk full"))

		tracer.Func(outcome(coherence.Hit))
		tracer.Func(outcome(coherence.Hit))

		Expect(tracer.Err()).To(MatchError(ContainSubstring("disk full")))
	})
})

var _ = Describe("DBTracer with a kind filter", func() {
	It("should only record the selected kinds", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		backend := NewMockDataRecorder(mockCtrl)
		backend.EXPECT().
			ListTables().
			Return([]string{RunTable, OutcomeTable, FalseSharingTable})

		tracer, err := NewDBTracer(backend, idgen.New(), "run",
			coherence.Miss, coherence.Invalidation)
		Expect(err).NotTo(HaveOccurred())

		backend.EXPECT().InsertData(OutcomeTable, gomock.Any()).Times(1)

		tracer.Func(simulation.HookCtx{
			Pos:  simulation.HookPosOutcome,
			Item: coherence.Outcome{Kind: coherence.Hit},
		})
		tracer.Func(simulation.HookCtx{
			Pos:  simulation.HookPosOutcome,
			Item: coherence.Outcome{Kind: coherence.Miss},
		})
	})
})

var _ = Describe("DBTracer with SQLite", func() {
	It("should store a simulated run", func() {
		log := logrus.New()
		log.SetOutput(io.Discard)

		path := filepath.Join(GinkgoT().TempDir(), "trace.sqlite3")
		recorder, err := datarecording.New(path, log)
		Expect(err).NotTo(HaveOccurred())

		tracer, err := NewDBTracer(recorder, idgen.New(), idgen.RunID())
		Expect(err).NotTo(HaveOccurred())

		sim := simulation.MakeBuilder().WithLogger(log).Build()
		sim.AcceptHook(tracer)

		events := trace.NewSliceStream([]trace.MemoryAccessEvent{
			{Timestamp: 1, ThreadID: 1, Address: 0, Size: 4, Op: trace.Read},
			{Timestamp: 2, ThreadID: 1, Address: 64, Size: 4, Op: trace.Write},
		})
		Expect(sim.Run(context.Background(), events)).To(Succeed())
		Expect(tracer.Err()).NotTo(HaveOccurred())
		Expect(recorder.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path)
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		n, err := reader.Count(OutcomeTable)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		n, err = reader.Count(RunTable)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("should clamp timestamps beyond the signed range", func() {
		log := logrus.New()
		log.SetOutput(io.Discard)

		path := filepath.Join(GinkgoT().TempDir(), "late.sqlite3")
		recorder, err := datarecording.New(path, log)
		Expect(err).NotTo(HaveOccurred())

		tracer, err := NewDBTracer(recorder, idgen.New(), idgen.RunID())
		Expect(err).NotTo(HaveOccurred())

		sim := simulation.MakeBuilder().WithLogger(log).Build()
		sim.AcceptHook(tracer)

		late := uint64(1)<<63 + 5
		events := trace.NewSliceStream([]trace.MemoryAccessEvent{
			{Timestamp: 1, ThreadID: 1, Address: 0, Size: 4, Op: trace.Read},
			{Timestamp: late, ThreadID: 1, Address: 0, Size: 4, Op: trace.Write},
		})
		Expect(sim.Run(context.Background(), events)).To(Succeed())
		Expect(tracer.Err()).NotTo(HaveOccurred())
		Expect(recorder.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path)
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		var latest int64
		Expect(reader.QueryRow(
			"SELECT MAX(Timestamp) FROM " + OutcomeTable).Scan(&latest)).
			To(Succeed())
		Expect(latest).To(Equal(int64(math.MaxInt64)))
	})
})
