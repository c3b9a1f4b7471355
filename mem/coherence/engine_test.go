package coherence

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/mem/cache"
	"github.com/sarchlab/cachescope/mem/mesi"
	"github.com/sarchlab/cachescope/trace"
)

func kinds(outcomes []Outcome) []OutcomeKind {
	ks := make([]OutcomeKind, len(outcomes))
	for i, o := range outcomes {
		ks[i] = o.Kind
	}

	return ks
}

var _ = Describe("Engine", func() {
	var (
		e  *Engine
		ts uint64
	)

	access := func(core int, line uint64, op trace.Op) []Outcome {
		ts++

		out, err := e.Access(Request{
			Core:      core,
			ThreadID:  uint32(core),
			Line:      line,
			Offset:    uint64(core) * 8,
			Size:      4,
			Op:        op,
			Timestamp: ts,
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		return out
	}

	state := func(core int, line uint64) mesi.State {
		return e.Directory().State(line, core)
	}

	BeforeEach(func() {
		ts = 0

		c, err := config.MakeBuilder().
			WithNumCores(3).
			WithSetsPerCore(4).
			WithWaysPerSet(2).
			Build()
		Expect(err).NotTo(HaveOccurred())

		e = NewEngine(c)
	})

	It("should install a lone reader as Exclusive", func() {
		out := access(0, 0x10, trace.Read)

		Expect(kinds(out)).To(Equal([]OutcomeKind{Miss}))
		Expect(state(0, 0x10)).To(Equal(mesi.Exclusive))

		out = access(0, 0x10, trace.Read)
		Expect(kinds(out)).To(Equal([]OutcomeKind{Hit}))
	})

	It("should share a line read by two cores", func() {
		access(0, 0x10, trace.Read)
		access(1, 0x10, trace.Read)

		Expect(state(0, 0x10)).To(Equal(mesi.Shared))
		Expect(state(1, 0x10)).To(Equal(mesi.Shared))

		line, ok := e.Cache(0).Lookup(0x10)
		Expect(ok).To(BeTrue())
		Expect(line.State).To(Equal(mesi.Shared))
	})

	It("should upgrade Exclusive to Modified silently", func() {
		access(0, 0x10, trace.Read)

		out := access(0, 0x10, trace.Write)

		Expect(kinds(out)).To(Equal([]OutcomeKind{Hit}))
		Expect(state(0, 0x10)).To(Equal(mesi.Modified))
	})

	It("should downgrade a Modified holder on a remote read", func() {
		access(0, 0x10, trace.Write)

		out := access(1, 0x10, trace.Read)

		Expect(kinds(out)).To(Equal([]OutcomeKind{Miss, Writeback}))
		Expect(out[1].Core).To(Equal(0))
		Expect(state(0, 0x10)).To(Equal(mesi.Shared))
		Expect(state(1, 0x10)).To(Equal(mesi.Shared))
	})

	It("should invalidate every other copy on a write", func() {
		access(0, 0x10, trace.Read)
		access(1, 0x10, trace.Read)
		access(2, 0x10, trace.Read)

		out := access(1, 0x10, trace.Write)

		Expect(kinds(out)).To(Equal(
			[]OutcomeKind{Hit, Invalidation, Invalidation}))
		Expect(out[1].Core).To(Equal(0))
		Expect(out[1].Source).To(Equal(1))
		Expect(out[2].Core).To(Equal(2))
		Expect(e.Directory().Holders(0x10)).To(Equal([]int{1}))
		Expect(state(1, 0x10)).To(Equal(mesi.Modified))

		_, ok := e.Cache(0).Lookup(0x10)
		Expect(ok).To(BeFalse())
	})

	It("should write back a Modified copy that is invalidated", func() {
		access(0, 0x10, trace.Write)

		out := access(1, 0x10, trace.Write)

		Expect(kinds(out)).To(ContainElements(Invalidation, Writeback))
		Expect(state(1, 0x10)).To(Equal(mesi.Modified))
		Expect(state(0, 0x10)).To(Equal(mesi.Invalid))
	})

	It("should classify a miss on an invalidated line as coherence", func() {
		out := access(0, 0x10, trace.Write)
		Expect(out[0].MissKind).To(Equal(cache.Compulsory))

		access(1, 0x10, trace.Write)

		out = access(0, 0x10, trace.Write)
		Expect(out[0].Kind).To(Equal(Miss))
		Expect(out[0].MissKind).To(Equal(cache.Coherence))

		out = access(0, 0x10, trace.Read)
		Expect(out[0].Kind).To(Equal(Hit))
		Expect(out[0].MissKind).To(Equal(cache.NotMiss))
	})

	It("should evict and drop the victim from the directory", func() {
		access(0, 0, trace.Write)
		access(0, 4, trace.Read)

		out := access(0, 8, trace.Read)

		Expect(kinds(out)).To(Equal([]OutcomeKind{Eviction, Writeback, Miss}))
		Expect(out[0].Line).To(Equal(uint64(0)))
		Expect(out[0].State).To(Equal(mesi.Modified))
		Expect(e.Directory().Holders(0)).To(BeEmpty())
	})

	It("should report false sharing between writers", func() {
		access(0, 0x10, trace.Write)

		out := access(1, 0x10, trace.Write)

		Expect(kinds(out)).To(ContainElement(FalseSharing))

		last := out[len(out)-1]
		Expect(last.FalseSharing.CoreA).To(Equal(0))
		Expect(last.FalseSharing.CoreB).To(Equal(1))
	})

	It("should reject a core out of range", func() {
		_, err := e.Access(Request{Core: 5, Size: 1}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("should fail fast when the cache and directory disagree", func() {
		access(0, 0x10, trace.Read)
		e.Directory().Remove(0x10, 0)

		_, err := e.Access(Request{Core: 0, Line: 0x10, Size: 1}, nil)

		var derr *DirectoryInconsistencyError
		Expect(err).To(BeAssignableToTypeOf(derr))
	})
})
