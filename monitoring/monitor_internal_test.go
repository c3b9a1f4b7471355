package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/mem/cache"
	"github.com/sarchlab/cachescope/mem/mesi"
	"github.com/sarchlab/cachescope/simulation"
	"github.com/sarchlab/cachescope/stats"
	"github.com/sarchlab/cachescope/trace"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func get(m *Monitor, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	m.newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	return rec
}

var _ = Describe("Monitor", func() {
	var m *Monitor

	BeforeEach(func() {
		m = NewMonitor(quietLogger())
		m.profileDuration = 10 * time.Millisecond

		s := stats.New(2)
		s.Global.Misses = 3
		s.Cores[1].Hits = 4
		s.Lines[7] = stats.LineStats{Accesses: 2, Misses: 1}

		m.Publish(Snapshot{
			Events: 10,
			Stats:  s,
			Cores: []CoreSnapshot{
				{Core: 0, NumSets: 4, NumWays: 2},
				{Core: 1, NumSets: 4, NumWays: 2, Occupancy: 1, Lines: []cache.Line{
					{Tag: 7, Set: 3, State: mesi.Shared},
				}},
			},
		})
	})

	It("should reject privileged ports", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should list and complete progress bars", func() {
		bar := m.CreateProgressBar("Events", 100)
		bar.IncrementFinished(40)

		rec := get(m, "/api/progress")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var bars []map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 40))
		Expect(bars[0]["id"]).To(Equal("1"))

		m.CompleteProgressBar(bar)
		Expect(get(m, "/api/progress").Body.String()).To(MatchJSON("[]"))
	})

	It("should serve the latest stats", func() {
		rec := get(m, "/api/stats")

		var decoded map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &decoded)).To(Succeed())

		global := decoded["global"].(map[string]interface{})
		Expect(global["misses"]).To(BeNumerically("==", 3))
	})

	It("should serve empty stats before the first snapshot", func() {
		rec := get(NewMonitor(quietLogger()), "/api/stats")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("global"))
	})

	It("should serialize a core", func() {
		rec := get(m, "/api/core/1")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Occupancy"))
	})

	It("should reject unknown cores", func() {
		Expect(get(m, "/api/core/9").Code).To(Equal(http.StatusNotFound))
		Expect(get(m, "/api/core/x").Code).To(Equal(http.StatusBadRequest))
	})

	It("should serve a field by path", func() {
		rec := get(m, "/api/field/Cores.1.Lines.0.Tag")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON("7"))

		rec = get(m, "/api/field/Stats.Lines.7.Misses")
		Expect(rec.Body.String()).To(MatchJSON("1"))

		Expect(get(m, "/api/field/Cores.5").Code).To(Equal(http.StatusNotFound))
	})

	It("should report process resources", func() {
		rec := get(m, "/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("memory_size"))
	})

	It("should collect a profile unless one is running", func() {
		rec := get(m, "/api/profile")

		Expect(rec.Code).To(BeElementOf(http.StatusOK, http.StatusConflict))
	})

	It("should serve the web page", func() {
		rec := get(m, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should start and stop the server", func() {
		url, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())

		rsp, err := http.Get(url + "/api/progress")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(m.StopServer()).To(Succeed())
	})
})

var _ = Describe("walkFields", func() {
	type inner struct {
		Value int
	}

	type sample struct {
		Name   string
		Inner  *inner
		Items  []inner
		ByLine map[uint64]inner
		hidden int
	}

	s := &sample{
		Name:   "abc",
		Inner:  &inner{Value: 1},
		Items:  []inner{{Value: 2}, {Value: 3}},
		ByLine: map[uint64]inner{16: {Value: 4}},
	}

	It("should walk struct fields", func() {
		elem, err := walkFields(s, "Name")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.String))
		Expect(elem.String()).To(Equal("abc"))
	})

	It("should walk through pointers", func() {
		elem, err := walkFields(s, "Inner.Value")

		Expect(err).To(BeNil())
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should walk slices and maps", func() {
		elem, err := walkFields(s, "Items.1.Value")
		Expect(err).To(BeNil())
		Expect(elem.Int()).To(Equal(int64(3)))

		elem, err = walkFields(s, "ByLine.0x10.Value")
		Expect(err).To(BeNil())
		Expect(elem.Int()).To(Equal(int64(4)))
	})

	It("should refuse unexported and missing fields", func() {
		_, err := walkFields(s, "hidden")
		Expect(err).To(HaveOccurred())

		_, err = walkFields(s, "Missing")
		Expect(err).To(HaveOccurred())

		_, err = walkFields(s, "Items.7")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SnapshotHook", func() {
	It("should publish snapshots while simulating", func() {
		c, err := config.MakeBuilder().WithNumCores(2).Build()
		Expect(err).NotTo(HaveOccurred())

		sim := simulation.MakeBuilder().
			WithConfig(c).
			WithLogger(quietLogger()).
			Build()

		m := NewMonitor(quietLogger())
		agg := stats.NewAggregator(c.NumCores)
		hook := NewSnapshotHook(m, agg, 3, 2)

		sim.AcceptHook(agg)
		sim.AcceptHook(hook)

		var published []uint64
		var bars []string
		sim.AcceptHook(simulation.HookFunc(func(ctx simulation.HookCtx) {
			if ctx.Pos == simulation.HookPosAccess {
				published = append(published, m.Snapshot().Events)
				bars = append(bars, get(m, "/api/progress").Body.String())
			}
		}))

		events := trace.NewSliceStream([]trace.MemoryAccessEvent{
			{Timestamp: 1, ThreadID: 1, Address: 0, Size: 4},
			{Timestamp: 2, ThreadID: 2, Address: 64, Size: 4},
			{Timestamp: 3, ThreadID: 1, Address: 128, Size: 4, Op: trace.Write},
		})
		Expect(sim.Run(context.Background(), events)).To(Succeed())

		Expect(published).To(Equal([]uint64{0, 0, 2}))

		s := m.Snapshot()
		Expect(s.Events).To(Equal(uint64(3)))
		Expect(s.Stats.Global.Misses).To(Equal(uint64(3)))
		Expect(s.Cores).To(HaveLen(2))
		Expect(s.Cores[0].Occupancy).To(Equal(2))
		Expect(s.Cores[1].Lines).To(HaveLen(1))

		Expect(bars).To(HaveLen(3))
		Expect(bars[0]).To(ContainSubstring(`"finished":0`))
		Expect(bars[2]).To(ContainSubstring(`"finished":2`))
		Expect(bars[2]).NotTo(ContainSubstring("in_progress"))
		Expect(get(m, "/api/progress").Body.String()).To(MatchJSON("[]"))
	})
})
