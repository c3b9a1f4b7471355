package coherence

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeReq(core int, offset, size, ts uint64) Request {
	return Request{
		Core:      core,
		ThreadID:  uint32(core + 1),
		Line:      0x40,
		Offset:    offset,
		Size:      size,
		Timestamp: ts,
	}
}

var _ = Describe("FalseSharingDetector", func() {
	var d *FalseSharingDetector

	BeforeEach(func() {
		d = NewFalseSharingDetector(100, 1, 64)
	})

	It("should report disjoint writes by two cores", func() {
		Expect(d.ObserveWrite(writeReq(0, 0, 4, 10))).To(BeEmpty())

		events := d.ObserveWrite(writeReq(1, 4, 4, 20))

		Expect(events).To(HaveLen(1))
		Expect(events[0].CoreA).To(Equal(0))
		Expect(events[0].CoreB).To(Equal(1))
		Expect(events[0].OffsetA).To(Equal(uint64(0)))
		Expect(events[0].OffsetB).To(Equal(uint64(4)))
		Expect(events[0].WindowStart).To(Equal(uint64(10)))
	})

	It("should not report overlapping writes", func() {
		d.ObserveWrite(writeReq(0, 0, 8, 10))

		Expect(d.ObserveWrite(writeReq(1, 4, 4, 20))).To(BeEmpty())
	})

	It("should not report writes by the same core", func() {
		d.ObserveWrite(writeReq(0, 0, 4, 10))

		Expect(d.ObserveWrite(writeReq(0, 8, 4, 20))).To(BeEmpty())
	})

	It("should compare offsets at the configured granularity", func() {
		d = NewFalseSharingDetector(100, 8, 64)
		d.ObserveWrite(writeReq(0, 0, 4, 10))

		Expect(d.ObserveWrite(writeReq(1, 4, 4, 20))).To(BeEmpty())
		Expect(d.ObserveWrite(writeReq(1, 8, 4, 30))).To(HaveLen(1))
	})

	It("should report each pair once per window", func() {
		d.ObserveWrite(writeReq(0, 0, 4, 10))
		Expect(d.ObserveWrite(writeReq(1, 4, 4, 20))).To(HaveLen(1))
		Expect(d.ObserveWrite(writeReq(0, 0, 4, 30))).To(BeEmpty())
		Expect(d.ObserveWrite(writeReq(1, 4, 4, 40))).To(BeEmpty())
	})

	It("should report distinct pairs in one window separately", func() {
		d.ObserveWrite(writeReq(0, 0, 4, 10))
		d.ObserveWrite(writeReq(1, 4, 4, 11))

		events := d.ObserveWrite(writeReq(2, 8, 4, 12))

		Expect(events).To(HaveLen(2))
		Expect(events[0].CoreA).To(Equal(0))
		Expect(events[1].CoreA).To(Equal(1))
	})

	It("should report the same pair again after the window", func() {
		d.ObserveWrite(writeReq(0, 0, 4, 10))
		Expect(d.ObserveWrite(writeReq(1, 4, 4, 20))).To(HaveLen(1))

		d.ObserveWrite(writeReq(0, 0, 4, 500))
		events := d.ObserveWrite(writeReq(1, 4, 4, 510))

		Expect(events).To(HaveLen(1))
		Expect(events[0].WindowStart).To(Equal(uint64(500)))
	})

	It("should not pair writes further apart than the window", func() {
		d.ObserveWrite(writeReq(0, 0, 4, 10))

		Expect(d.ObserveWrite(writeReq(1, 4, 4, 111))).To(BeEmpty())
	})

	It("should keep its state bounded", func() {
		for ts := uint64(0); ts < 10000; ts++ {
			d.ObserveWrite(writeReq(int(ts%2), (ts%2)*4, 4, ts))
		}

		Expect(d.Pending()).To(BeNumerically("<=", 101))
	})
})
