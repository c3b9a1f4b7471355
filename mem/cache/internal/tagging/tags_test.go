package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachescope/mem/mesi"
)

var _ = Describe("Tags", func() {
	var (
		tags TagArray
	)

	BeforeEach(func() {
		tags = NewTagArray(1024, 4)
	})

	It("should create invalid blocks with their coordinates", func() {
		set, setID := tags.GetSet(0x405)

		Expect(setID).To(Equal(5))
		Expect(set.Blocks).To(HaveLen(4))
		Expect(set.Blocks[3].WayID).To(Equal(3))
		Expect(set.Blocks[3].SetID).To(Equal(5))
		Expect(set.Occupancy()).To(Equal(0))
	})

	It("should lookup", func() {
		set, _ := tags.GetSet(0x100)
		set.Blocks[2].Tag = 0x100
		set.Blocks[2].IsValid = true
		set.Blocks[2].State = mesi.Shared

		block, ok := tags.Lookup(0x100)

		Expect(ok).To(BeTrue())
		Expect(block.WayID).To(Equal(2))
		Expect(block.State).To(Equal(mesi.Shared))
	})

	It("should return nil when lookup cannot find block", func() {
		block, ok := tags.Lookup(0x100)
		Expect(ok).To(BeFalse())
		Expect(block).To(BeNil())
	})

	It("should return nil if block is invalid", func() {
		set, _ := tags.GetSet(0x100)
		set.Blocks[0].Tag = 0x100

		_, ok := tags.Lookup(0x100)
		Expect(ok).To(BeFalse())
	})

	It("should invalidate everything on reset", func() {
		set, _ := tags.GetSet(0x1)
		set.Blocks[0].IsValid = true

		tags.Reset()

		set, _ = tags.GetSet(0x1)
		Expect(set.Occupancy()).To(Equal(0))
	})
})
