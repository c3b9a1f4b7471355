package coherence

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachescope/mem/mesi"
)

var _ = Describe("Directory", func() {
	var d *Directory

	BeforeEach(func() {
		d = NewDirectory(4)
	})

	It("should track holders in core order", func() {
		d.Set(0x1, 3, mesi.Shared)
		d.Set(0x1, 0, mesi.Shared)

		Expect(d.Holders(0x1)).To(Equal([]int{0, 3}))
		Expect(d.OtherHolders(0x1, 0)).To(Equal([]int{3}))
		Expect(d.State(0x1, 3)).To(Equal(mesi.Shared))
		Expect(d.State(0x1, 1)).To(Equal(mesi.Invalid))
	})

	It("should forget lines without holders", func() {
		d.Set(0x1, 2, mesi.Modified)
		Expect(d.NumLines()).To(Equal(1))

		d.Remove(0x1, 2)

		Expect(d.NumLines()).To(Equal(0))
		Expect(d.Holders(0x1)).To(BeEmpty())
	})

	It("should ignore invalidating an absent line", func() {
		d.Remove(0x9, 1)
		Expect(d.NumLines()).To(Equal(0))
	})

	It("should not double count a state change", func() {
		d.Set(0x1, 1, mesi.Exclusive)
		d.Set(0x1, 1, mesi.Modified)
		d.Remove(0x1, 1)

		Expect(d.NumLines()).To(Equal(0))
	})

	It("should detect single-writer violations", func() {
		d.Set(0x1, 0, mesi.Modified)
		d.Set(0x1, 1, mesi.Shared)

		Expect(d.Check(0x1)).To(HaveOccurred())
		Expect(d.Check(0x2)).To(Succeed())
	})
})
