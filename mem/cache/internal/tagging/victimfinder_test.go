package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func fullSet(recency ...uint64) *Set {
	set := &Set{}
	for i, r := range recency {
		set.Blocks = append(set.Blocks, Block{
			Tag:     uint64(i),
			WayID:   i,
			IsValid: true,
			Recency: r,
		})
	}

	return set
}

var _ = Describe("VictimFinder", func() {
	Context("LRU", func() {
		var finder *LRUVictimFinder

		BeforeEach(func() {
			finder = NewLRUVictimFinder()
		})

		It("should prefer an invalid block", func() {
			set := fullSet(1, 2, 3)
			set.Blocks[1].IsValid = false

			Expect(finder.FindVictim(set).WayID).To(Equal(1))
		})

		It("should evict the least recently used block", func() {
			set := fullSet(4, 2, 3)

			Expect(finder.FindVictim(set).WayID).To(Equal(1))
		})

		It("should refresh recency on visit", func() {
			set := fullSet(1, 2, 3)

			finder.Visit(&set.Blocks[0], 10)

			Expect(finder.FindVictim(set).WayID).To(Equal(1))
		})

		It("should break ties by lowest way", func() {
			set := fullSet(5, 2, 2)

			Expect(finder.FindVictim(set).WayID).To(Equal(1))
		})
	})

	Context("FIFO", func() {
		It("should ignore hits", func() {
			finder := NewFIFOVictimFinder()
			set := fullSet(1, 2, 3)

			finder.Visit(&set.Blocks[0], 10)

			Expect(finder.FindVictim(set).WayID).To(Equal(0))
		})
	})

	Context("Random", func() {
		It("should be reproducible for a fixed seed", func() {
			a := NewRandomVictimFinder(7)
			b := NewRandomVictimFinder(7)

			for i := 0; i < 20; i++ {
				set := fullSet(1, 2, 3, 4)
				Expect(a.FindVictim(set).WayID).
					To(Equal(b.FindVictim(set).WayID))
			}
		})

		It("should prefer an invalid block", func() {
			finder := NewRandomVictimFinder(1)
			set := fullSet(1, 2, 3, 4)
			set.Blocks[2].IsValid = false

			Expect(finder.FindVictim(set).WayID).To(Equal(2))
		})

		It("should reach every way", func() {
			finder := NewRandomVictimFinder(3)
			seen := map[int]bool{}

			for i := 0; i < 200; i++ {
				seen[finder.FindVictim(fullSet(1, 2, 3, 4)).WayID] = true
			}

			Expect(seen).To(HaveLen(4))
		})
	})
})
