package tagging

import "github.com/sarchlab/cachescope/mem/mesi"

// A TagArray holds the blocks of one core's cache, organized in sets.
type TagArray interface {
	Lookup(lineTag uint64) (*Block, bool)
	GetSet(lineTag uint64) (set *Set, setID int)
	NumSets() int
	NumWays() int
	Sets() []Set
	Reset()
}

// NewTagArray creates a tag array with every block invalid. numSets must be
// a power of two.
func NewTagArray(numSets, numWays int) TagArray {
	t := &tagArrayImpl{
		numSets: numSets,
		numWays: numWays,
	}

	t.Reset()

	return t
}

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	Tag     uint64
	SetID   int
	WayID   int
	IsValid bool
	State   mesi.State

	// Recency orders blocks for replacement. The victim finder decides
	// whether a hit refreshes it.
	Recency uint64
}

// A Set is a list of blocks where a certain line can be stored at.
type Set struct {
	Blocks []Block
}

// Occupancy returns the number of valid blocks in the set.
func (s *Set) Occupancy() int {
	n := 0

	for i := range s.Blocks {
		if s.Blocks[i].IsValid {
			n++
		}
	}

	return n
}

// IsFull reports whether every way holds a valid line.
func (s *Set) IsFull() bool {
	return s.Occupancy() == len(s.Blocks)
}

type tagArrayImpl struct {
	numSets int
	numWays int
	sets    []Set
}

func (d *tagArrayImpl) NumSets() int {
	return d.numSets
}

func (d *tagArrayImpl) NumWays() int {
	return d.numWays
}

func (d *tagArrayImpl) Sets() []Set {
	return d.sets
}

// GetSet returns the set that a line maps to.
func (d *tagArrayImpl) GetSet(lineTag uint64) (set *Set, setID int) {
	setID = int(lineTag & uint64(d.numSets-1))
	set = &d.sets[setID]

	return
}

// Lookup finds the valid block that holds the line.
func (d *tagArrayImpl) Lookup(lineTag uint64) (*Block, bool) {
	set, _ := d.GetSet(lineTag)

	for i := range set.Blocks {
		block := &set.Blocks[i]
		if block.IsValid && block.Tag == lineTag {
			return block, true
		}
	}

	return nil, false
}

// Reset will mark all the blocks in the directory invalid
func (d *tagArrayImpl) Reset() {
	d.sets = make([]Set, d.numSets)
	for i := 0; i < d.numSets; i++ {
		d.sets[i].Blocks = make([]Block, d.numWays)

		for j := 0; j < d.numWays; j++ {
			d.sets[i].Blocks[j] = Block{
				SetID: i,
				WayID: j,
			}
		}
	}
}
