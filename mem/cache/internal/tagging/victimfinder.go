package tagging

import "math/rand"

// A VictimFinder decides which block should be evicted and how hits affect
// future replacement decisions.
type VictimFinder interface {
	// FindVictim returns the block to replace in a set. Invalid blocks are
	// always chosen first.
	FindVictim(set *Set) *Block

	// Visit records a hit on a block at logical time now.
	Visit(block *Block, now uint64)
}

// LRUVictimFinder evicts the least recently used block.
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns the least recently used block in a set
func (e *LRUVictimFinder) FindVictim(set *Set) *Block {
	return oldestBlock(set)
}

// Visit marks the block as most recently used.
func (e *LRUVictimFinder) Visit(block *Block, now uint64) {
	block.Recency = now
}

// FIFOVictimFinder evicts the block that was installed first. Hits do not
// change the order.
type FIFOVictimFinder struct{}

// NewFIFOVictimFinder returns a newly constructed fifo evictor
func NewFIFOVictimFinder() *FIFOVictimFinder {
	return &FIFOVictimFinder{}
}

// FindVictim returns the oldest installed block in a set.
func (e *FIFOVictimFinder) FindVictim(set *Set) *Block {
	return oldestBlock(set)
}

// Visit does nothing.
func (e *FIFOVictimFinder) Visit(_ *Block, _ uint64) {}

// RandomVictimFinder evicts a uniformly chosen block.
type RandomVictimFinder struct {
	rng *rand.Rand
}

// NewRandomVictimFinder returns a random evictor that draws from a
// generator seeded with seed.
func NewRandomVictimFinder(seed int64) *RandomVictimFinder {
	return &RandomVictimFinder{rng: rand.New(rand.NewSource(seed))}
}

// FindVictim returns a random block, preferring invalid ones.
func (e *RandomVictimFinder) FindVictim(set *Set) *Block {
	if block := firstInvalid(set); block != nil {
		return block
	}

	return &set.Blocks[e.rng.Intn(len(set.Blocks))]
}

// Visit does nothing.
func (e *RandomVictimFinder) Visit(_ *Block, _ uint64) {}

func firstInvalid(set *Set) *Block {
	for i := range set.Blocks {
		if !set.Blocks[i].IsValid {
			return &set.Blocks[i]
		}
	}

	return nil
}

// oldestBlock returns the first invalid block, or else the valid block with
// the smallest recency. Ties go to the lowest way.
func oldestBlock(set *Set) *Block {
	if block := firstInvalid(set); block != nil {
		return block
	}

	victim := &set.Blocks[0]
	for i := 1; i < len(set.Blocks); i++ {
		if set.Blocks[i].Recency < victim.Recency {
			victim = &set.Blocks[i]
		}
	}

	return victim
}
