package cache

import (
	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/mem/cache/internal/tagging"
)

// A Builder can build core caches.
type Builder struct {
	numSets int
	numWays int
	policy  config.ReplacementPolicy
	seed    int64
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numSets: 64,
		numWays: 8,
		policy:  config.LRU,
	}
}

// WithConfig copies geometry and policy from a simulation config.
func (b Builder) WithConfig(c config.SimulationConfig) Builder {
	b.numSets = c.SetsPerCore
	b.numWays = c.WaysPerSet
	b.policy = c.ReplacementPolicy
	b.seed = c.Seed

	return b
}

// WithNumSets sets the number of sets. It must be a power of two.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithNumWays sets the associativity.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// WithReplacementPolicy sets the victim selection policy.
func (b Builder) WithReplacementPolicy(p config.ReplacementPolicy) Builder {
	b.policy = p
	return b
}

// WithSeed sets the seed of the Random policy.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// Build creates the cache of the given core.
func (b Builder) Build(coreID int) *CoreCache {
	if b.numSets < 1 || b.numSets&(b.numSets-1) != 0 {
		panic("number of sets must be a power of two")
	}

	if b.numWays < 1 {
		panic("number of ways must be positive")
	}

	return &CoreCache{
		id:           coreID,
		tags:         tagging.NewTagArray(b.numSets, b.numWays),
		victimFinder: b.buildVictimFinder(coreID),
		misses:       newMissClassifier(b.numSets * b.numWays),
	}
}

func (b Builder) buildVictimFinder(coreID int) tagging.VictimFinder {
	switch b.policy {
	case config.LRU:
		return tagging.NewLRUVictimFinder()
	case config.FIFO:
		return tagging.NewFIFOVictimFinder()
	case config.Random:
		return tagging.NewRandomVictimFinder(b.seed + int64(coreID))
	default:
		panic("unknown replacement policy " + b.policy.String())
	}
}
