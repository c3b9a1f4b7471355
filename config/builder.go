package config

import "time"

// Builder assembles a SimulationConfig.
type Builder struct {
	lineSize      uint64
	sets          int
	ways          int
	cores         int
	policy        ReplacementPolicy
	window        time.Duration
	granularity   uint64
	threadMapping ThreadMapping
	seed          int64
}

// MakeBuilder returns a builder with a 32 KiB, 8-way, 64 B line L1 on four
// cores.
func MakeBuilder() Builder {
	return Builder{
		lineSize:    64,
		sets:        64,
		ways:        8,
		cores:       4,
		policy:      LRU,
		window:      time.Microsecond,
		granularity: 1,
	}
}

// WithLineSize sets the cache line size in bytes.
func (b Builder) WithLineSize(lineSize uint64) Builder {
	b.lineSize = lineSize
	return b
}

// WithSetsPerCore sets the number of sets in each core's cache.
func (b Builder) WithSetsPerCore(sets int) Builder {
	b.sets = sets
	return b
}

// WithWaysPerSet sets the associativity.
func (b Builder) WithWaysPerSet(ways int) Builder {
	b.ways = ways
	return b
}

// WithNumCores sets the number of simulated cores.
func (b Builder) WithNumCores(cores int) Builder {
	b.cores = cores
	return b
}

// WithReplacementPolicy sets the victim selection policy.
func (b Builder) WithReplacementPolicy(p ReplacementPolicy) Builder {
	b.policy = p
	return b
}

// WithFalseSharingWindow sets the sliding window of the false sharing
// detector.
func (b Builder) WithFalseSharingWindow(window time.Duration) Builder {
	b.window = window
	return b
}

// WithFalseSharingGranularity sets the byte granularity used to decide
// whether two writes touch disjoint parts of a line.
func (b Builder) WithFalseSharingGranularity(bytes uint64) Builder {
	b.granularity = bytes
	return b
}

// WithThreadMapping sets how trace threads are placed on cores.
func (b Builder) WithThreadMapping(m ThreadMapping) Builder {
	b.threadMapping = m
	return b
}

// WithSeed sets the seed of the Random replacement policy.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithPreset copies the geometry of a hardware preset.
func (b Builder) WithPreset(p Preset) Builder {
	b.lineSize = p.LineSize
	b.sets = p.Sets()
	b.ways = p.Ways
	b.policy = p.Policy

	return b
}

// Build validates the collected values and returns the configuration.
func (b Builder) Build() (SimulationConfig, error) {
	c := SimulationConfig{
		LineSize:                b.lineSize,
		SetsPerCore:             b.sets,
		WaysPerSet:              b.ways,
		NumCores:                b.cores,
		ReplacementPolicy:       b.policy,
		FalseSharingWindow:      b.window,
		FalseSharingGranularity: b.granularity,
		ThreadMapping:           b.threadMapping,
		Seed:                    b.seed,
	}

	if err := c.Validate(); err != nil {
		return SimulationConfig{}, err
	}

	return c, nil
}
