package report

import (
	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/stats"
)

// Builder can build reports.
type Builder struct {
	config            config.SimulationConfig
	topLines          int
	minLineAccesses   uint64
	missRateThreshold float64
}

// MakeBuilder creates a builder with default ranking parameters.
func MakeBuilder() Builder {
	return Builder{
		topLines:          10,
		minLineAccesses:   16,
		missRateThreshold: 0.5,
	}
}

// WithConfig sets the configuration the stats were produced with.
func (b Builder) WithConfig(c config.SimulationConfig) Builder {
	b.config = c
	return b
}

// WithTopLines sets how many cache lines and source locations are listed. A
// negative number lists all of them.
func (b Builder) WithTopLines(n int) Builder {
	b.topLines = n
	return b
}

// WithMissRateThreshold sets the line miss rate above which a line gets a
// suggestion.
func (b Builder) WithMissRateThreshold(rate float64) Builder {
	b.missRateThreshold = rate
	return b
}

// WithMinLineAccesses sets how often a line must be accessed before it can
// get a suggestion.
func (b Builder) WithMinLineAccesses(n uint64) Builder {
	b.minLineAccesses = n
	return b
}

// Build creates the report of s.
func (b Builder) Build(s *stats.Stats) *Report {
	r := &Report{
		Config:           summarizeConfig(b.config),
		Global:           summarize(s.Global),
		Cores:            make([]CoreSummary, len(s.Cores)),
		TopLines:         rankLines(s, b.config.LineSize, b.topLines),
		HotLines:         rankSources(s, b.topLines),
		FalseSharing:     rankIncidents(s, b.config.LineSize),
		MalformedRecords: s.Malformed,
	}

	for i, c := range s.Cores {
		r.Cores[i] = CoreSummary{Core: i, CounterSummary: summarize(c)}
	}

	r.Suggestions = b.suggest(r)

	return r
}
