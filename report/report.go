// Package report turns simulation stats into a ranked, human-oriented
// report with optimization suggestions.
package report

import (
	"fmt"
	"sort"

	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/stats"
)

// Report is the final result of an analysis.
type Report struct {
	Config           ConfigSummary   `json:"config"`
	Global           CounterSummary  `json:"global"`
	Cores            []CoreSummary   `json:"cores"`
	TopLines         []LineSummary   `json:"topLines"`
	HotLines         []SourceSummary `json:"hotLines"`
	FalseSharing     []Incident      `json:"falseSharing"`
	Suggestions      []Suggestion    `json:"suggestions"`
	MalformedRecords uint64          `json:"malformedRecords"`
}

// ConfigSummary echoes the simulated hardware.
type ConfigSummary struct {
	LineSize                uint64 `json:"lineSize"`
	SetsPerCore             int    `json:"setsPerCore"`
	WaysPerSet              int    `json:"waysPerSet"`
	NumCores                int    `json:"numCores"`
	CacheSize               uint64 `json:"cacheSize"`
	ReplacementPolicy       string `json:"replacementPolicy"`
	FalseSharingWindowNs    int64  `json:"falseSharingWindowNs"`
	FalseSharingGranularity uint64 `json:"falseSharingGranularity"`
	ThreadMapping           string `json:"threadMapping"`
	Seed                    int64  `json:"seed"`
}

// CounterSummary is a set of counters with derived rates.
type CounterSummary struct {
	stats.Counters
	HitRate  float64 `json:"hitRate"`
	MissRate float64 `json:"missRate"`
}

// CoreSummary is the counters of one core.
type CoreSummary struct {
	Core int `json:"core"`
	CounterSummary
}

// LineSummary describes a frequently missing cache line.
type LineSummary struct {
	Line    uint64 `json:"line"`
	Address string `json:"address"`
	stats.LineStats
	MissRate float64 `json:"missRate"`
}

// SourceSummary describes a source location, usually file:line, that
// misses often.
type SourceSummary struct {
	Location string `json:"location"`
	stats.SourceStats
	MissRate    float64 `json:"missRate"`
	ThreadCount int     `json:"threadCount"`
}

// Incident is a false sharing incident.
type Incident struct {
	Address string `json:"address"`
	stats.IncidentRecord
}

// Suggestion is an actionable hint derived from the stats.
type Suggestion struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Location string `json:"location"`
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

func summarize(c stats.Counters) CounterSummary {
	return CounterSummary{
		Counters: c,
		HitRate:  c.HitRate(),
		MissRate: c.MissRate(),
	}
}

func summarizeConfig(c config.SimulationConfig) ConfigSummary {
	return ConfigSummary{
		LineSize:                c.LineSize,
		SetsPerCore:             c.SetsPerCore,
		WaysPerSet:              c.WaysPerSet,
		NumCores:                c.NumCores,
		CacheSize:               c.CacheSize(),
		ReplacementPolicy:       c.ReplacementPolicy.String(),
		FalseSharingWindowNs:    c.FalseSharingWindow.Nanoseconds(),
		FalseSharingGranularity: c.FalseSharingGranularity,
		ThreadMapping:           c.ThreadMapping.String(),
		Seed:                    c.Seed,
	}
}

func lineAddress(line, lineSize uint64) string {
	return fmt.Sprintf("0x%x", line*lineSize)
}

// rankLines orders lines by miss rate, then by misses, then by line, all
// but the last descending.
func rankLines(s *stats.Stats, lineSize uint64, n int) []LineSummary {
	lines := make([]LineSummary, 0, len(s.Lines))
	for tag, l := range s.Lines {
		if l.Accesses == 0 {
			continue
		}

		lines = append(lines, LineSummary{
			Line:      tag,
			Address:   lineAddress(tag, lineSize),
			LineStats: l,
			MissRate:  l.MissRate(),
		})
	}

	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]

		switch {
		case a.MissRate != b.MissRate:
			return a.MissRate > b.MissRate
		case a.Misses != b.Misses:
			return a.Misses > b.Misses
		default:
			return a.Line < b.Line
		}
	})

	if n >= 0 && len(lines) > n {
		lines = lines[:n]
	}

	return lines
}

// rankSources orders source locations by misses, then by accesses, both
// descending, then by location.
func rankSources(s *stats.Stats, n int) []SourceSummary {
	sources := make([]SourceSummary, 0, len(s.Sources))
	for loc, src := range s.Sources {
		sources = append(sources, SourceSummary{
			Location:    loc,
			SourceStats: src,
			MissRate:    src.MissRate(),
			ThreadCount: len(src.Threads),
		})
	}

	sort.Slice(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]

		switch {
		case a.Misses != b.Misses:
			return a.Misses > b.Misses
		case a.Accesses != b.Accesses:
			return a.Accesses > b.Accesses
		default:
			return a.Location < b.Location
		}
	})

	if n >= 0 && len(sources) > n {
		sources = sources[:n]
	}

	return sources
}

// rankIncidents orders incidents by count, descending, then by key.
func rankIncidents(s *stats.Stats, lineSize uint64) []Incident {
	records := s.SortedIncidents()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Count > records[j].Count
	})

	incidents := make([]Incident, len(records))
	for i, r := range records {
		incidents[i] = Incident{
			Address:        lineAddress(r.Line, lineSize),
			IncidentRecord: r,
		}
	}

	return incidents
}
