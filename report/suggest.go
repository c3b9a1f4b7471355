package report

import (
	"fmt"

	"github.com/sarchlab/cachescope/stats"
)

// Suggestion types.
const (
	SuggestFalseSharing = "false_sharing"
	SuggestHighMissRate = "high_miss_rate"
)

// Severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

func (b Builder) suggest(r *Report) []Suggestion {
	suggestions := []Suggestion{}

	for _, inc := range r.FalseSharing {
		suggestions = append(suggestions, b.suggestPadding(inc))
	}

	for _, l := range r.TopLines {
		if l.Accesses < b.minLineAccesses || l.MissRate <= b.missRateThreshold {
			continue
		}

		severity := SeverityMedium
		if l.MissRate >= 0.9 {
			severity = SeverityHigh
		}

		suggestions = append(suggestions, Suggestion{
			Type:     SuggestHighMissRate,
			Severity: severity,
			Location: l.Address,
			Message: fmt.Sprintf(
				"line %s misses %.0f%% of %d accesses",
				l.Address, l.MissRate*100, l.Accesses),
			Fix: missFix(l.MissBreakdown),
		})
	}

	return suggestions
}

// missFix advises on the most common miss cause of a line. Ties go to the
// cause listed first.
func missFix(m stats.MissBreakdown) string {
	causes := []struct {
		count uint64
		fix   string
	}{
		{m.ConflictMisses, "conflict misses dominate: lines of the same " +
			"set evict each other; avoid power-of-two strides or pad arrays"},
		{m.CapacityMisses, "capacity misses dominate: the working set " +
			"exceeds the cache; block loops so each tile fits"},
		{m.CoherenceMisses, "coherence misses dominate: other cores keep " +
			"invalidating the line; reduce sharing of written data"},
	}

	best := -1
	for i, c := range causes {
		if c.count > 0 && (best < 0 || c.count > causes[best].count) {
			best = i
		}
	}

	if best < 0 {
		return "improve locality: traverse data in memory order, " +
			"block loops to fit the cache, or shrink the working set"
	}

	return causes[best].fix
}

func (b Builder) suggestPadding(inc Incident) Suggestion {
	severity := SeverityLow

	switch {
	case inc.Count >= 100:
		severity = SeverityHigh
	case inc.Count >= 10:
		severity = SeverityMedium
	}

	location := inc.LocationA
	if location == "" {
		location = inc.LocationB
	}

	if location == "" {
		location = inc.Address
	}

	return Suggestion{
		Type:     SuggestFalseSharing,
		Severity: severity,
		Location: location,
		Message: fmt.Sprintf(
			"cores %d and %d write bytes %d and %d of line %s (%d times)",
			inc.CoreA, inc.CoreB, inc.OffsetA, inc.OffsetB,
			inc.Address, inc.Count),
		Fix: fmt.Sprintf(
			"place the fields on separate %d-byte lines, "+
				"for example by padding or aligning each per-thread field",
			b.config.LineSize),
	}
}
