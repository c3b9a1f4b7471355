package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format is an output format of a report.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat converts a format name into a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatJSON, FormatText:
		return Format(name), nil
	default:
		return "", fmt.Errorf("unknown report format %q", name)
	}
}

// Write writes r to w in the given format.
func Write(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatText:
		return WriteText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(r)
}

// WriteText writes r as aligned plain text tables.
func WriteText(w io.Writer, r *Report) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	c := r.Config
	p.Fprintf(tw, "Cache\t%d cores x %d KB, %d sets x %d ways, %d B lines, %s\n",
		c.NumCores, c.CacheSize/1024, c.SetsPerCore, c.WaysPerSet,
		c.LineSize, c.ReplacementPolicy)
	p.Fprintf(tw, "Malformed records\t%d\n\n", r.MalformedRecords)

	fmt.Fprintln(tw, "Core\tAccesses\tHits\tMisses\tHit rate\tEvictions\tInvalidations\tWritebacks")

	for _, core := range r.Cores {
		writeCounters(p, tw, fmt.Sprint(core.Core), core.CounterSummary)
	}

	writeCounters(p, tw, "all", r.Global)

	g := r.Global
	p.Fprintf(tw, "\nMisses\tcompulsory %d\tcapacity %d\tconflict %d\tcoherence %d\n",
		g.CompulsoryMisses, g.CapacityMisses, g.ConflictMisses,
		g.CoherenceMisses)

	if len(r.TopLines) > 0 {
		fmt.Fprintln(tw, "\nLine\tAccesses\tMisses\tMiss rate\tInvalidations\tEvictions")

		for _, l := range r.TopLines {
			p.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%d\t%d\n",
				l.Address, l.Accesses, l.Misses, l.MissRate*100,
				l.Invalidations, l.Evictions)
		}
	}

	if len(r.HotLines) > 0 {
		fmt.Fprintln(tw, "\nSource\tAccesses\tMisses\tMiss rate\tThreads")

		for _, src := range r.HotLines {
			p.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%d\n",
				src.Location, src.Accesses, src.Misses, src.MissRate*100,
				src.ThreadCount)
		}
	}

	if len(r.FalseSharing) > 0 {
		fmt.Fprintln(tw, "\nFalse sharing\tCores\tOffsets\tCount\tFirst seen")

		for _, inc := range r.FalseSharing {
			p.Fprintf(tw, "%s\t%d,%d\t%d,%d\t%d\t%d\n",
				inc.Address, inc.CoreA, inc.CoreB, inc.OffsetA, inc.OffsetB,
				inc.Count, inc.FirstSeen)
		}
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintln(tw, "\nSuggestions")

		for _, s := range r.Suggestions {
			fmt.Fprintf(tw, "[%s] %s\t%s\n\t%s\n",
				s.Severity, s.Location, s.Message, s.Fix)
		}
	}

	return tw.Flush()
}

func writeCounters(
	p *message.Printer,
	w io.Writer,
	name string,
	c CounterSummary,
) {
	p.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\t%d\t%d\t%d\n",
		name, c.Accesses, c.Hits, c.Misses, c.HitRate*100,
		c.Evictions, c.Invalidations, c.Writebacks)
}
