package trace

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// A Segment is an independently parseable piece of a text trace.
type Segment struct {
	Name      string
	Reader    io.Reader
	FirstLine int
}

// Ingested holds the per-thread streams produced from a set of segments.
type Ingested struct {
	Streams   []*SliceStream
	Malformed uint64
	Events    int
}

// AsStreams returns the streams as the Stream interface, ready for Merge.
func (in *Ingested) AsStreams() []Stream {
	streams := make([]Stream, len(in.Streams))
	for i, s := range in.Streams {
		streams[i] = s
	}

	return streams
}

type segmentResult struct {
	events    []MemoryAccessEvent
	malformed uint64
	err       error
}

// ParseSegments parses all segments concurrently and groups the decoded
// events by thread. Segment order is preserved, so a thread's events keep
// their capture order when a trace is split into consecutive segments.
func ParseSegments(
	ctx context.Context,
	log logrus.FieldLogger,
	segments []Segment,
) (*Ingested, error) {
	results := make([]segmentResult, len(segments))

	var wg sync.WaitGroup

	for i, seg := range segments {
		wg.Add(1)

		go func(i int, seg Segment) {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				results[i].err = err
				return
			}

			p := NewParser(log.WithField("segment", seg.Name), seg.FirstLine)
			events, err := p.ParseAll(seg.Reader)
			results[i] = segmentResult{
				events:    events,
				malformed: p.Malformed(),
				err:       err,
			}
		}(i, seg)
	}

	wg.Wait()

	out := &Ingested{}

	var all []MemoryAccessEvent

	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}

		all = append(all, r.events...)
		out.Malformed += r.malformed
	}

	out.Events = len(all)
	out.Streams = SplitByThread(all)

	return out, nil
}

const cancelCheckLines = 4096

// ParseReader parses a trace straight from r without holding its text,
// grouping the events by thread as they are decoded. It is the single
// segment counterpart of ParseSegments.
func ParseReader(
	ctx context.Context,
	log logrus.FieldLogger,
	r io.Reader,
	name string,
) (*Ingested, error) {
	p := NewParser(log.WithField("segment", name), 1)
	byThread := make(map[uint32][]MemoryAccessEvent)
	out := &Ingested{}

	lines := 0
	err := p.Scan(r, func(evts []MemoryAccessEvent) error {
		lines++
		if lines%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		for _, e := range evts {
			byThread[e.ThreadID] = append(byThread[e.ThreadID], e)
		}

		out.Events += len(evts)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Malformed = p.Malformed()
	out.Streams = streamsOf(byThread)

	return out, nil
}

// SplitLines reads r completely and cuts it into at most n segments of
// consecutive lines.
func SplitLines(r io.Reader, name string, n int) ([]Segment, error) {
	if n < 1 {
		n = 1
	}

	var lines []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	per := (len(lines) + n - 1) / n
	if per == 0 {
		per = 1
	}

	var segments []Segment

	for start := 0; start < len(lines); start += per {
		end := min(start+per, len(lines))

		segments = append(segments, Segment{
			Name:      fmt.Sprintf("%s#%d", name, len(segments)),
			Reader:    strings.NewReader(strings.Join(lines[start:end], "\n")),
			FirstLine: start + 1,
		})
	}

	return segments, nil
}
