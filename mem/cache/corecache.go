// Package cache models the private, set-associative cache of one core.
package cache

import (
	"fmt"

	"github.com/sarchlab/cachescope/mem/cache/internal/tagging"
	"github.com/sarchlab/cachescope/mem/mesi"
)

// A Line is a read-only view of a valid block.
type Line struct {
	Tag     uint64     `json:"tag"`
	Set     int        `json:"set"`
	Way     int        `json:"way"`
	State   mesi.State `json:"state"`
	Recency uint64     `json:"recency"`
}

func lineOf(b *tagging.Block) Line {
	return Line{
		Tag:     b.Tag,
		Set:     b.SetID,
		Way:     b.WayID,
		State:   b.State,
		Recency: b.Recency,
	}
}

// AccessResult tells what a single-line access did to the cache.
type AccessResult struct {
	Hit bool

	// MissKind classifies a miss. It is NotMiss on a hit.
	MissKind MissKind

	// Line is the accessed line after the access.
	Line Line

	// Evicted is set when installing the line replaced a valid line.
	Evicted bool
	Victim  Line
}

// CoreCache is the cache of one core. Lines are addressed by their line tag,
// which is the address divided by the line size.
type CoreCache struct {
	id           int
	tags         tagging.TagArray
	victimFinder tagging.VictimFinder
	misses       *missClassifier
	clock        uint64
}

// ID returns the core that owns the cache.
func (c *CoreCache) ID() int {
	return c.id
}

// NumSets returns the number of sets.
func (c *CoreCache) NumSets() int {
	return c.tags.NumSets()
}

// NumWays returns the associativity.
func (c *CoreCache) NumWays() int {
	return c.tags.NumWays()
}

// SetIndex returns the set a line maps to.
func (c *CoreCache) SetIndex(lineTag uint64) int {
	_, setID := c.tags.GetSet(lineTag)
	return setID
}

// Lookup returns the line if it is present. It does not count as a use.
func (c *CoreCache) Lookup(lineTag uint64) (Line, bool) {
	block, ok := c.tags.Lookup(lineTag)
	if !ok {
		return Line{}, false
	}

	return lineOf(block), true
}

// Access resolves one access to a line. On a hit the replacement metadata is
// refreshed according to the policy. On a miss the line is installed in
// state fill, replacing a victim if the set is full.
func (c *CoreCache) Access(lineTag uint64, fill mesi.State) AccessResult {
	c.clock++

	if block, ok := c.tags.Lookup(lineTag); ok {
		c.victimFinder.Visit(block, c.clock)
		c.misses.access(lineTag, true)

		return AccessResult{Hit: true, Line: lineOf(block)}
	}

	set, _ := c.tags.GetSet(lineTag)
	victim := c.victimFinder.FindVictim(set)

	res := AccessResult{MissKind: c.misses.access(lineTag, false)}
	if victim.IsValid {
		res.Evicted = true
		res.Victim = lineOf(victim)
	}

	victim.Tag = lineTag
	victim.IsValid = true
	victim.State = fill
	victim.Recency = c.clock

	res.Line = lineOf(victim)

	return res
}

// SetState changes the coherence state of a present line.
func (c *CoreCache) SetState(lineTag uint64, state mesi.State) error {
	block, ok := c.tags.Lookup(lineTag)
	if !ok {
		return fmt.Errorf("core %d does not hold line 0x%x", c.id, lineTag)
	}

	if state == mesi.Invalid {
		block.IsValid = false
		c.misses.invalidate(lineTag)
	}

	block.State = state

	return nil
}

// Invalidate drops a line on behalf of another core. A later miss on the
// line is a Coherence miss. It reports the line as it was before removal.
func (c *CoreCache) Invalidate(lineTag uint64) (Line, bool) {
	block, ok := c.tags.Lookup(lineTag)
	if !ok {
		return Line{}, false
	}

	line := lineOf(block)
	block.IsValid = false
	block.State = mesi.Invalid
	c.misses.invalidate(lineTag)

	return line, true
}

// Lines returns every valid line, ordered by set and way.
func (c *CoreCache) Lines() []Line {
	var lines []Line

	sets := c.tags.Sets()
	for i := range sets {
		for j := range sets[i].Blocks {
			b := &sets[i].Blocks[j]
			if b.IsValid {
				lines = append(lines, lineOf(b))
			}
		}
	}

	return lines
}

// Occupancy returns the number of valid lines.
func (c *CoreCache) Occupancy() int {
	n := 0

	sets := c.tags.Sets()
	for i := range sets {
		n += sets[i].Occupancy()
	}

	return n
}

// Reset invalidates the whole cache and forgets every line it has seen.
func (c *CoreCache) Reset() {
	c.tags.Reset()
	c.misses.reset()
	c.clock = 0
}
