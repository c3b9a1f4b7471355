package coherence

import (
	"fmt"

	"github.com/sarchlab/cachescope/mem/mesi"
)

// A Directory records, for every line held by at least one core, the state
// of each core's copy. It is the only place where cross-core state is
// visible and it is only mutated by the Engine.
type Directory struct {
	numCores int
	entries  map[uint64]*dirEntry
}

type dirEntry struct {
	states  []mesi.State
	holders int
}

// NewDirectory creates an empty directory for numCores cores.
func NewDirectory(numCores int) *Directory {
	return &Directory{
		numCores: numCores,
		entries:  make(map[uint64]*dirEntry),
	}
}

// State returns the state of a core's copy of a line.
func (d *Directory) State(line uint64, core int) mesi.State {
	e, ok := d.entries[line]
	if !ok {
		return mesi.Invalid
	}

	return e.states[core]
}

// Set records the state of a core's copy. Setting Invalid removes the core
// from the holders of the line.
func (d *Directory) Set(line uint64, core int, state mesi.State) {
	e, ok := d.entries[line]
	if !ok {
		if state == mesi.Invalid {
			return
		}

		e = &dirEntry{states: make([]mesi.State, d.numCores)}
		d.entries[line] = e
	}

	was := e.states[core].IsValid()
	is := state.IsValid()

	e.states[core] = state

	switch {
	case was && !is:
		e.holders--
	case !was && is:
		e.holders++
	}

	if e.holders == 0 {
		delete(d.entries, line)
	}
}

// Remove drops a core from the holders of a line.
func (d *Directory) Remove(line uint64, core int) {
	d.Set(line, core, mesi.Invalid)
}

// Holders returns the cores holding a valid copy, in ascending order.
func (d *Directory) Holders(line uint64) []int {
	return d.OtherHolders(line, -1)
}

// OtherHolders returns the cores other than core that hold a valid copy, in
// ascending order.
func (d *Directory) OtherHolders(line uint64, core int) []int {
	e, ok := d.entries[line]
	if !ok {
		return nil
	}

	var cores []int

	for c, s := range e.states {
		if c != core && s.IsValid() {
			cores = append(cores, c)
		}
	}

	return cores
}

// NumLines returns the number of lines held by at least one core.
func (d *Directory) NumLines() int {
	return len(d.entries)
}

// Check verifies the single-writer rule for a line: a Modified or Exclusive
// copy excludes every other copy.
func (d *Directory) Check(line uint64) error {
	e, ok := d.entries[line]
	if !ok {
		return nil
	}

	for c, s := range e.states {
		if s.IsUnique() && e.holders > 1 {
			return fmt.Errorf(
				"line 0x%x: core %d holds it in %s with %d holders",
				line, c, s, e.holders)
		}
	}

	return nil
}
