package mesi

import "fmt"

// InvalidCoherenceTransitionError is returned for a (state, event) pair that
// the transition table does not define. It always indicates a defect.
type InvalidCoherenceTransitionError struct {
	From  State
	Event Event
}

func (e *InvalidCoherenceTransitionError) Error() string {
	return fmt.Sprintf("invalid coherence transition: %s on %s",
		e.Event, e.From)
}

type transitionKey struct {
	from  State
	event Event
}

// A Transition is the result of applying an event to a state.
type Transition struct {
	// Next is the state of the line after the event.
	Next State

	// NextShared replaces Next when another core also holds the line.
	NextShared State

	// Writeback is set when the event forces dirty data back to memory.
	Writeback bool
}

var table = map[transitionKey]Transition{
	{Invalid, LocalRead}:        {Next: Exclusive, NextShared: Shared},
	{Invalid, LocalWrite}:       {Next: Modified, NextShared: Modified},
	{Invalid, RemoteRead}:       {Next: Invalid, NextShared: Invalid},
	{Invalid, RemoteInvalidate}: {Next: Invalid, NextShared: Invalid},

	{Shared, LocalRead}:        {Next: Shared, NextShared: Shared},
	{Shared, LocalWrite}:       {Next: Modified, NextShared: Modified},
	{Shared, RemoteRead}:       {Next: Shared, NextShared: Shared},
	{Shared, RemoteInvalidate}: {Next: Invalid, NextShared: Invalid},

	{Exclusive, LocalRead}:        {Next: Exclusive, NextShared: Exclusive},
	{Exclusive, LocalWrite}:       {Next: Modified, NextShared: Modified},
	{Exclusive, RemoteRead}:       {Next: Shared, NextShared: Shared},
	{Exclusive, RemoteInvalidate}: {Next: Invalid, NextShared: Invalid},

	{Modified, LocalRead}:  {Next: Modified, NextShared: Modified},
	{Modified, LocalWrite}: {Next: Modified, NextShared: Modified},
	{Modified, RemoteRead}: {
		Next: Shared, NextShared: Shared, Writeback: true,
	},
	{Modified, RemoteInvalidate}: {
		Next: Invalid, NextShared: Invalid, Writeback: true,
	},
}

// Lookup returns the table entry for applying event to a line in state from.
func Lookup(from State, event Event) (Transition, error) {
	t, ok := table[transitionKey{from, event}]
	if !ok {
		return Transition{}, &InvalidCoherenceTransitionError{
			From:  from,
			Event: event,
		}
	}

	return t, nil
}

// Next returns the state after event. othersHold tells whether another core
// keeps a valid copy of the line after the event.
func Next(from State, event Event, othersHold bool) (State, error) {
	t, err := Lookup(from, event)
	if err != nil {
		return Invalid, err
	}

	if othersHold {
		return t.NextShared, nil
	}

	return t.Next, nil
}
