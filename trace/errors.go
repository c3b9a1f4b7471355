package trace

import "fmt"

// MalformedTraceError reports a record that violates the trace contract.
// Such records are dropped and ingestion continues.
type MalformedTraceError struct {
	Event  MemoryAccessEvent
	Reason string
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("malformed trace record %s: %s", e.Event, e.Reason)
}

// ParseError reports a line of a text trace that cannot be decoded.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}
