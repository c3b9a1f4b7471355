package trace

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// A Parser decodes the line-oriented text format written by the runtime
// recorder:
//
//	<kind> <addr> [<src>] <size> [file:line] [T<tid>] [@<timestamp>]
//
// Records without an explicit timestamp are stamped with their line number,
// which keeps the capture order.
type Parser struct {
	log       logrus.FieldLogger
	line      int
	malformed uint64
}

// NewParser creates a parser whose line numbering starts at firstLine.
func NewParser(log logrus.FieldLogger, firstLine int) *Parser {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Parser{
		log:  log,
		line: firstLine - 1,
	}
}

// Malformed returns the number of lines that could not be decoded.
func (p *Parser) Malformed() uint64 {
	return p.malformed
}

// ParseAll decodes every line of r. Undecodable lines are logged, counted
// and skipped. Only I/O failures are returned as errors.
func (p *Parser) ParseAll(r io.Reader) ([]MemoryAccessEvent, error) {
	var events []MemoryAccessEvent

	err := p.Scan(r, func(evts []MemoryAccessEvent) error {
		events = append(events, evts...)
		return nil
	})

	return events, err
}

// Scan decodes r line by line and hands the events of each decoded line to
// emit. Undecodable lines are logged, counted and skipped. Scanning stops
// at the first error from emit or from reading.
func (p *Parser) Scan(r io.Reader, emit func([]MemoryAccessEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		evts, err := p.ParseLine(scanner.Text())
		if err != nil {
			p.malformed++
			p.log.WithError(err).Warn("skipping trace line")

			continue
		}

		if len(evts) == 0 {
			continue
		}

		if err := emit(evts); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// ParseLine decodes one line. Comments, blank lines and record kinds that do
// not touch the data cache yield no events and no error.
func (p *Parser) ParseLine(text string) ([]MemoryAccessEvent, error) {
	p.line++

	text = strings.TrimSpace(text)
	if text == "" || text[0] == '#' {
		return nil, nil
	}

	fields := strings.Fields(text)
	kind := fields[0]

	switch {
	case kind == "I", kind[0] == 'P':
		return nil, nil
	case kind == "M", kind == "O":
		return p.parseTransfer(text, fields)
	}

	op, ok := opOfKind(kind)
	if !ok {
		return nil, p.errorf(text, "unknown record kind "+kind)
	}

	if len(fields) < 3 {
		return nil, p.errorf(text, "missing address or size")
	}

	addr, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return nil, p.errorf(text, "bad address")
	}

	size, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, p.errorf(text, "bad size")
	}

	evt := MemoryAccessEvent{
		Timestamp: uint64(p.line),
		ThreadID:  1,
		Address:   addr,
		Size:      uint32(size),
		Op:        op,
	}

	if err := p.parseTrailer(text, fields[3:], &evt); err != nil {
		return nil, err
	}

	return []MemoryAccessEvent{evt}, nil
}

// parseTransfer decodes memcpy/memmove records, which read the source range
// and then write the destination range.
func (p *Parser) parseTransfer(
	text string,
	fields []string,
) ([]MemoryAccessEvent, error) {
	if len(fields) < 4 {
		return nil, p.errorf(text, "missing transfer operands")
	}

	dst, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return nil, p.errorf(text, "bad destination address")
	}

	src, err := strconv.ParseUint(fields[2], 0, 64)
	if err != nil {
		return nil, p.errorf(text, "bad source address")
	}

	size, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, p.errorf(text, "bad size")
	}

	read := MemoryAccessEvent{
		Timestamp: uint64(p.line),
		ThreadID:  1,
		Address:   src,
		Size:      uint32(size),
		Op:        Read,
	}

	if err := p.parseTrailer(text, fields[4:], &read); err != nil {
		return nil, err
	}

	write := read
	write.Address = dst
	write.Op = Write

	return []MemoryAccessEvent{read, write}, nil
}

func (p *Parser) parseTrailer(
	text string,
	fields []string,
	evt *MemoryAccessEvent,
) error {
	for _, f := range fields {
		switch {
		case isThreadField(f):
			tid, err := strconv.ParseUint(f[1:], 10, 32)
			if err != nil {
				return p.errorf(text, "bad thread id")
			}

			evt.ThreadID = uint32(tid)
		case f[0] == '@':
			ts, err := strconv.ParseUint(f[1:], 10, 64)
			if err != nil {
				return p.errorf(text, "bad timestamp")
			}

			evt.Timestamp = ts
		default:
			evt.Location = f
		}
	}

	return nil
}

func (p *Parser) errorf(text, reason string) error {
	return &ParseError{Line: p.line, Text: text, Reason: reason}
}

func isThreadField(f string) bool {
	if len(f) < 2 || f[0] != 'T' {
		return false
	}

	for _, c := range f[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func opOfKind(kind string) (Op, bool) {
	switch kind {
	case "L", "R", "A", "V":
		return Read, true
	case "S", "W", "U", "X", "C", "Z":
		return Write, true
	default:
		return Read, false
	}
}
