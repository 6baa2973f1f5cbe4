// Package trace reads memory traces and records the memory accesses that a
// cache serves.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/mem/cache"
)

// ErrMalformed is wrapped by every error about a trace line that cannot be
// parsed.
var ErrMalformed = errors.New("malformed trace line")

// An Access is a memory operation that a processor performs.
type Access struct {
	PID  int
	Op   cache.Op
	Line int
}

// A ParseError reports a trace line that cannot be parsed.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Unwrap makes ParseError match ErrMalformed.
func (e *ParseError) Unwrap() error {
	return ErrMalformed
}

// A Reader reads accesses from a text trace. Each line holds a processor
// ID, an operation and a hexadecimal address:
//
//	0 L 0x1000
//	1 S 2040 # the 0x prefix is optional
//
// Operations are L or R for loads and S or W for stores, in either case.
// Blank lines and text after # are ignored.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next access. It returns io.EOF after the last one.
func (r *Reader) Next() (Access, error) {
	for r.scanner.Scan() {
		r.line++

		access, ok, err := ParseLine(r.scanner.Text())
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				parseErr.Line = r.line
			}

			return Access{}, err
		}

		if ok {
			access.Line = r.line
			return access, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Access{}, err
	}

	return Access{}, io.EOF
}

// ParseLine parses one line of a trace. It returns false if the line holds
// no access.
func ParseLine(text string) (Access, bool, error) {
	content := text
	if i := strings.IndexByte(content, '#'); i >= 0 {
		content = content[:i]
	}

	fields := strings.Fields(content)
	if len(fields) == 0 {
		return Access{}, false, nil
	}

	if len(fields) != 3 {
		return Access{}, false, &ParseError{
			Text:   text,
			Reason: fmt.Sprintf("expected 3 fields, got %d", len(fields)),
		}
	}

	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid < 0 {
		return Access{}, false, &ParseError{
			Text:   text,
			Reason: "invalid processor " + fields[0],
		}
	}

	opcode, ok := parseOpcode(fields[1])
	if !ok {
		return Access{}, false, &ParseError{
			Text:   text,
			Reason: "invalid operation " + fields[1],
		}
	}

	addrText := strings.TrimPrefix(strings.ToLower(fields[2]), "0x")

	addr, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return Access{}, false, &ParseError{
			Text:   text,
			Reason: "invalid address " + fields[2],
		}
	}

	return Access{
		PID: pid,
		Op:  cache.Op{Opcode: opcode, Address: addr},
	}, true, nil
}

func parseOpcode(s string) (cache.Opcode, bool) {
	switch strings.ToUpper(s) {
	case "L", "R":
		return cache.OpLoad, true
	case "S", "W":
		return cache.OpStore, true
	default:
		return 0, false
	}
}

// ReadAll reads every access of a trace.
func ReadAll(r io.Reader) ([]Access, error) {
	reader := NewReader(r)

	var accesses []Access

	for {
		access, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return accesses, nil
		}

		if err != nil {
			return nil, err
		}

		accesses = append(accesses, access)
	}
}

// SplitByProcessor groups the operations by processor, keeping their order.
// If numProcessors is 0, one stream is created for every processor up to
// the largest ID in the trace.
func SplitByProcessor(
	accesses []Access,
	numProcessors int,
) ([][]cache.Op, error) {
	if numProcessors == 0 {
		for _, a := range accesses {
			if a.PID+1 > numProcessors {
				numProcessors = a.PID + 1
			}
		}
	}

	streams := make([][]cache.Op, numProcessors)

	for _, a := range accesses {
		if a.PID >= numProcessors {
			return nil, fmt.Errorf(
				"line %d: processor %d out of range, only %d processors",
				a.Line, a.PID, numProcessors)
		}

		streams[a.PID] = append(streams[a.PID], a.Op)
	}

	return streams, nil
}
