package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedLine is returned for a trace line that cannot be parsed.
var ErrMalformedLine = errors.New("malformed trace line")

// ParseLine parses a single " <op> <addr_hex>,<size_dec>" line.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	op, err := ParseOp(fields[0])
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q: %w", ErrMalformedLine, line, err)
	}

	addrText, sizeText, ok := strings.Cut(fields[1], ",")
	if !ok {
		return Record{}, fmt.Errorf("%w: %q: missing size", ErrMalformedLine, line)
	}

	addr, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q: bad address: %w", ErrMalformedLine, line, err)
	}

	size, err := strconv.ParseUint(sizeText, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q: bad size: %w", ErrMalformedLine, line, err)
	}

	return Record{Op: op, Address: addr, Size: size}, nil
}

// Reader streams records from a trace. Blank lines and valgrind banner lines
// (starting with '=') are skipped.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Open opens the trace file at path. The caller must Close the reader.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next record, or io.EOF when the trace is exhausted.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "=") {
			continue
		}

		rec, err := ParseLine(text)
		if err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read trace: %w", err)
	}
	return Record{}, io.EOF
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// LoadFile reads a whole trace file into memory. It is meant for small traces;
// use Open to stream large ones.
func LoadFile(path string) ([]Record, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// SliceSource replays an in-memory list of records.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource creates a SliceSource over records.
func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record, or io.EOF after the last one.
func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
