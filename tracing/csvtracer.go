package tracing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/cache"
)

// CSVTracer writes accesses to a CSV file.
type CSVTracer struct {
	accessBuffer

	path   string
	file   *os.File
	writer *csv.Writer
	err    error
	closed bool
}

// NewCSVTracer creates a new CSVTracer.
func NewCSVTracer(path string) *CSVTracer {
	return &CSVTracer{
		accessBuffer: accessBuffer{bufferSize: 1000},
		path:         path,
	}
}

// Path returns the CSV file path.
func (t *CSVTracer) Path() string {
	return t.path
}

// Init creates the CSV file. It refuses to overwrite an existing file.
func (t *CSVTracer) Init() error {
	if t.path == "" {
		t.path = defaultPath(".csv")
	}

	if _, err := os.Stat(t.path); err == nil {
		return fmt.Errorf("file %s already exists", t.path)
	}

	file, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	t.file = file
	t.writer = csv.NewWriter(file)

	err = t.writer.Write([]string{
		"seq", "step", "op", "address", "size",
		"set", "tag", "outcome", "evicted_tag",
	})
	if err == nil {
		t.writer.Flush()
		err = t.writer.Error()
	}
	if err != nil {
		t.release()
		return fmt.Errorf("failed to write trace header: %w", err)
	}

	atexit.Register(func() { _ = t.Close() })

	return nil
}

// Func implements sim.Hook.
func (t *CSVTracer) Func(ctx sim.HookCtx) {
	if t.closed || t.writer == nil || t.err != nil {
		return
	}

	if t.collect(ctx) {
		t.keep(t.Flush())
	}
}

// Flush writes the buffered accesses to the CSV file. The buffer is emptied
// even when writing fails.
func (t *CSVTracer) Flush() error {
	if t.writer == nil {
		return nil
	}

	accesses := t.accesses
	t.accesses = nil

	for _, a := range accesses {
		evicted := ""
		if a.Outcome == cache.OutcomeMissEviction {
			evicted = strconv.FormatUint(a.EvictedTag, 16)
		}

		err := t.writer.Write([]string{
			strconv.FormatUint(a.Seq, 10),
			strconv.Itoa(a.Step),
			a.Op.String(),
			strconv.FormatUint(a.Address, 16),
			strconv.FormatUint(a.Size, 10),
			strconv.FormatUint(a.SetIndex, 10),
			strconv.FormatUint(a.Tag, 16),
			a.Outcome.String(),
			evicted,
		})
		if err != nil {
			return fmt.Errorf("failed to write trace row: %w", err)
		}
	}

	t.writer.Flush()
	return t.writer.Error()
}

// Close flushes the remaining accesses and closes the file.
func (t *CSVTracer) Close() error {
	if t.closed || t.file == nil {
		return nil
	}
	t.closed = true

	t.keep(t.Flush())
	t.keep(t.file.Close())

	return t.err
}

// release closes the file after a failed Init.
func (t *CSVTracer) release() {
	_ = t.file.Close()
	t.file = nil
	t.writer = nil
}

func (t *CSVTracer) keep(err error) {
	if err != nil {
		t.err = errors.Join(t.err, err)
	}
}
