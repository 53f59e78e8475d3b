// Package tracing records every cache access of a replay to a file.
//
// Tracers are replay hooks. They buffer accesses and write them in batches;
// each tracer registers its Close with atexit so that buffered accesses
// reach disk even when the program exits through atexit.Exit.
package tracing

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/replay"
	"github.com/sarchlab/csim/trace"
)

// Access is one cache access as seen by a tracer.
type Access struct {
	// Seq numbers the data records of the trace, starting at 0.
	Seq uint64
	// Step is 0 for the first access of a record and 1 for the second half
	// of a modify.
	Step       int
	Op         trace.Op
	Address    uint64
	Size       uint64
	SetIndex   uint64
	Tag        uint64
	Outcome    cache.Outcome
	EvictedTag uint64
}

// A Tracer is a replay hook that persists accesses.
type Tracer interface {
	sim.Hook

	// Init creates the output file.
	Init() error
	// Flush writes the buffered accesses.
	Flush() error
	// Close flushes and releases the output file. It is safe to call more
	// than once.
	Close() error
	// Path returns the output file path.
	Path() string
}

// New creates an uninitialized tracer for the given format ("csv" or
// "sqlite"). An empty path selects a unique file name in the working
// directory.
func New(format, path string) (Tracer, error) {
	switch format {
	case "csv":
		return NewCSVTracer(path), nil
	case "sqlite":
		return NewSQLiteTracer(path), nil
	default:
		return nil, fmt.Errorf("unknown trace format %q", format)
	}
}

func defaultPath(ext string) string {
	return "csim_trace_" + xid.New().String() + ext
}

// accessBuffer turns replay hook invocations into buffered accesses.
type accessBuffer struct {
	seq        uint64
	accesses   []Access
	bufferSize int
}

// collect buffers the accesses carried by ctx and reports whether the buffer
// is full.
func (b *accessBuffer) collect(ctx sim.HookCtx) bool {
	if ctx.Pos != replay.HookPosAfterRecord {
		return false
	}

	rec := ctx.Item.(trace.Record)
	results := ctx.Detail.([]cache.AccessResult)

	for step, result := range results {
		b.accesses = append(b.accesses, Access{
			Seq:        b.seq,
			Step:       step,
			Op:         rec.Op,
			Address:    rec.Address,
			Size:       rec.Size,
			SetIndex:   result.SetIndex,
			Tag:        result.Tag,
			Outcome:    result.Outcome(),
			EvictedTag: result.EvictedTag,
		})
	}
	b.seq++

	return len(b.accesses) >= b.bufferSize
}
