// Package trace provides memory access records and a streaming reader for
// valgrind-style lackey traces.
package trace

import (
	"errors"
	"fmt"
)

// ErrUnknownOp is returned when an operation letter is not I, L, S or M.
var ErrUnknownOp = errors.New("unknown operation")

// Op is the kind of a memory access.
type Op byte

const (
	// Instruction is an instruction fetch. It never touches the data cache.
	Instruction Op = 'I'
	// Load is a data load.
	Load Op = 'L'
	// Store is a data store.
	Store Op = 'S'
	// Modify is a load followed by a store to the same address.
	Modify Op = 'M'
)

// ParseOp converts a trace operation letter to an Op.
func ParseOp(s string) (Op, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
	}

	switch op := Op(s[0]); op {
	case Instruction, Load, Store, Modify:
		return op, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
	}
}

func (o Op) String() string {
	return string(rune(o))
}

// IsData reports whether the operation accesses the data cache.
func (o Op) IsData() bool {
	return o == Load || o == Store || o == Modify
}

// Record is one access from a trace.
type Record struct {
	Op      Op
	Address uint64
	// Size is the number of bytes accessed. Accesses never cross a block
	// boundary, so the simulator ignores it.
	Size uint64
}

// String renders the record the way csim echoes it in verbose mode.
func (r Record) String() string {
	return fmt.Sprintf("%s %x,%d", r.Op, r.Address, r.Size)
}
