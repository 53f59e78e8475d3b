package replay

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// VerbosePrinter is a hook that echoes every data record followed by the
// outcome of each of its accesses, e.g. "M 20,1 miss eviction hit".
type VerbosePrinter struct {
	w io.Writer
}

// NewVerbosePrinter creates a VerbosePrinter writing to w.
func NewVerbosePrinter(w io.Writer) *VerbosePrinter {
	return &VerbosePrinter{w: w}
}

// Func implements sim.Hook.
func (p *VerbosePrinter) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosAfterRecord {
		return
	}

	rec := ctx.Item.(trace.Record)
	results := ctx.Detail.([]cache.AccessResult)

	var sb strings.Builder
	sb.WriteString(rec.String())
	for _, result := range results {
		sb.WriteByte(' ')
		sb.WriteString(result.Outcome().String())
	}

	_, _ = fmt.Fprintln(p.w, sb.String())
}
