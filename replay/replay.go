// Package replay drives a cache model with a stream of trace records.
package replay

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// HookPosAfterRecord fires after a data record has been applied to the
// cache. The hook item is the trace.Record and the detail is the
// []cache.AccessResult it produced.
var HookPosAfterRecord = &sim.HookPos{Name: "AfterRecord"}

// HookPosRecordSkipped fires for records that do not touch the cache, such as
// instruction fetches. The hook item is the trace.Record.
var HookPosRecordSkipped = &sim.HookPos{Name: "RecordSkipped"}

// Source produces trace records one at a time. Next returns io.EOF when the
// trace is exhausted.
type Source interface {
	Next() (trace.Record, error)
}

// Replayer applies trace records to a cache and counts the outcomes.
// A Replayer and its cache serve exactly one trace.
type Replayer struct {
	*sim.HookableBase

	cache *cache.Cache
	stats Statistics
}

// NewReplayer creates a Replayer that drives c.
func NewReplayer(c *cache.Cache) *Replayer {
	return &Replayer{
		HookableBase: sim.NewHookableBase(),
		cache:        c,
	}
}

// Cache returns the cache being driven.
func (r *Replayer) Cache() *cache.Cache {
	return r.cache
}

// Stats returns the counters accumulated so far.
func (r *Replayer) Stats() Statistics {
	return r.stats
}

// Step applies one record and returns the access results it produced.
// Loads and stores access the cache once, modifies twice; everything else
// is skipped.
func (r *Replayer) Step(rec trace.Record) []cache.AccessResult {
	var results []cache.AccessResult

	switch rec.Op {
	case trace.Load, trace.Store:
		results = []cache.AccessResult{r.cache.Access(rec.Address)}
	case trace.Modify:
		results = []cache.AccessResult{
			r.cache.Access(rec.Address),
			r.cache.Access(rec.Address),
		}
	default:
		r.InvokeHook(sim.HookCtx{
			Domain: r,
			Pos:    HookPosRecordSkipped,
			Item:   rec,
		})
		return nil
	}

	for _, result := range results {
		r.stats.Add(result)
	}

	r.InvokeHook(sim.HookCtx{
		Domain: r,
		Pos:    HookPosAfterRecord,
		Item:   rec,
		Detail: results,
	})

	return results
}

// Replay consumes src until it is exhausted and returns the final counters.
// If src fails, the counters reached so far are returned with the error.
func (r *Replayer) Replay(src Source) (Statistics, error) {
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return r.stats, nil
		}
		if err != nil {
			return r.stats, fmt.Errorf("failed to read trace record: %w", err)
		}

		r.Step(rec)
	}
}

// Run builds a fresh cache from config and replays src through it.
func Run(config cache.Config, src Source, hooks ...sim.Hook) (Statistics, error) {
	c, err := cache.New(config)
	if err != nil {
		return Statistics{}, err
	}

	r := NewReplayer(c)
	for _, h := range hooks {
		r.AcceptHook(h)
	}

	return r.Replay(src)
}
