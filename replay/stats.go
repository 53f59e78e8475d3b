package replay

import (
	"fmt"

	"github.com/sarchlab/csim/cache"
)

// Statistics holds the counters accumulated over one replay.
type Statistics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Add folds one access result into the counters.
func (s *Statistics) Add(r cache.AccessResult) {
	if r.Hit {
		s.Hits++
		return
	}

	s.Misses++
	if r.Evicted {
		s.Evictions++
	}
}

// Accesses returns the number of cache accesses counted.
func (s Statistics) Accesses() uint64 {
	return s.Hits + s.Misses
}

// HitRate returns hits / accesses, or 0 when nothing was accessed.
func (s Statistics) HitRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Accesses())
}

// String renders the counters in the canonical csim summary form.
func (s Statistics) String() string {
	return fmt.Sprintf("hits:%d misses:%d evictions:%d", s.Hits, s.Misses, s.Evictions)
}
