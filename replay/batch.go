package replay

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// BatchResult is the outcome of replaying one trace of a batch.
type BatchResult struct {
	Path  string
	Stats Statistics
}

// RunBatch replays each trace file in order. Every trace gets its own
// freshly built cache. On failure the results of the traces completed so far
// are returned with the error.
func RunBatch(
	config cache.Config,
	paths []string,
	logger logrus.FieldLogger,
	hooks ...sim.Hook,
) ([]BatchResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(paths))
	for _, path := range paths {
		log := logger.WithField("trace", path)
		log.Debug("replaying trace")

		stats, err := runFile(config, path, hooks)
		if err != nil {
			return results, fmt.Errorf("failed to replay %s: %w", path, err)
		}

		log.WithFields(logrus.Fields{
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"evictions": stats.Evictions,
		}).Debug("trace replayed")

		results = append(results, BatchResult{Path: path, Stats: stats})
	}

	return results, nil
}

func runFile(config cache.Config, path string, hooks []sim.Hook) (Statistics, error) {
	r, err := trace.Open(path)
	if err != nil {
		return Statistics{}, err
	}
	defer func() { _ = r.Close() }()

	return Run(config, r, hooks...)
}
