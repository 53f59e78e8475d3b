package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/csim/replay"
	"github.com/sarchlab/csim/report"
)

func (a *app) batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch -s <s> -E <E> -b <b> <tracefile>...",
		Short: "Replay several traces, each through a fresh cache.",
		Long: `Replay several traces one after another. Every trace gets its own ` +
			`freshly built cache, and one summary line is printed per trace.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.resolveConfig(cmd)
			if err != nil {
				return err
			}

			if missingGeometry(cfg) {
				return usageError(cmd)
			}

			results, err := replay.RunBatch(cfg.CacheConfig(), args, a.logger)
			if printErr := report.Batch(a.stdout, results); printErr != nil {
				return printErr
			}

			return err
		},
	}
}
