package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/csim/benchmarks"
)

func (a *app) benchCmd() *cobra.Command {
	var asJSON, asCSV bool

	cmd := &cobra.Command{
		Use:   "bench [-s <s> -E <E> -b <b>] [--json | --csv]",
		Short: "Run the synthetic access-pattern benchmarks.",
		Long: `Run the synthetic access-pattern benchmarks against one cache ` +
			`geometry. Without -s, -E and -b a 4KB 4-way cache with 32B lines is used.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.resolveConfig(cmd)
			if err != nil {
				return err
			}

			harnessConfig := benchmarks.DefaultConfig()
			harnessConfig.Output = a.stdout
			switch {
			case !missingGeometry(cfg):
				harnessConfig.Cache = cfg.CacheConfig()
			case cfg.SetBits >= 0 || cfg.Associativity >= 0 || cfg.BlockBits >= 0:
				return usageError(cmd)
			}

			harness := benchmarks.NewHarness(harnessConfig)
			harness.AddBenchmarks(benchmarks.GetAccessPatterns())

			a.logger.WithField("geometry", harnessConfig.Cache.String()).
				Debug("running benchmarks")

			results, err := harness.RunAll()
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				return harness.PrintJSON(results)
			case asCSV:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Print results as CSV")
	cmd.MarkFlagsMutuallyExclusive("json", "csv")

	return cmd
}
