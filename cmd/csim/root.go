package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/csim/config"
	"github.com/sarchlab/csim/replay"
	"github.com/sarchlab/csim/report"
	"github.com/sarchlab/csim/trace"
	"github.com/sarchlab/csim/tracing"
)

var errMissingArgument = errors.New("missing required command line argument")

const examples = `  csim -s 4 -E 1 -b 4 -t traces/yi.trace
  csim -v -s 8 -E 2 -b 4 -t traces/yi.trace
  csim batch -s 5 -E 1 -b 5 traces/*.trace`

type app struct {
	stdout io.Writer
	logger *logrus.Logger

	configPath  string
	logLevel    string
	cpuProfile  string
	profileFile *os.File

	setBits       int
	associativity int
	blockBits     int
	tracePath     string
	verbose       bool
	resultsPath   string
	traceEnabled  bool
	traceOut      string
	traceFormat   string
}

func newApp(stdout, stderr io.Writer) *app {
	logger := logrus.New()
	logger.SetOutput(stderr)

	return &app{
		stdout: stdout,
		logger: logger,
	}
}

// execute runs the command line and stops any running CPU profile.
func (a *app) execute(args []string) error {
	cmd := a.rootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()
	a.stopProfiling()

	return err
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csim [-hv] -s <s> -E <E> -b <b> -t <tracefile>",
		Short: "csim simulates a set-associative LRU cache over a valgrind memory trace.",
		Long: `csim replays the data accesses of a valgrind memory trace through a ` +
			`cache with 2^s sets of E lines of 2^b bytes, evicting the least ` +
			`recently used line, and reports hits, misses and evictions.`,
		Example:           examples,
		Args:              cobra.NoArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.run,
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.logger.Out)

	pflags := cmd.PersistentFlags()
	pflags.IntVarP(&a.setBits, "set-bits", "s", 0, "Number of set index bits (S = 2^s is the number of sets)")
	pflags.IntVarP(&a.associativity, "associativity", "E", 0, "Associativity (number of lines per set)")
	pflags.IntVarP(&a.blockBits, "block-bits", "b", 0, "Number of block bits (B = 2^b is the block size)")
	pflags.StringVar(&a.configPath, "config", "", "Path to a JSON configuration file")
	pflags.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pflags.StringVar(&a.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")

	flags := cmd.Flags()
	flags.StringVarP(&a.tracePath, "trace", "t", "", "Trace file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Optional verbose flag that displays trace info")
	flags.StringVar(&a.resultsPath, "results", config.DefaultResultsPath,
		"File that receives \"hits misses evictions\" (empty disables)")
	flags.BoolVar(&a.traceEnabled, "trace-accesses", false,
		"Record every access to a uniquely named file")
	flags.StringVar(&a.traceOut, "trace-out", "", "Record every access to this file")
	flags.StringVar(&a.traceFormat, "trace-format", config.TraceFormatCSV,
		"Access record format (csv or sqlite)")

	cmd.AddCommand(a.batchCmd(), a.benchCmd())

	return cmd
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.logger.SetLevel(level)

	return a.startProfiling()
}

func (a *app) startProfiling() error {
	if a.cpuProfile == "" {
		return nil
	}

	f, err := os.Create(a.cpuProfile)
	if err != nil {
		return fmt.Errorf("failed to create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to start CPU profile: %w", err)
	}

	a.profileFile = f
	a.logger.WithField("path", a.cpuProfile).Debug("CPU profiling started")

	return nil
}

func (a *app) stopProfiling() {
	if a.profileFile == nil {
		return
	}

	pprof.StopCPUProfile()
	_ = a.profileFile.Close()
	a.profileFile = nil
}

// resolveConfig starts from the config file, if any, and applies the flags
// that were given on the command line.
func (a *app) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("set-bits") {
		cfg.SetBits = a.setBits
	}
	if flags.Changed("associativity") {
		cfg.Associativity = a.associativity
	}
	if flags.Changed("block-bits") {
		cfg.BlockBits = a.blockBits
	}
	if flags.Changed("trace") {
		cfg.TracePath = a.tracePath
	}
	if flags.Changed("verbose") {
		cfg.Verbose = a.verbose
	}
	if flags.Changed("results") {
		cfg.ResultsPath = a.resultsPath
	}
	if flags.Changed("trace-out") {
		cfg.TraceOut = a.traceOut
	}
	if flags.Changed("trace-format") {
		cfg.TraceFormat = a.traceFormat
	}

	return cfg, nil
}

// usageError prints the usage text to stderr and returns errMissingArgument.
func usageError(cmd *cobra.Command) error {
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
	return errMissingArgument
}

func missingGeometry(cfg *config.Config) bool {
	return cfg.SetBits < 0 || cfg.Associativity < 0 || cfg.BlockBits < 0
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	cfg, err := a.resolveConfig(cmd)
	if err != nil {
		return err
	}

	if missingGeometry(cfg) || cfg.TracePath == "" {
		return usageError(cmd)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log := a.logger.WithFields(logrus.Fields{
		"geometry": cfg.CacheConfig().String(),
		"trace":    cfg.TracePath,
	})

	reader, err := trace.Open(cfg.TracePath)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	var hooks []sim.Hook
	if cfg.Verbose {
		hooks = append(hooks, replay.NewVerbosePrinter(a.stdout))
	}

	tracer, err := a.openTracer(cfg)
	if err != nil {
		return err
	}
	if tracer != nil {
		hooks = append(hooks, tracer)
	}

	log.Debug("replaying trace")
	stats, err := replay.Run(cfg.CacheConfig(), reader, hooks...)
	if err != nil {
		if tracer != nil {
			_ = tracer.Close()
		}
		return err
	}

	if tracer != nil {
		if err := tracer.Close(); err != nil {
			return fmt.Errorf("failed to write access trace: %w", err)
		}
		log.WithField("path", tracer.Path()).Info("access trace written")
	}

	if err := report.Summary(a.stdout, stats); err != nil {
		return err
	}

	if cfg.ResultsPath != "" {
		if err := report.WriteResults(cfg.ResultsPath, stats); err != nil {
			return err
		}
	}

	return nil
}

// openTracer creates the access tracer requested by cfg, or returns nil when
// tracing is off.
func (a *app) openTracer(cfg *config.Config) (tracing.Tracer, error) {
	if cfg.TraceOut == "" && !a.traceEnabled {
		return nil, nil
	}

	tracer, err := tracing.New(cfg.TraceFormat, cfg.TraceOut)
	if err != nil {
		return nil, err
	}

	if err := tracer.Init(); err != nil {
		return nil, fmt.Errorf("failed to create access trace: %w", err)
	}

	return tracer, nil
}
