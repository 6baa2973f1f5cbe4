package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/coherence"
	"github.com/sarchlab/cachesim/mem/cache"
	memtrace "github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/sim"
	"github.com/sarchlab/cachesim/simulation"
	"github.com/sarchlab/cachesim/stats"
	"github.com/sarchlab/cachesim/tracing"
)

type runConfig struct {
	setIndexBits  int
	associativity int
	blockSizeBits int
	rrpvBits      int
	useRRIP       bool

	tracePath  string
	processors int

	coherence string
	latency   int
	maxIdle   uint64

	traceDB     string
	uniqueIDs   bool
	accessLog   bool
	statsPath   string
	statsFormat string

	monitor     bool
	monitorPort int
	openBrowser bool

	verbose bool
}

func newRunCmd() *cobra.Command {
	cfg := &runConfig{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a trace on a cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.useRRIP = cmd.Flags().Changed("rrpv-bits")
			return runSimulation(cmd.Context(), cfg)
		},
	}

	flags := runCmd.Flags()
	flags.IntVarP(&cfg.setIndexBits, "set-index-bits", "s", -1,
		"number of set index bits; the cache has 2^s sets")
	flags.IntVarP(&cfg.associativity, "associativity", "E", 0,
		"number of lines per set")
	flags.IntVarP(&cfg.blockSizeBits, "block-size-bits", "b", -1,
		"number of block offset bits; blocks are 2^b bytes")
	flags.IntVarP(&cfg.rrpvBits, "rrpv-bits", "R", 0,
		"RRPV width; setting it selects RRIP instead of LRU")
	flags.StringVarP(&cfg.tracePath, "trace", "t", "",
		"trace file, - for standard input")
	flags.IntVarP(&cfg.processors, "processors", "p", 0,
		"number of processors; 0 infers it from the trace")
	flags.StringVar(&cfg.coherence, "coherence", "ideal",
		"coherence protocol, ideal or directory")
	flags.IntVar(&cfg.latency, "latency", 10,
		"cycles a directory miss takes")
	flags.Uint64Var(&cfg.maxIdle, "max-idle", 100000,
		"cycles without a completion before the run is considered stalled; 0 disables")
	flags.StringVar(&cfg.traceDB, "trace-db", "",
		"record request traces into this SQLite database, without extension")
	flags.BoolVar(&cfg.uniqueIDs, "unique-ids", false,
		"name requests with globally unique IDs instead of sequential ones")
	flags.BoolVar(&cfg.accessLog, "access-log", false,
		"log every access at Info level")
	flags.StringVar(&cfg.statsPath, "stats", "-",
		"where to write statistics, - for standard output, empty to skip")
	flags.StringVar(&cfg.statsFormat, "stats-format", "json",
		"statistics format, json, msgpack or cbor")
	flags.BoolVar(&cfg.monitor, "monitor", false,
		"serve the simulation state over HTTP")
	flags.IntVar(&cfg.monitorPort, "monitor-port", 0,
		"monitor port; 0 picks a random port")
	flags.BoolVar(&cfg.openBrowser, "open-browser", false,
		"open the monitor in a browser")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false,
		"log at Debug level")

	_ = runCmd.MarkFlagRequired("trace")

	return runCmd
}

func runSimulation(ctx context.Context, cfg *runConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	format, err := stats.ParseFormat(cfg.statsFormat)
	if err != nil {
		return err
	}

	streams, err := loadStreams(cfg.tracePath, cfg.processors)
	if err != nil {
		return err
	}

	protocol, err := buildCoherence(cfg, logger)
	if err != nil {
		return err
	}

	c, err := buildCache(cfg, protocol, logger)
	if err != nil {
		return err
	}

	s, err := buildSimulation(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Terminate()

	collector := stats.NewCollector()
	c.AcceptHook(collector)

	latencyTracer := tracing.NewAverageTimeTracer(c, tracing.KindIs("req_in"))
	tracing.CollectTrace(c, latencyTracer)

	stepTracer := tracing.NewStepCountTracer(tracing.KindIs("req_in"))
	tracing.CollectTrace(c, stepTracer)

	if cfg.accessLog {
		tracing.CollectTrace(c, memtrace.NewTracer(logger, c))
	}

	driver := simulation.MakeDriverBuilder().
		WithMaxIdleCycles(cfg.maxIdle).
		WithLogger(logger).
		WithFinishWriter(stderr).
		WithSimulation(s).
		Build(c, streams)

	result, runErr := driver.Run(ctx)

	fields := []zap.Field{
		zap.Uint64("cycles", result.Cycles),
		zap.Uint64("completed", result.Completed),
		zap.Float64("avg_latency_s", float64(latencyTracer.AverageTime())),
		zap.Float64("max_latency_s", float64(latencyTracer.MaxTime())),
	}
	for _, step := range stepTracer.StepNames() {
		fields = append(fields, zap.Uint64("step_"+step, stepTracer.StepCount(step)))
	}
	logger.Info("summary", fields...)

	if err := writeStats(cfg.statsPath, collector.Report(), format); err != nil {
		return err
	}

	return runErr
}

func buildCoherence(
	cfg *runConfig,
	logger *zap.Logger,
) (cache.Coherence, error) {
	switch cfg.coherence {
	case "ideal":
		return coherence.NewIdeal(), nil
	case "directory":
		return coherence.MakeDirectoryBuilder().
			WithLatency(cfg.latency).
			WithLogger(logger).
			Build("Directory")
	default:
		return nil, fmt.Errorf("unknown coherence protocol %q", cfg.coherence)
	}
}

func buildCache(
	cfg *runConfig,
	protocol cache.Coherence,
	logger *zap.Logger,
) (*cache.Comp, error) {
	builder := cache.MakeBuilder().
		WithCoherence(protocol).
		WithLogger(logger).
		WithSetIndexBits(cfg.setIndexBits).
		WithAssociativity(cfg.associativity).
		WithBlockSizeBits(cfg.blockSizeBits)

	if cfg.useRRIP {
		builder = builder.WithRRPVBits(cfg.rrpvBits)
	}

	if cfg.uniqueIDs {
		builder = builder.WithIDGenerator(sim.NewParallelIDGenerator())
	}

	return builder.Build("L1")
}

func buildSimulation(
	cfg *runConfig,
	logger *zap.Logger,
) (*simulation.Simulation, error) {
	builder := simulation.MakeBuilder().WithLogger(logger)

	if cfg.traceDB != "" {
		builder = builder.WithRecording().WithOutputFileName(cfg.traceDB)
	}

	if cfg.monitor {
		builder = builder.WithMonitoring().WithMonitorPort(cfg.monitorPort)
	}

	s, err := builder.Build()
	if err != nil {
		return nil, err
	}

	if cfg.openBrowser && s.MonitorURL() != "" {
		if err := browser.OpenURL(s.MonitorURL()); err != nil {
			logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	return s, nil
}

func loadStreams(path string, processors int) ([][]cache.Op, error) {
	var r io.Reader = os.Stdin

	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		r = f
	}

	accesses, err := memtrace.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading trace %s: %w", path, err)
	}

	return memtrace.SplitByProcessor(accesses, processors)
}

func writeStats(path string, report stats.Report, format stats.Format) error {
	switch path {
	case "":
		return nil
	case "-":
		return stats.Encode(stdout, report, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := stats.Encode(f, report, format); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
