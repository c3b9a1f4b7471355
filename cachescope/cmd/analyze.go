package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/datarecording"
	"github.com/sarchlab/cachescope/idgen"
	"github.com/sarchlab/cachescope/monitoring"
	"github.com/sarchlab/cachescope/report"
	"github.com/sarchlab/cachescope/simulation"
	"github.com/sarchlab/cachescope/stats"
	"github.com/sarchlab/cachescope/trace"
	"github.com/sarchlab/cachescope/tracing"
)

const monitorInterval = 10000

type analyzeOptions struct {
	configFile    string
	preset        string
	lineSize      uint64
	sets          int
	ways          int
	cores         int
	policy        string
	fsWindow      time.Duration
	fsGranularity uint64
	threadMapping string
	seed          int64

	top         int
	format      string
	output      string
	record      string
	monitor     bool
	monitorPort int
	open        bool
	segments    int
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [trace-file|-]",
		Short: "Simulate a trace and report cache behavior",
		Long: "Simulate a memory access trace on per-core private caches kept " +
			"coherent with MESI, then report hit rates, the lines that miss " +
			"most, and false sharing. The trace is read from standard input " +
			"when no file or \"-\" is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "-"
			if len(args) == 1 {
				name = args[0]
			}

			return runAnalyze(cmd, opts, name)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	f.StringVar(&opts.preset, "preset", "", "Hardware preset (see `cachescope presets`)")
	f.Uint64Var(&opts.lineSize, "line-size", 64, "Cache line size in bytes")
	f.IntVar(&opts.sets, "sets", 64, "Sets per core")
	f.IntVar(&opts.ways, "ways", 8, "Ways per set")
	f.IntVar(&opts.cores, "cores", 4, "Number of cores")
	f.StringVar(&opts.policy, "policy", "lru", "Replacement policy (lru, fifo, random)")
	f.DurationVar(&opts.fsWindow, "fs-window", time.Microsecond, "False sharing window")
	f.Uint64Var(&opts.fsGranularity, "fs-granularity", 1, "False sharing byte granularity")
	f.StringVar(&opts.threadMapping, "thread-mapping", "round-robin",
		"Thread to core mapping (round-robin, modulo)")
	f.Int64Var(&opts.seed, "seed", 0, "Seed of the random replacement policy")
	f.IntVar(&opts.top, "top", 10, "Number of lines to rank, -1 for all")
	f.StringVar(&opts.format, "format", "json", "Report format (json, text)")
	f.StringVarP(&opts.output, "output", "o", "", "Report file (default stdout)")
	f.StringVar(&opts.record, "record", "", "Record every outcome into this SQLite file")
	f.BoolVar(&opts.monitor, "monitor", false, "Serve live progress over HTTP")
	f.IntVar(&opts.monitorPort, "monitor-port", 0, "Monitor port (default random)")
	f.BoolVar(&opts.open, "open", false, "Open the monitor in a browser")
	f.IntVar(&opts.segments, "segments", 1, "Number of trace segments parsed in parallel")

	return cmd
}

// buildConfig layers the defaults, the preset, the configuration file and
// the explicitly set flags, in that order.
func buildConfig(flags *pflag.FlagSet, opts *analyzeOptions) (config.SimulationConfig, error) {
	b := config.MakeBuilder()

	if opts.preset != "" {
		p, err := config.LookupPreset(opts.preset)
		if err != nil {
			return config.SimulationConfig{}, err
		}

		b = b.WithPreset(p)
	}

	if opts.configFile != "" {
		file, err := config.LoadFile(opts.configFile)
		if err != nil {
			return config.SimulationConfig{}, err
		}

		b, err = file.ApplyTo(b)
		if err != nil {
			return config.SimulationConfig{}, err
		}
	}

	b, err := applyFlags(b, flags, opts)
	if err != nil {
		return config.SimulationConfig{}, err
	}

	return b.Build()
}

func applyFlags(
	b config.Builder,
	flags *pflag.FlagSet,
	opts *analyzeOptions,
) (config.Builder, error) {
	if flags.Changed("line-size") {
		b = b.WithLineSize(opts.lineSize)
	}

	if flags.Changed("sets") {
		b = b.WithSetsPerCore(opts.sets)
	}

	if flags.Changed("ways") {
		b = b.WithWaysPerSet(opts.ways)
	}

	if flags.Changed("cores") {
		b = b.WithNumCores(opts.cores)
	}

	if flags.Changed("policy") {
		p, err := config.ParseReplacementPolicy(opts.policy)
		if err != nil {
			return b, err
		}

		b = b.WithReplacementPolicy(p)
	}

	if flags.Changed("fs-window") {
		b = b.WithFalseSharingWindow(opts.fsWindow)
	}

	if flags.Changed("fs-granularity") {
		b = b.WithFalseSharingGranularity(opts.fsGranularity)
	}

	if flags.Changed("thread-mapping") {
		m, err := config.ParseThreadMapping(opts.threadMapping)
		if err != nil {
			return b, err
		}

		b = b.WithThreadMapping(m)
	}

	if flags.Changed("seed") {
		b = b.WithSeed(opts.seed)
	}

	return b, nil
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions, name string) error {
	log := logrus.StandardLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	c, err := buildConfig(cmd.Flags(), opts)
	if err != nil {
		return err
	}

	ingested, err := ingest(ctx, log, cmd.InOrStdin(), name, opts.segments)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"events":    ingested.Events,
		"threads":   len(ingested.Streams),
		"malformed": ingested.Malformed,
	}).Info("trace loaded")

	sim := simulation.MakeBuilder().WithConfig(c).WithLogger(log).Build()
	agg := stats.NewAggregator(c.NumCores)
	sim.AcceptHook(agg)

	var tracer *tracing.DBTracer

	if opts.record != "" {
		recorder, err := datarecording.New(opts.record, log)
		if err != nil {
			return err
		}
		defer recorder.Close()

		tracer, err = tracing.NewDBTracer(recorder, idgen.New(), idgen.RunID())
		if err != nil {
			return err
		}

		sim.AcceptHook(tracer)
	}

	if opts.monitor {
		m, err := startMonitor(log, opts)
		if err != nil {
			return err
		}
		defer m.StopServer()

		sim.AcceptHook(monitoring.NewSnapshotHook(
			m, agg, uint64(ingested.Events), monitorInterval))
	}

	sim.ReportMalformed(ingested.Malformed)

	merger := trace.Merge(ingested.AsStreams()...).WithLogger(log)
	if err := sim.Run(ctx, merger); err != nil {
		return fmt.Errorf("simulation aborted: %w", err)
	}

	if tracer != nil && tracer.Err() != nil {
		return tracer.Err()
	}

	r := report.MakeBuilder().
		WithConfig(c).
		WithTopLines(opts.top).
		Build(agg.Stats())

	return writeReport(cmd.OutOrStdout(), opts.output, r, format)
}

func ingest(
	ctx context.Context,
	log logrus.FieldLogger,
	stdin io.Reader,
	name string,
	segments int,
) (*trace.Ingested, error) {
	in := stdin

	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		in = f
	}

	if segments <= 1 {
		return trace.ParseReader(ctx, log, in, name)
	}

	parts, err := trace.SplitLines(in, name, segments)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return trace.ParseSegments(ctx, log, parts)
}

func startMonitor(
	log logrus.FieldLogger,
	opts *analyzeOptions,
) (*monitoring.Monitor, error) {
	m := monitoring.NewMonitor(log).WithPortNumber(opts.monitorPort)

	url, err := m.StartServer()
	if err != nil {
		return nil, err
	}

	if opts.open {
		if err := browser.OpenURL(url); err != nil {
			log.WithError(err).Warn("cannot open browser")
		}
	}

	return m, nil
}

func writeReport(
	stdout io.Writer,
	path string,
	r *report.Report,
	format report.Format,
) error {
	if path == "" {
		return report.Write(stdout, r, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := report.Write(f, r, format); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
