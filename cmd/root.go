package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tea "github.com/charmbracelet/bubbletea"

	"streambench/internal/banner"
	"streambench/internal/bench"
	"streambench/internal/cli"
	"streambench/internal/report"
	"streambench/internal/simulate"
	"streambench/internal/tui"
	"streambench/internal/workload"
)

var (
	cfgFile string

	// CLI Flags
	modeNames   []string
	maxStreams  int
	rates       []float64
	duration    time.Duration
	interval    time.Duration
	pause       time.Duration
	earlyStop   float64
	degradation float64
	streams     []string
	outPrefix   string
	useTUI      bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "streambench",
	Short: "streambench - stream load-scaling benchmark harness",
	Long: `
streambench drives an increasing number of concurrent stream workloads
against a processing backend, samples host and accelerator utilization
during each trial, and reports the saturation point per backend mode:
peak aggregate throughput and the concurrency where per-stream
throughput starts to collapse.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		opts, err := buildOptions()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if useTUI {
			return runTUI(ctx, opts)
		}
		return cli.Start(ctx, opts)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(simulateCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.streambench.yaml)")

	rootCmd.Flags().StringSliceVarP(&modeNames, "mode", "m", []string{"primary"}, "Backend modes to sweep (primary, secondary)")
	rootCmd.Flags().IntVarP(&maxStreams, "max-streams", "n", 8, "Maximum concurrent streams per mode")
	rootCmd.Flags().Float64SliceVarP(&rates, "rates", "r", []float64{15, 30}, "Target rates (units/s) to sweep")
	rootCmd.Flags().DurationVarP(&duration, "duration", "d", 60*time.Second, "Per-trial stream duration")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Resource sampling interval")
	rootCmd.Flags().DurationVar(&pause, "pause", 2*time.Second, "Settle pause between trials")
	rootCmd.Flags().Float64Var(&earlyStop, "early-stop", bench.DefaultEarlyStop, "Stop raising concurrency below this success fraction")
	rootCmd.Flags().Float64Var(&degradation, "degradation", bench.DefaultDegradationThreshold, "Per-stream rate retention marking the degradation onset")
	rootCmd.Flags().StringSliceVarP(&streams, "stream", "s", nil, "Stream source URIs (default: built-in simulated fleet)")
	rootCmd.Flags().StringVarP(&outPrefix, "out", "o", "streambench_report", "Output filename prefix (empty disables reports)")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "Run with the live terminal UI")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".streambench")
		}
	}
	viper.SetEnvPrefix("streambench")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stderr
	if useTUI {
		// The alt screen owns the terminal.
		out = io.Discard
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
}

func buildOptions() (cli.Options, error) {
	modes := make(map[workload.BackendMode]cli.ModeConfig, len(modeNames))
	for _, name := range modeNames {
		mode := workload.BackendMode(strings.ToLower(name))
		switch mode {
		case workload.ModePrimary, workload.ModeSecondary:
		default:
			return cli.Options{}, fmt.Errorf("unknown backend mode %q", name)
		}
		modes[mode] = modeConfig(mode)
	}

	specs := simulate.DefaultSpecs()
	if len(streams) > 0 {
		specs = make([]workload.Spec, 0, len(streams))
		for i, uri := range streams {
			specs = append(specs, workload.Spec{
				Name: fmt.Sprintf("stream-%d", i),
				URI:  uri,
			})
		}
	}

	return cli.Options{
		Modes:   modes,
		Specs:   specs,
		Backend: simulate.NewBackend(),
		Sweep: bench.Config{
			Duration:           duration,
			SampleInterval:     interval,
			Pause:              pause,
			EarlyStopThreshold: earlyStop,
		},
		Degradation: degradation,
		OutPrefix:   outPrefix,
	}, nil
}

// modeConfig resolves per-mode overrides from the config file, e.g.
//
//	modes:
//	  secondary:
//	    max_streams: 16
//	    rates: [15, 30, 60]
func modeConfig(mode workload.BackendMode) cli.ModeConfig {
	mc := cli.ModeConfig{MaxStreams: maxStreams, TargetRates: rates}

	key := "modes." + string(mode)
	if viper.IsSet(key + ".max_streams") {
		mc.MaxStreams = viper.GetInt(key + ".max_streams")
	}
	if viper.IsSet(key + ".rates") {
		var override []float64
		if err := viper.UnmarshalKey(key+".rates", &override); err == nil && len(override) > 0 {
			mc.TargetRates = override
		}
	}
	return mc
}

func runTUI(ctx context.Context, opts cli.Options) error {
	s := cli.NewSession(opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()

	m := tui.NewModel(s.Updates, s.TrialsPlanned())
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	// Quitting early stops the sweep after the in-flight trial drains.
	cancel()
	runErr := <-errCh

	if err := s.Finalize(); err != nil {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// --- Analyze Subcommand ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <report.json>",
	Short: "Re-run the bottleneck analysis on a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := report.Load(args[0])
		if err != nil {
			return err
		}
		if len(rep.Records) == 0 {
			return fmt.Errorf("report %s contains no trial records", args[0])
		}

		analysis := bench.Analyze(rep.Records, degradation)
		fmt.Printf("\n📊 ANALYSIS OF %s (%d records)\n", args[0], len(rep.Records))
		cli.PrintAnalysis(analysis)
		fmt.Println()
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Float64Var(&degradation, "degradation", bench.DefaultDegradationThreshold, "Per-stream rate retention marking the degradation onset")
}

// --- Simulate Subcommand ---

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Show the built-in simulated stream fleet and backend capacities",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := simulate.NewBackend()

		fmt.Printf("\nSimulated stream fleet (used when no --stream is given):\n")
		for _, spec := range simulate.DefaultSpecs() {
			fmt.Printf("  %-15s %-22s profile: %s\n", spec.Name, spec.URI, simulate.ProfileFor(spec))
		}

		fmt.Printf("\nBackend capacity (aggregate units/s before streams share):\n")
		for _, mode := range workload.Modes {
			fmt.Printf("  %-10s %.0f\n", mode, backend.Capacity[mode])
		}
		fmt.Printf("\nFlaky failure rate: %.0f%%, one event per %d units\n\n",
			backend.FlakyFailRate*100, backend.DetectionEvery)
		return nil
	},
}
