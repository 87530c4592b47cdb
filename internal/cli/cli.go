package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"streambench/internal/bench"
	"streambench/internal/monitor"
	"streambench/internal/storage"
	"streambench/internal/workload"
)

// ModeConfig is the per-backend-mode sweep surface.
type ModeConfig struct {
	MaxStreams  int
	TargetRates []float64
}

// Options is everything a sweep run needs, assembled by the command layer.
type Options struct {
	Modes   map[workload.BackendMode]ModeConfig
	Specs   []workload.Spec
	Backend workload.Runner

	Sweep       bench.Config
	Degradation float64
	OutPrefix   string

	// StateDir overrides where session dbs and history live ("" = home).
	StateDir string
}

// Session wires one sweep run together: controller, telemetry, persistence.
type Session struct {
	Opts    Options
	Ctrl    *bench.Controller
	Accel   monitor.AcceleratorProvider
	Updates bench.UpdateChan

	store   *storage.Store
	history *storage.History
}

func NewSession(opts Options) *Session {
	// Keep the interface nil when probing finds nothing, so downstream nil
	// checks see an absent accelerator rather than a typed nil.
	var accel monitor.AcceleratorProvider
	if dev := monitor.ProbeAccelerator(); dev != nil {
		accel = dev
	}
	sampler := monitor.NewSampler(monitor.SystemHost{}, accel, opts.Sweep.SampleInterval)
	updates := make(bench.UpdateChan, 100)

	invoker := workload.NewInvoker(opts.Backend)
	ctrl := bench.NewController(invoker, sampler, opts.Sweep, updates)

	s := &Session{
		Opts:    opts,
		Ctrl:    ctrl,
		Accel:   accel,
		Updates: updates,
	}

	// Persistence is best effort: a read-only disk should not stop a sweep.
	if store, err := storage.OpenSession(sessionDir(opts.StateDir)); err == nil {
		s.store = store
		ctrl.OnRecord = func(rec bench.TrialRecord) {
			if err := store.SaveTrial(rec); err != nil {
				slog.Warn("failed to persist trial record", "err", err)
			}
		}
	} else {
		slog.Warn("session store unavailable", "err", err)
	}
	if history, err := storage.OpenHistory(opts.StateDir); err == nil {
		s.history = history
	} else {
		slog.Warn("history unavailable", "err", err)
	}

	return s
}

func sessionDir(stateDir string) string {
	if stateDir == "" {
		return ""
	}
	return stateDir + "/sessions"
}

// TrialsPlanned is the upper bound on trials; early stops finish sooner.
func (s *Session) TrialsPlanned() int {
	total := 0
	for _, mc := range s.Opts.Modes {
		total += mc.MaxStreams * len(mc.TargetRates)
	}
	return total
}

// modes returns the requested backend modes in canonical sweep order.
func (s *Session) modes() []workload.BackendMode {
	var out []workload.BackendMode
	for _, mode := range workload.Modes {
		if _, ok := s.Opts.Modes[mode]; ok {
			out = append(out, mode)
		}
	}
	return out
}

// Run sweeps every requested mode sequentially and closes the update channel
// when done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.Updates)

	for _, mode := range s.modes() {
		mc := s.Opts.Modes[mode]
		if _, err := s.Ctrl.Sweep(ctx, mode, s.Opts.Specs, mc.MaxStreams, mc.TargetRates); err != nil {
			return fmt.Errorf("sweep %s: %w", mode, err)
		}
	}
	return nil
}

// Finalize analyzes the record log, prints the summary, writes reports, and
// records the run in history.
func (s *Session) Finalize() error {
	defer func() {
		if s.store != nil {
			s.store.Close()
		}
	}()

	records := s.Ctrl.Records()
	analysis := bench.Analyze(records, s.Opts.Degradation)
	printSummary(s.Ctrl, records, analysis)

	if s.Opts.OutPrefix != "" && len(records) > 0 {
		if err := writeReports(s, records, analysis); err != nil {
			return err
		}
	}

	if s.history != nil && len(records) > 0 {
		item := storage.HistoryItem{
			ID:         uuid.New().String(),
			Timestamp:  time.Now(),
			Modes:      s.modes(),
			TrialCount: len(records),
			Reports:    analysis,
		}
		if err := s.history.Save(item); err != nil {
			slog.Warn("failed to save run history", "err", err)
		}
	}
	return nil
}

// Start runs a headless sweep: header, per-trial progress lines, summary.
func Start(ctx context.Context, opts Options) error {
	s := NewSession(opts)
	printHeader(s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range s.Updates {
			fmt.Printf("  %-9s | rate %5.1f | streams %3d | ok %3d/%3d | last total %7.2f | cpu %5.1f%%\n",
				u.Mode, u.TargetRate, u.Concurrency,
				u.Success, u.Streams, u.LastAggregate, u.LastCPUPct)
		}
	}()

	runErr := s.Run(ctx)
	<-done

	if err := s.Finalize(); err != nil {
		return err
	}
	return runErr
}

func printHeader(s *Session) {
	fmt.Printf("\n🚀 STARTING STREAMBENCH SWEEP\n")
	fmt.Printf("======================================================================\n")
	for _, mode := range s.modes() {
		mc := s.Opts.Modes[mode]
		fmt.Printf("Mode %-10s: up to %d streams, target rates %v\n", mode, mc.MaxStreams, mc.TargetRates)
	}
	fmt.Printf("Trial duration : %s\n", s.Opts.Sweep.Duration)
	fmt.Printf("Sample interval: %s\n", s.Opts.Sweep.SampleInterval)
	fmt.Printf("Stream sources : %d\n", len(s.Opts.Specs))
	if s.Accel != nil {
		fmt.Printf("Accelerator    : %s\n", s.Accel.Device())
	}
	if s.store != nil {
		fmt.Printf("Session store  : %s\n", s.store.Path())
	}
	fmt.Printf("======================================================================\n\n")
}

func printSummary(ctrl *bench.Controller, records []bench.TrialRecord, analysis map[workload.BackendMode]bench.OptimalConfig) {
	fmt.Printf("\n📊 SWEEP RESULTS\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("Trials run     : %d\n", len(records))
	fmt.Printf("Streams run    : %d (ok %d / failed %d)\n",
		atomic.LoadUint64(&ctrl.Stats.Streams),
		atomic.LoadUint64(&ctrl.Stats.Success),
		atomic.LoadUint64(&ctrl.Stats.Fail))
	fmt.Printf("Stream rate    : p50 %.2f | p90 %.2f | p99 %.2f units/s\n",
		ctrl.Stats.RateP50(), ctrl.Stats.RateP90(), ctrl.Stats.RateP99())

	PrintAnalysis(analysis)
	fmt.Printf("======================================================================\n")
}

// PrintAnalysis prints the per-mode optimal configuration blocks in a
// deterministic mode order.
func PrintAnalysis(analysis map[workload.BackendMode]bench.OptimalConfig) {
	modes := make([]string, 0, len(analysis))
	for mode := range analysis {
		modes = append(modes, string(mode))
	}
	sort.Strings(modes)

	for _, m := range modes {
		rep := analysis[workload.BackendMode(m)]
		fmt.Printf("\n%s:\n", m)
		fmt.Printf("  Max streams tested   : %d\n", rep.MaxConcurrencyTested)
		fmt.Printf("  Best configuration   : %d streams at %.1f units/s target\n",
			rep.BestTrial.Concurrency, rep.BestTrial.TargetRate)
		fmt.Printf("  Peak aggregate rate  : %.2f units/s\n", rep.BestTrial.AggregateRate)
		fmt.Printf("  Degradation onset    : %d streams\n", rep.DegradationOnset)
	}
}
