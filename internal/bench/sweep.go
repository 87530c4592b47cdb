package bench

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"streambench/internal/monitor"
	"streambench/internal/stats"
	"streambench/internal/workload"
)

// Config carries the sweep-level tunables. Zero values fall back to the
// defaults below.
type Config struct {
	Duration           time.Duration // per-trial stream duration
	SampleInterval     time.Duration
	Pause              time.Duration // settle time between trials
	EarlyStopThreshold float64       // stop raising concurrency below this success fraction
}

const (
	DefaultDuration  = 60 * time.Second
	DefaultPause     = 2 * time.Second
	DefaultEarlyStop = 0.5
)

func (c Config) withDefaults() Config {
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = monitor.DefaultInterval
	}
	if c.EarlyStopThreshold <= 0 {
		c.EarlyStopThreshold = DefaultEarlyStop
	}
	return c
}

// Update is a progress snapshot pushed to the UI after every trial.
type Update struct {
	Mode        workload.BackendMode
	TargetRate  float64
	Concurrency int
	TrialsDone  int

	Streams uint64
	Success uint64
	Fail    uint64

	RateP50 float64
	RateP90 float64
	RateP99 float64

	LastAggregate float64
	LastCPUPct    float64
}

type UpdateChan chan Update

// Controller runs sweeps and owns the append-only trial record log. Trials
// run strictly sequentially, so the log itself needs no locking; the mutex
// guards the sample log, which a sampler goroutine may still be filling at a
// trial boundary.
type Controller struct {
	Invoker *workload.Invoker
	Monitor *monitor.Sampler // nil disables resource sampling
	Cfg     Config
	Stats   *stats.Run
	Updates UpdateChan

	// OnRecord is called after each append, e.g. to persist the record.
	OnRecord func(TrialRecord)

	mu      sync.Mutex
	records []TrialRecord
	samples []TrialSamples
	lastCPU float64
}

func NewController(inv *workload.Invoker, mon *monitor.Sampler, cfg Config, updates UpdateChan) *Controller {
	return &Controller{
		Invoker: inv,
		Monitor: mon,
		Cfg:     cfg.withDefaults(),
		Stats:   stats.NewRun(),
		Updates: updates,
	}
}

// Sweep iterates target rates (outer) and concurrency 1..maxConcurrency
// (inner, strictly increasing) for one backend mode. When a trial's success
// count collapses below concurrency × EarlyStopThreshold, the inner loop
// stops and the next target rate starts over from concurrency 1. Every trial
// appends a record, including all-fail trials. Only configuration errors
// propagate; backend flakiness never aborts the sweep.
func (c *Controller) Sweep(ctx context.Context, mode workload.BackendMode, specs []workload.Spec, maxConcurrency int, targetRates []float64) ([]TrialRecord, error) {
	if maxConcurrency < 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("max concurrency must be positive, got %d", maxConcurrency)}
	}
	if len(specs) == 0 {
		return nil, &ConfigError{Reason: "no stream specs"}
	}
	if len(targetRates) == 0 {
		return nil, &ConfigError{Reason: "no target rates"}
	}

	var appended []TrialRecord
	for _, rate := range targetRates {
		for n := 1; n <= maxConcurrency; n++ {
			if err := ctx.Err(); err != nil {
				return appended, err
			}

			cfg := TrialConfig{Mode: mode, TargetRate: rate, Concurrency: n}
			slog.Info("running trial",
				"mode", cfg.Mode, "target_rate", cfg.TargetRate, "streams", cfg.Concurrency)

			harness := &Harness{
				Invoker:    c.Invoker,
				Duration:   c.Cfg.Duration,
				Sampler:    c.Monitor,
				SampleSink: c.sinkFor(cfg),
				Stats:      c.Stats,
			}
			rec, err := harness.Execute(ctx, cfg, specs)
			if err != nil {
				return appended, err
			}

			c.append(rec)
			appended = append(appended, rec)
			c.sendUpdate(rec)

			if float64(rec.SuccessfulCount) < float64(n)*c.Cfg.EarlyStopThreshold {
				slog.Warn("success rate collapsed, stopping concurrency ramp",
					"mode", mode, "target_rate", rate,
					"streams", n, "successful", rec.SuccessfulCount)
				break
			}
			c.settle(ctx)
		}
	}
	return appended, nil
}

func (c *Controller) append(rec TrialRecord) {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	if c.OnRecord != nil {
		c.OnRecord(rec)
	}
}

// sinkFor opens a sample slot for one trial and returns the sink that fills
// it. The sampler goroutine may deliver past the fan-in barrier, hence the
// lock per append.
func (c *Controller) sinkFor(cfg TrialConfig) func(monitor.Sample) {
	if c.Monitor == nil {
		return nil
	}
	c.mu.Lock()
	c.samples = append(c.samples, TrialSamples{Trial: cfg})
	idx := len(c.samples) - 1
	c.mu.Unlock()

	return func(smp monitor.Sample) {
		c.mu.Lock()
		c.samples[idx].Samples = append(c.samples[idx].Samples, smp)
		c.lastCPU = smp.CPUPct
		c.mu.Unlock()
	}
}

func (c *Controller) sendUpdate(rec TrialRecord) {
	if c.Updates == nil {
		return
	}
	c.mu.Lock()
	done := len(c.records)
	cpu := c.lastCPU
	c.mu.Unlock()

	u := Update{
		Mode:          rec.Mode,
		TargetRate:    rec.TargetRate,
		Concurrency:   rec.Concurrency,
		TrialsDone:    done,
		Streams:       atomic.LoadUint64(&c.Stats.Streams),
		Success:       atomic.LoadUint64(&c.Stats.Success),
		Fail:          atomic.LoadUint64(&c.Stats.Fail),
		RateP50:       c.Stats.RateP50(),
		RateP90:       c.Stats.RateP90(),
		RateP99:       c.Stats.RateP99(),
		LastAggregate: rec.AggregateRate,
		LastCPUPct:    cpu,
	}

	// Non-blocking send; a slow UI just misses snapshots.
	select {
	case c.Updates <- u:
	default:
	}
}

func (c *Controller) settle(ctx context.Context) {
	if c.Cfg.Pause <= 0 {
		return
	}
	t := time.NewTimer(c.Cfg.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Records returns a copy of the full trial record log.
func (c *Controller) Records() []TrialRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TrialRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Samples returns a copy of the per-trial resource sample log.
func (c *Controller) Samples() []TrialSamples {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TrialSamples, len(c.samples))
	copy(out, c.samples)
	return out
}
