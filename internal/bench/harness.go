package bench

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streambench/internal/monitor"
	"streambench/internal/stats"
	"streambench/internal/workload"
)

// Harness fans one trial out across concurrent stream workers and reduces
// their results into a TrialRecord.
type Harness struct {
	Invoker  *workload.Invoker
	Duration time.Duration

	// Optional telemetry. The sampler runs fire-and-forget: its lifetime
	// never gates Execute returning.
	Sampler    *monitor.Sampler
	SampleSink func(monitor.Sample)
	Stats      *stats.Run
}

// Execute launches exactly cfg.Concurrency stream invocations in parallel,
// assigning specs round-robin, and blocks at the fan-in barrier until every
// worker has finished. Aggregation only looks at the collected set, so
// completion order does not matter.
func (h *Harness) Execute(ctx context.Context, cfg TrialConfig, specs []workload.Spec) (TrialRecord, error) {
	if cfg.Concurrency < 1 {
		return TrialRecord{}, &ConfigError{Reason: fmt.Sprintf("concurrency must be positive, got %d", cfg.Concurrency)}
	}
	if len(specs) == 0 {
		return TrialRecord{}, &ConfigError{Reason: "no stream specs"}
	}

	if h.Sampler != nil {
		samples := h.Sampler.Start(ctx, h.Duration)
		go func() {
			for smp := range samples {
				if h.SampleSink != nil {
					h.SampleSink(smp)
				}
			}
		}()
	}

	// Each worker writes only its own slot; no further synchronization
	// is needed for the fan-in.
	results := make([]workload.StreamResult, cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			req := workload.Request{
				Spec:       specs[slot%len(specs)],
				StreamID:   fmt.Sprintf("stream_%d", slot),
				Mode:       cfg.Mode,
				TargetRate: cfg.TargetRate,
				Duration:   h.Duration,
			}
			results[slot] = h.Invoker.Run(ctx, req)
		}(i)
	}
	wg.Wait()

	if h.Stats != nil {
		for _, res := range results {
			h.Stats.AddStream(res.Success, res.Units, res.Events, res.AchievedRate, res.Elapsed)
		}
	}

	return aggregate(cfg, results), nil
}

// aggregate is a commutative reduction over the result set: permuting the
// results never changes the record. A trial where everything failed still
// yields a record, just with zero rates.
func aggregate(cfg TrialConfig, results []workload.StreamResult) TrialRecord {
	rec := TrialRecord{
		Mode:        cfg.Mode,
		Concurrency: cfg.Concurrency,
		TargetRate:  cfg.TargetRate,
		CreatedAt:   time.Now(),
	}

	var sum float64
	for _, res := range results {
		if !res.Success {
			continue
		}
		rec.SuccessfulCount++
		sum += res.AchievedRate
		rec.TotalEvents += res.Events
	}
	if rec.SuccessfulCount > 0 {
		rec.AvgRatePerStream = sum / float64(rec.SuccessfulCount)
		rec.AggregateRate = rec.AvgRatePerStream * float64(rec.SuccessfulCount)
	}
	return rec
}
