package stats

import (
	"sync/atomic"
	"time"
)

// Run holds real-time aggregated metrics for one sweep run.
type Run struct {
	Streams uint64
	Success uint64
	Fail    uint64
	Units   uint64
	Events  uint64

	// Per-stream achieved rate (milli-units/sec) and elapsed time (ms)
	Rate    *SafeHistogram
	Elapsed *SafeHistogram
}

func NewRun() *Run {
	return &Run{
		Rate:    NewSafeHistogram(),
		Elapsed: NewSafeHistogram(),
	}
}

// AddStream records one finished stream invocation.
func (r *Run) AddStream(success bool, units, events int, rate float64, elapsed time.Duration) {
	atomic.AddUint64(&r.Streams, 1)
	if success {
		atomic.AddUint64(&r.Success, 1)
	} else {
		atomic.AddUint64(&r.Fail, 1)
	}
	atomic.AddUint64(&r.Units, uint64(units))
	atomic.AddUint64(&r.Events, uint64(events))

	r.Rate.RecordValue(int64(rate * 1000))
	r.Elapsed.RecordValue(elapsed.Milliseconds())
}

func (r *Run) SuccessRate() float64 {
	streams := atomic.LoadUint64(&r.Streams)
	if streams == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&r.Success)) / float64(streams) * 100
}

func (r *Run) RateP50() float64 { return float64(r.Rate.ValueAtQuantile(50)) / 1000.0 }
func (r *Run) RateP90() float64 { return float64(r.Rate.ValueAtQuantile(90)) / 1000.0 }
func (r *Run) RateP99() float64 { return float64(r.Rate.ValueAtQuantile(99)) / 1000.0 }

// ElapsedP99Ms returns the 99th percentile stream elapsed time in ms.
func (r *Run) ElapsedP99Ms() int64 { return r.Elapsed.ValueAtQuantile(99) }
