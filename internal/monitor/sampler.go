package monitor

import (
	"context"
	"log/slog"
	"time"
)

// Sample is one utilization snapshot taken during a trial.
type Sample struct {
	Offset       time.Duration `json:"offset"`
	CPUPct       float64       `json:"cpu_pct"`
	MemPct       float64       `json:"mem_pct"`
	AccelUtilPct float64       `json:"accel_util_pct"`
	AccelMemPct  float64       `json:"accel_mem_pct"`
}

// Sampler polls utilization at a fixed cadence for the lifetime of a trial.
// It is advisory telemetry: each Start is an independent pass and a slow or
// absent consumer never blocks trial completion.
type Sampler struct {
	Host     HostProvider
	Accel    AcceleratorProvider // nil when no accelerator was found
	Interval time.Duration
}

const DefaultInterval = time.Second

func NewSampler(host HostProvider, accel AcceleratorProvider, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{Host: host, Accel: accel, Interval: interval}
}

// Start launches one sampling pass on its own goroutine. The returned channel
// is buffered for the whole pass (≈ duration/interval samples) and closes
// once the duration elapses or ctx is cancelled.
func (s *Sampler) Start(ctx context.Context, duration time.Duration) <-chan Sample {
	expected := int(duration/s.Interval) + 2
	out := make(chan Sample, expected)
	go s.run(ctx, duration, out)
	return out
}

func (s *Sampler) run(ctx context.Context, duration time.Duration, out chan<- Sample) {
	defer close(out)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			select {
			case out <- s.take(time.Since(start)):
			default:
				// Buffer full means nobody is consuming; drop the sample.
			}
		}
	}
}

func (s *Sampler) take(offset time.Duration) Sample {
	smp := Sample{Offset: offset}

	if v, err := s.Host.CPUPercent(); err == nil {
		smp.CPUPct = v
	} else {
		slog.Debug("cpu reading unavailable, recording zero", "err", err)
	}
	if v, err := s.Host.MemoryPercent(); err == nil {
		smp.MemPct = v
	} else {
		slog.Debug("memory reading unavailable, recording zero", "err", err)
	}

	if s.Accel != nil {
		if v, err := s.Accel.UtilizationPercent(); err == nil {
			smp.AccelUtilPct = v
		} else {
			slog.Debug("accelerator utilization unavailable, recording zero", "err", err)
		}
		if v, err := s.Accel.MemoryPercent(); err == nil {
			smp.AccelMemPct = v
		} else {
			slog.Debug("accelerator memory unavailable, recording zero", "err", err)
		}
	}
	return smp
}

// Collect drains one sampling pass into a slice.
func Collect(ch <-chan Sample) []Sample {
	var samples []Sample
	for smp := range ch {
		samples = append(samples, smp)
	}
	return samples
}
