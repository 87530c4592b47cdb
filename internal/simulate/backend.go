package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"streambench/internal/workload"
)

// Profile shapes how a simulated stream behaves under load.
type Profile string

const (
	// ProfileSteady tracks the target rate as long as capacity allows.
	ProfileSteady Profile = "steady"
	// ProfileJittery wobbles around the target rate.
	ProfileJittery Profile = "jittery"
	// ProfileDegrading loses throughput as more streams share the backend.
	ProfileDegrading Profile = "degrading"
	// ProfileFlaky fails outright some of the time.
	ProfileFlaky Profile = "flaky"
)

// Backend is an in-process stand-in for a real media/inference backend. Each
// mode has a fixed aggregate capacity; once the active streams oversubscribe
// it, per-stream throughput collapses proportionally, which gives sweeps a
// real saturation knee to find.
type Backend struct {
	Capacity       map[workload.BackendMode]float64 // aggregate units/sec
	DetectionEvery int                              // one event per N processed units
	FlakyFailRate  float64                          // failure probability for flaky specs

	activePrimary   int64
	activeSecondary int64
}

func NewBackend() *Backend {
	return &Backend{
		Capacity: map[workload.BackendMode]float64{
			workload.ModePrimary:   120,
			workload.ModeSecondary: 480,
		},
		DetectionEvery: 10,
		FlakyFailRate:  0.2,
	}
}

// DefaultSpecs returns one spec per profile, mirroring a small camera fleet.
func DefaultSpecs() []workload.Spec {
	return []workload.Spec{
		{Name: "cam-steady", URI: "sim://steady"},
		{Name: "cam-jittery", URI: "sim://jittery"},
		{Name: "cam-degrading", URI: "sim://degrading"},
		{Name: "cam-flaky", URI: "sim://flaky"},
	}
}

// ProfileFor maps a spec to its simulated behavior. Unknown URIs behave as
// steady streams.
func ProfileFor(spec workload.Spec) Profile {
	p := Profile(strings.TrimPrefix(spec.URI, "sim://"))
	switch p {
	case ProfileSteady, ProfileJittery, ProfileDegrading, ProfileFlaky:
		return p
	}
	return ProfileSteady
}

func (b *Backend) counter(mode workload.BackendMode) *int64 {
	if mode == workload.ModeSecondary {
		return &b.activeSecondary
	}
	return &b.activePrimary
}

// Active reports how many streams are currently running in a mode.
func (b *Backend) Active(mode workload.BackendMode) int64 {
	return atomic.LoadInt64(b.counter(mode))
}

// ProcessStream processes simulated units at the effective rate until the
// requested duration elapses or the context is cancelled.
func (b *Backend) ProcessStream(ctx context.Context, req workload.Request) (workload.Report, error) {
	if req.TargetRate <= 0 {
		return workload.Report{}, fmt.Errorf("target rate must be positive, got %g", req.TargetRate)
	}

	counter := b.counter(req.Mode)
	active := atomic.AddInt64(counter, 1)
	defer atomic.AddInt64(counter, -1)

	profile := ProfileFor(req.Spec)
	if profile == ProfileFlaky && rand.Float64() < b.FlakyFailRate {
		return workload.Report{}, fmt.Errorf("simulated backend failure on %s", req.Spec.Name)
	}

	rate := b.effectiveRate(req, profile, active)
	interval := time.Duration(float64(time.Second) / rate)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(req.Duration)
	defer deadline.Stop()

	units, events := 0, 0
	for {
		select {
		case <-ctx.Done():
			return workload.Report{UnitsProcessed: units, EventsDetected: events}, ctx.Err()
		case <-deadline.C:
			return workload.Report{UnitsProcessed: units, EventsDetected: events}, nil
		case <-ticker.C:
			units++
			if b.DetectionEvery > 0 && units%b.DetectionEvery == 0 {
				events++
			}
		}
	}
}

func (b *Backend) effectiveRate(req workload.Request, profile Profile, active int64) float64 {
	rate := req.TargetRate

	// Oversubscribed backends share capacity evenly.
	if capacity := b.Capacity[req.Mode]; capacity > 0 && float64(active)*req.TargetRate > capacity {
		rate = capacity / float64(active)
	}

	switch profile {
	case ProfileJittery:
		rate *= 0.8 + 0.4*rand.Float64()
	case ProfileDegrading:
		rate /= 1 + 0.05*float64(active)
	}

	if rate < 1 {
		rate = 1
	}
	return rate
}
