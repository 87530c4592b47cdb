package bench

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streambench/internal/stats"
	"streambench/internal/workload"
)

// instantRunner succeeds immediately; failSpecs names specs that always fail.
type instantRunner struct {
	report    workload.Report
	failSpecs map[string]bool

	mu       sync.Mutex
	specSeen map[string]int
}

func (r *instantRunner) ProcessStream(ctx context.Context, req workload.Request) (workload.Report, error) {
	r.mu.Lock()
	if r.specSeen == nil {
		r.specSeen = make(map[string]int)
	}
	r.specSeen[req.Spec.Name]++
	r.mu.Unlock()

	if r.failSpecs[req.Spec.Name] {
		return workload.Report{}, errors.New("simulated failure")
	}
	return r.report, nil
}

func newTestHarness(backend workload.Runner) *Harness {
	return &Harness{
		Invoker:  &workload.Invoker{Backend: backend, Grace: 100 * time.Millisecond},
		Duration: 10 * time.Millisecond,
		Stats:    stats.NewRun(),
	}
}

func specs(names ...string) []workload.Spec {
	out := make([]workload.Spec, 0, len(names))
	for _, n := range names {
		out = append(out, workload.Spec{Name: n, URI: "sim://steady"})
	}
	return out
}

func TestExecuteRejectsZeroConcurrency(t *testing.T) {
	h := newTestHarness(&instantRunner{})

	_, err := h.Execute(context.Background(), TrialConfig{Mode: workload.ModePrimary, TargetRate: 30}, specs("a"))

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "concurrency")
}

func TestExecuteRejectsEmptySpecs(t *testing.T) {
	h := newTestHarness(&instantRunner{})

	_, err := h.Execute(context.Background(), TrialConfig{Mode: workload.ModePrimary, TargetRate: 30, Concurrency: 2}, nil)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestExecuteCollectsEveryStream(t *testing.T) {
	backend := &instantRunner{report: workload.Report{UnitsProcessed: 5, EventsDetected: 1}}
	h := newTestHarness(backend)

	cfg := TrialConfig{Mode: workload.ModePrimary, TargetRate: 30, Concurrency: 5}
	rec, err := h.Execute(context.Background(), cfg, specs("a", "b"))

	require.NoError(t, err)
	assert.Equal(t, 5, rec.SuccessfulCount)
	assert.LessOrEqual(t, rec.SuccessfulCount, cfg.Concurrency)
	assert.Equal(t, 5, rec.TotalEvents)
	assert.Greater(t, rec.AggregateRate, 0.0)
	assert.Equal(t, uint64(5), h.Stats.Streams)
}

func TestExecuteRoundRobinSpecAssignment(t *testing.T) {
	backend := &instantRunner{report: workload.Report{UnitsProcessed: 1}}
	h := newTestHarness(backend)

	cfg := TrialConfig{Mode: workload.ModePrimary, TargetRate: 30, Concurrency: 4}
	_, err := h.Execute(context.Background(), cfg, specs("a", "b"))

	require.NoError(t, err)
	assert.Equal(t, 2, backend.specSeen["a"])
	assert.Equal(t, 2, backend.specSeen["b"])
}

func TestExecutePartialFailureIsNotAnError(t *testing.T) {
	backend := &instantRunner{
		report:    workload.Report{UnitsProcessed: 5, EventsDetected: 2},
		failSpecs: map[string]bool{"bad": true},
	}
	h := newTestHarness(backend)

	cfg := TrialConfig{Mode: workload.ModeSecondary, TargetRate: 15, Concurrency: 4}
	rec, err := h.Execute(context.Background(), cfg, specs("good", "bad"))

	require.NoError(t, err)
	assert.Equal(t, 2, rec.SuccessfulCount)
	assert.Equal(t, 4, rec.TotalEvents)
}

func TestExecuteAllStreamsFail(t *testing.T) {
	backend := &instantRunner{failSpecs: map[string]bool{"bad": true}}
	h := newTestHarness(backend)

	cfg := TrialConfig{Mode: workload.ModePrimary, TargetRate: 30, Concurrency: 3}
	rec, err := h.Execute(context.Background(), cfg, specs("bad"))

	require.NoError(t, err)
	assert.Equal(t, 0, rec.SuccessfulCount)
	assert.Equal(t, 0.0, rec.AggregateRate)
	assert.Equal(t, 0.0, rec.AvgRatePerStream)
}

func results(rates []float64, events []int) []workload.StreamResult {
	out := make([]workload.StreamResult, len(rates))
	for i, r := range rates {
		out[i] = workload.StreamResult{
			StreamID:     "stream_" + strconv.Itoa(i),
			AchievedRate: r,
			Events:       events[i],
			Success:      true,
		}
	}
	return out
}

func TestAggregateFourStreams(t *testing.T) {
	cfg := TrialConfig{Mode: workload.ModePrimary, TargetRate: 30, Concurrency: 4}
	res := results([]float64{10, 12, 9, 11}, []int{1, 2, 3, 4})

	rec := aggregate(cfg, res)

	assert.Equal(t, 4, rec.SuccessfulCount)
	assert.InDelta(t, 10.5, rec.AvgRatePerStream, 1e-9)
	assert.InDelta(t, 42.0, rec.AggregateRate, 1e-9)
	assert.Equal(t, 10, rec.TotalEvents)
}

func TestAggregateOrderIndependent(t *testing.T) {
	cfg := TrialConfig{Mode: workload.ModePrimary, TargetRate: 30, Concurrency: 6}
	res := results([]float64{10, 12, 9, 11, 28, 3}, []int{1, 2, 3, 4, 5, 6})
	res[5].Success = false // one failure mixed in

	base := aggregate(cfg, res)

	for i := 0; i < 20; i++ {
		shuffled := make([]workload.StreamResult, len(res))
		copy(shuffled, res)
		rand.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := aggregate(cfg, shuffled)
		assert.Equal(t, base.SuccessfulCount, got.SuccessfulCount)
		assert.InDelta(t, base.AvgRatePerStream, got.AvgRatePerStream, 1e-9)
		assert.InDelta(t, base.AggregateRate, got.AggregateRate, 1e-9)
		assert.Equal(t, base.TotalEvents, got.TotalEvents)
	}
}

func TestSuccessfulCountNeverExceedsConcurrency(t *testing.T) {
	for _, concurrency := range []int{1, 3, 7, 16} {
		backend := &instantRunner{report: workload.Report{UnitsProcessed: 2}}
		h := newTestHarness(backend)

		cfg := TrialConfig{Mode: workload.ModePrimary, TargetRate: 15, Concurrency: concurrency}
		rec, err := h.Execute(context.Background(), cfg, specs("a", "b", "c"))

		require.NoError(t, err)
		assert.LessOrEqual(t, rec.SuccessfulCount, concurrency,
			"concurrency %d produced %d successes", concurrency, rec.SuccessfulCount)
		assert.GreaterOrEqual(t, rec.AggregateRate, 0.0)
	}
}

func TestExecuteStreamIDsAreSlotted(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	backend := runnerFunc(func(ctx context.Context, req workload.Request) (workload.Report, error) {
		mu.Lock()
		seen[req.StreamID] = true
		mu.Unlock()
		return workload.Report{UnitsProcessed: 1}, nil
	})
	h := newTestHarness(backend)

	cfg := TrialConfig{Mode: workload.ModePrimary, TargetRate: 30, Concurrency: 3}
	_, err := h.Execute(context.Background(), cfg, specs("a"))

	require.NoError(t, err)
	for id := range seen {
		assert.True(t, strings.HasPrefix(id, "stream_"))
	}
	assert.Len(t, seen, 3)
}

type runnerFunc func(ctx context.Context, req workload.Request) (workload.Report, error)

func (f runnerFunc) ProcessStream(ctx context.Context, req workload.Request) (workload.Report, error) {
	return f(ctx, req)
}
