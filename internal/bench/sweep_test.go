package bench

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streambench/internal/workload"
)

// limitedRunner succeeds only for the first maxOK stream slots of a trial,
// which makes higher concurrency levels collapse deterministically.
type limitedRunner struct {
	maxOK int
}

func (r *limitedRunner) ProcessStream(ctx context.Context, req workload.Request) (workload.Report, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(req.StreamID, "stream_"))
	if err != nil {
		return workload.Report{}, err
	}
	if idx >= r.maxOK {
		return workload.Report{}, errors.New("backend saturated")
	}
	return workload.Report{UnitsProcessed: 10, EventsDetected: 1}, nil
}

func newTestController(backend workload.Runner) *Controller {
	cfg := Config{
		Duration:           10 * time.Millisecond,
		Pause:              0,
		EarlyStopThreshold: 0.5,
	}
	inv := &workload.Invoker{Backend: backend, Grace: 100 * time.Millisecond}
	return NewController(inv, nil, cfg, nil)
}

func TestSweepConfigErrors(t *testing.T) {
	ctrl := newTestController(&limitedRunner{maxOK: 100})
	ctx := context.Background()
	sp := specs("a")

	var cfgErr *ConfigError

	_, err := ctrl.Sweep(ctx, workload.ModePrimary, sp, 0, []float64{30})
	require.ErrorAs(t, err, &cfgErr)

	_, err = ctrl.Sweep(ctx, workload.ModePrimary, nil, 4, []float64{30})
	require.ErrorAs(t, err, &cfgErr)

	_, err = ctrl.Sweep(ctx, workload.ModePrimary, sp, 4, nil)
	require.ErrorAs(t, err, &cfgErr)
}

func TestSweepRunsFullRamp(t *testing.T) {
	ctrl := newTestController(&limitedRunner{maxOK: 100})

	recs, err := ctrl.Sweep(context.Background(), workload.ModePrimary, specs("a", "b"), 4, []float64{15, 30})

	require.NoError(t, err)
	require.Len(t, recs, 8) // 2 rates × concurrency 1..4

	// Inner loop is strictly increasing and restarts per target rate.
	wantConcurrency := []int{1, 2, 3, 4, 1, 2, 3, 4}
	wantRates := []float64{15, 15, 15, 15, 30, 30, 30, 30}
	for i, rec := range recs {
		assert.Equal(t, wantConcurrency[i], rec.Concurrency)
		assert.Equal(t, wantRates[i], rec.TargetRate)
	}
}

func TestSweepEarlyStopPerTargetRate(t *testing.T) {
	// 4 of 10 streams succeed once concurrency passes 4. The ramp must stop
	// at the first trial where successes drop below half, and the next
	// target rate must start over from concurrency 1.
	ctrl := newTestController(&limitedRunner{maxOK: 4})

	recs, err := ctrl.Sweep(context.Background(), workload.ModePrimary, specs("a"), 10, []float64{15, 30})

	require.NoError(t, err)

	// Per rate: concurrency 1..8 pass (4 >= n*0.5), concurrency 9 fails
	// (4 < 4.5) and breaks the inner loop.
	require.Len(t, recs, 18)
	assert.Equal(t, 9, recs[8].Concurrency)
	assert.Equal(t, 4, recs[8].SuccessfulCount)
	assert.Equal(t, float64(15), recs[8].TargetRate)

	assert.Equal(t, 1, recs[9].Concurrency)
	assert.Equal(t, float64(30), recs[9].TargetRate)
}

func TestSweepRecordsAllFailTrials(t *testing.T) {
	ctrl := newTestController(&limitedRunner{maxOK: 0})

	recs, err := ctrl.Sweep(context.Background(), workload.ModePrimary, specs("a"), 8, []float64{15, 30})

	require.NoError(t, err)
	// Concurrency 1 fails completely per rate, which both records the
	// zero trial and triggers the early stop.
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, 1, rec.Concurrency)
		assert.Equal(t, 0, rec.SuccessfulCount)
		assert.Equal(t, 0.0, rec.AggregateRate)
	}
}

func TestSweepAppendsToSharedLog(t *testing.T) {
	ctrl := newTestController(&limitedRunner{maxOK: 100})
	ctx := context.Background()

	_, err := ctrl.Sweep(ctx, workload.ModePrimary, specs("a"), 2, []float64{15})
	require.NoError(t, err)
	_, err = ctrl.Sweep(ctx, workload.ModeSecondary, specs("a"), 2, []float64{15})
	require.NoError(t, err)

	all := ctrl.Records()
	require.Len(t, all, 4)
	assert.Equal(t, workload.ModePrimary, all[0].Mode)
	assert.Equal(t, workload.ModeSecondary, all[2].Mode)
}

func TestSweepOnRecordHook(t *testing.T) {
	ctrl := newTestController(&limitedRunner{maxOK: 100})

	var persisted []TrialRecord
	ctrl.OnRecord = func(rec TrialRecord) {
		persisted = append(persisted, rec)
	}

	recs, err := ctrl.Sweep(context.Background(), workload.ModePrimary, specs("a"), 3, []float64{30})

	require.NoError(t, err)
	assert.Equal(t, len(recs), len(persisted))
}

func TestSweepSendsUpdates(t *testing.T) {
	updates := make(UpdateChan, 100)
	cfg := Config{Duration: 10 * time.Millisecond, EarlyStopThreshold: 0.5}
	inv := &workload.Invoker{Backend: &limitedRunner{maxOK: 100}, Grace: 100 * time.Millisecond}
	ctrl := NewController(inv, nil, cfg, updates)

	_, err := ctrl.Sweep(context.Background(), workload.ModePrimary, specs("a"), 3, []float64{30})
	require.NoError(t, err)

	close(updates)
	var got []Update
	for u := range updates {
		got = append(got, u)
	}
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[2].TrialsDone)
	assert.Equal(t, uint64(6), got[2].Streams) // 1+2+3 streams total
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	ctrl := newTestController(&limitedRunner{maxOK: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs, err := ctrl.Sweep(ctx, workload.ModePrimary, specs("a"), 4, []float64{30})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, recs)
}
