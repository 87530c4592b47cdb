package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHost struct {
	cpu, mem       float64
	cpuErr, memErr error
}

func (s stubHost) CPUPercent() (float64, error)    { return s.cpu, s.cpuErr }
func (s stubHost) MemoryPercent() (float64, error) { return s.mem, s.memErr }

type stubAccel struct {
	util, mem       float64
	utilErr, memErr error
}

func (s stubAccel) UtilizationPercent() (float64, error) { return s.util, s.utilErr }
func (s stubAccel) MemoryPercent() (float64, error)      { return s.mem, s.memErr }
func (s stubAccel) Device() string                       { return "stub accelerator" }

func TestSamplerProducesFiniteSeries(t *testing.T) {
	s := NewSampler(stubHost{cpu: 50, mem: 40}, nil, 20*time.Millisecond)

	samples := Collect(s.Start(context.Background(), 100*time.Millisecond))

	// ≈ duration/interval with slack for scheduling jitter.
	assert.GreaterOrEqual(t, len(samples), 3)
	assert.LessOrEqual(t, len(samples), 6)

	for i, smp := range samples {
		assert.GreaterOrEqual(t, smp.Offset, time.Duration(0))
		if i > 0 {
			assert.GreaterOrEqual(t, smp.Offset, samples[i-1].Offset)
		}
		assert.Equal(t, 50.0, smp.CPUPct)
		assert.Equal(t, 40.0, smp.MemPct)
	}
}

func TestSamplerRestartableByReinvocation(t *testing.T) {
	s := NewSampler(stubHost{cpu: 10}, nil, 10*time.Millisecond)

	first := Collect(s.Start(context.Background(), 40*time.Millisecond))
	second := Collect(s.Start(context.Background(), 40*time.Millisecond))

	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
}

func TestSamplerHostFailureDegradesToZero(t *testing.T) {
	host := stubHost{cpu: 99, cpuErr: errors.New("proc unavailable"), mem: 60}
	s := NewSampler(host, nil, 10*time.Millisecond)

	samples := Collect(s.Start(context.Background(), 35*time.Millisecond))

	require.NotEmpty(t, samples)
	for _, smp := range samples {
		assert.Equal(t, 0.0, smp.CPUPct, "failed metric must read zero")
		assert.Equal(t, 60.0, smp.MemPct, "other metrics keep working")
	}
}

func TestSamplerWithoutAccelerator(t *testing.T) {
	s := NewSampler(stubHost{cpu: 10, mem: 20}, nil, 10*time.Millisecond)

	samples := Collect(s.Start(context.Background(), 35*time.Millisecond))

	require.NotEmpty(t, samples)
	for _, smp := range samples {
		assert.Equal(t, 0.0, smp.AccelUtilPct)
		assert.Equal(t, 0.0, smp.AccelMemPct)
	}
}

func TestSamplerAcceleratorPartialFailure(t *testing.T) {
	accel := stubAccel{util: 80, utilErr: errors.New("nvml query failed"), mem: 45}
	s := NewSampler(stubHost{}, accel, 10*time.Millisecond)

	samples := Collect(s.Start(context.Background(), 35*time.Millisecond))

	require.NotEmpty(t, samples)
	for _, smp := range samples {
		assert.Equal(t, 0.0, smp.AccelUtilPct)
		assert.Equal(t, 45.0, smp.AccelMemPct)
	}
}

func TestSamplerStopsOnCancel(t *testing.T) {
	s := NewSampler(stubHost{}, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Start(ctx, 10*time.Second)
	cancel()

	done := make(chan struct{})
	go func() {
		Collect(ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop after context cancellation")
	}
}
