package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultGrace is how long past the trial duration a stream may keep draining
// before the invoker gives up on it.
const DefaultGrace = 5 * time.Second

// Invoker runs single stream invocations against a backend with a hard
// deadline. Backend failures never escape as errors; they come back as a
// StreamResult with Success=false so one stream can never abort a sibling.
type Invoker struct {
	Backend Runner
	Grace   time.Duration
}

func NewInvoker(backend Runner) *Invoker {
	return &Invoker{Backend: backend, Grace: DefaultGrace}
}

// Run executes one stream for req.Duration. It never blocks past
// req.Duration plus the grace period: when the backend overruns, the context
// is cancelled and a timeout result is returned instead.
func (inv *Invoker) Run(ctx context.Context, req Request) StreamResult {
	if req.StreamID == "" {
		req.StreamID = uuid.New().String()
	}
	res := StreamResult{
		StreamID:   req.StreamID,
		Mode:       req.Mode,
		TargetRate: req.TargetRate,
	}

	grace := inv.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	runCtx, cancel := context.WithTimeout(ctx, req.Duration+grace)
	defer cancel()

	type outcome struct {
		report Report
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("workload panic: %v", r)}
			}
		}()
		rep, err := inv.Backend.ProcessStream(runCtx, req)
		done <- outcome{report: rep, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		res.Elapsed = time.Since(start)
		res.Err = fmt.Sprintf("stream exceeded hard deadline of %s", req.Duration+grace)
		return res
	}

	res.Elapsed = time.Since(start)
	res.Units = out.report.UnitsProcessed
	res.Events = out.report.EventsDetected
	if sec := res.Elapsed.Seconds(); sec > 0 {
		res.AchievedRate = float64(res.Units) / sec
	}

	if out.err != nil {
		res.Err = out.err.Error()
		return res
	}
	res.Success = true
	return res
}
