package workload

import (
	"context"
	"time"
)

// BackendMode selects which processing backend variant a trial runs against.
type BackendMode string

const (
	ModePrimary   BackendMode = "primary"
	ModeSecondary BackendMode = "secondary"
)

// Modes lists the supported backend modes in sweep order.
var Modes = []BackendMode{ModePrimary, ModeSecondary}

// Spec identifies one stream source. The backend resolves the URI to a
// concrete media resource; the harness only needs a stable handle.
type Spec struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Request is one bounded stream invocation handed to a backend.
type Request struct {
	Spec       Spec
	StreamID   string
	Mode       BackendMode
	TargetRate float64 // units (frames) per second
	Duration   time.Duration
}

// Report is what a backend returns for a completed stream.
type Report struct {
	UnitsProcessed int
	EventsDetected int
}

// Runner is implemented by the processing backend that actually decodes and
// infers on a stream. The harness never looks inside it.
type Runner interface {
	ProcessStream(ctx context.Context, req Request) (Report, error)
}

// StreamResult is the outcome of one stream invocation. Produced exactly once
// per launched stream; ownership transfers to the harness on completion.
type StreamResult struct {
	StreamID     string        `json:"stream_id"`
	Mode         BackendMode   `json:"mode"`
	TargetRate   float64       `json:"target_rate"`
	AchievedRate float64       `json:"achieved_rate"`
	Units        int           `json:"units_processed"`
	Events       int           `json:"events_detected"`
	Elapsed      time.Duration `json:"elapsed"`
	Success      bool          `json:"success"`
	Err          string        `json:"error,omitempty"`
}
