package bench

import (
	"time"

	"streambench/internal/monitor"
	"streambench/internal/workload"
)

// TrialConfig identifies one harness invocation. Immutable once created.
type TrialConfig struct {
	Mode        workload.BackendMode `json:"mode"`
	TargetRate  float64              `json:"target_rate"`
	Concurrency int                  `json:"concurrency"`
}

// TrialRecord is the aggregate outcome of one trial. Appended to the sweep's
// record log and never mutated afterwards.
type TrialRecord struct {
	Mode             workload.BackendMode `json:"mode"`
	Concurrency      int                  `json:"concurrency"`
	TargetRate       float64              `json:"target_rate"`
	SuccessfulCount  int                  `json:"successful_streams"`
	AvgRatePerStream float64              `json:"avg_rate_per_stream"`
	AggregateRate    float64              `json:"aggregate_rate"`
	TotalEvents      int                  `json:"total_events"`
	CreatedAt        time.Time            `json:"created_at"`
}

// TrialSamples pairs a trial with the resource samples taken alongside it.
type TrialSamples struct {
	Trial   TrialConfig      `json:"trial"`
	Samples []monitor.Sample `json:"samples"`
}

// ConfigError reports an invalid trial or sweep configuration. It is the only
// error class that propagates out of Execute and Sweep.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}
