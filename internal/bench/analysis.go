package bench

import (
	"sort"

	"streambench/internal/workload"
)

// DefaultDegradationThreshold marks a material per-stream throughput drop:
// the next concurrency level retaining less than 80% of the previous level's
// average rate.
const DefaultDegradationThreshold = 0.8

// OptimalConfig summarizes the saturation analysis for one backend mode.
type OptimalConfig struct {
	MaxConcurrencyTested int         `json:"max_concurrency_tested"`
	BestTrial            TrialRecord `json:"best_trial"`
	DegradationOnset     int         `json:"degradation_onset_concurrency"`
	TrialCount           int         `json:"trial_count"`
}

// Analyze derives per-mode optimal configuration reports from a trial record
// log. Pure function of its input: the records are copied before sorting and
// calling it twice yields identical results. Modes with no records are simply
// absent from the returned map.
func Analyze(records []TrialRecord, threshold float64) map[workload.BackendMode]OptimalConfig {
	if threshold <= 0 {
		threshold = DefaultDegradationThreshold
	}

	byMode := make(map[workload.BackendMode][]TrialRecord)
	for _, rec := range records {
		byMode[rec.Mode] = append(byMode[rec.Mode], rec)
	}

	out := make(map[workload.BackendMode]OptimalConfig, len(byMode))
	for mode, recs := range byMode {
		sorted := make([]TrialRecord, len(recs))
		copy(sorted, recs)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].TargetRate != sorted[j].TargetRate {
				return sorted[i].TargetRate < sorted[j].TargetRate
			}
			return sorted[i].Concurrency < sorted[j].Concurrency
		})

		report := OptimalConfig{TrialCount: len(sorted)}
		best := 0
		for i, rec := range sorted {
			if rec.Concurrency > report.MaxConcurrencyTested {
				report.MaxConcurrencyTested = rec.Concurrency
			}
			// Strict > keeps the first occurrence on ties.
			if rec.AggregateRate > sorted[best].AggregateRate {
				best = i
			}
		}
		report.BestTrial = sorted[best]

		// First adjacent pair within the same target rate whose average
		// per-stream rate drops below threshold× the previous level marks
		// the onset. No drop found means the knee was never reached.
		report.DegradationOnset = report.MaxConcurrencyTested
		for i := 1; i < len(sorted); i++ {
			prev, curr := sorted[i-1], sorted[i]
			if curr.TargetRate != prev.TargetRate {
				continue
			}
			if curr.AvgRatePerStream < prev.AvgRatePerStream*threshold {
				report.DegradationOnset = prev.Concurrency
				break
			}
		}

		out[mode] = report
	}
	return out
}
