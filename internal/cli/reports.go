package cli

import (
	"fmt"

	"streambench/internal/bench"
	"streambench/internal/report"
	"streambench/internal/workload"
)

func writeReports(s *Session, records []bench.TrialRecord, analysis map[workload.BackendMode]bench.OptimalConfig) error {
	prefix := s.Opts.OutPrefix
	fmt.Printf("\n💾 Writing reports with prefix: %s\n", prefix)

	rep := report.New(report.CollectSystemInfo(s.Accel), records, analysis)
	if err := rep.WriteJSON(prefix + ".json"); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	if err := report.ExportRecordsCSV(records, prefix+".csv"); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	if samples := s.Ctrl.Samples(); len(samples) > 0 {
		if err := report.ExportSamplesCSV(samples, prefix+"_samples.csv"); err != nil {
			return fmt.Errorf("write samples csv: %w", err)
		}
	}

	fmt.Printf("✅ Reports saved to %s.{json,csv}\n", prefix)
	return nil
}
