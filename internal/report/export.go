package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"streambench/internal/bench"
)

// ExportRecordsCSV writes the flat per-trial summary, one row per record.
func ExportRecordsCSV(records []bench.TrialRecord, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"mode", "target_rate", "concurrency", "successful_streams",
		"avg_rate_per_stream", "aggregate_rate", "total_events", "timestamp",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			string(rec.Mode),
			fmt.Sprintf("%.2f", rec.TargetRate),
			strconv.Itoa(rec.Concurrency),
			strconv.Itoa(rec.SuccessfulCount),
			fmt.Sprintf("%.2f", rec.AvgRatePerStream),
			fmt.Sprintf("%.2f", rec.AggregateRate),
			strconv.Itoa(rec.TotalEvents),
			rec.CreatedAt.Format("2006-01-02T15:04:05"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ExportSamplesCSV writes the resource sample time series, one row per
// sample, tagged with the trial it was taken during.
func ExportSamplesCSV(samples []bench.TrialSamples, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"mode", "target_rate", "concurrency", "offset_ms",
		"cpu_pct", "mem_pct", "accel_util_pct", "accel_mem_pct",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, ts := range samples {
		for _, smp := range ts.Samples {
			row := []string{
				string(ts.Trial.Mode),
				fmt.Sprintf("%.2f", ts.Trial.TargetRate),
				strconv.Itoa(ts.Trial.Concurrency),
				strconv.FormatInt(smp.Offset.Milliseconds(), 10),
				fmt.Sprintf("%.2f", smp.CPUPct),
				fmt.Sprintf("%.2f", smp.MemPct),
				fmt.Sprintf("%.2f", smp.AccelUtilPct),
				fmt.Sprintf("%.2f", smp.AccelMemPct),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}
