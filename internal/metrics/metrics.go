// Package metrics aggregates success rate, latency percentiles, and retry
// counts from the audit log and store, and evaluates them against
// operator-configured alert thresholds. Ported from
// _examples/original_source/automation/orchestrator/metrics_aggregate.py;
// the `--max-*`/`--fail-on-alert` threshold surface is supplemented per
// spec §6 (no Python original names thresholds explicitly).
package metrics

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/metric"

	"github.com/beads-queue/orchestrator/internal/auditlog"
)

// Report is the aggregated KPI snapshot, mirroring aggregate_from_logs's
// returned dict field-for-field plus the supplemented retry count.
type Report struct {
	Source        string
	TotalRuns      int
	TerminalRuns   int
	Success        int
	Failed         int
	SuccessRate    *float64
	LatencyAvgMS   *float64
	LatencyP95MS   *int
	RetryCount     int
	StaleInProgress int
}

func percentile(values []int, p float64) int {
	if len(values) == 0 {
		return 0
	}
	seq := append([]int(nil), values...)
	sort.Ints(seq)
	idx := int(float64(len(seq)-1) * p)
	return seq[idx]
}

// Aggregate computes a Report from runs, the records already read from the
// JSONL run log; source labels where they came from. retryCount and
// staleInProgress are supplied by the caller (ops kpi counts retries from
// the run log's run_end records and stale items from the store).
func Aggregate(source string, runs []auditlog.Run, retryCount, staleInProgress int) Report {
	var runEnd []auditlog.Run
	for _, r := range runs {
		if r.Event == auditlog.EventRunEnd {
			runEnd = append(runEnd, r)
		}
	}

	success, failed := 0, 0
	for _, r := range runEnd {
		if r.ExitCode != 0 {
			continue
		}
		switch r.Command {
		case "done":
			success++
		case "fail":
			failed++
		}
	}
	totalTerminal := success + failed

	var durations []int
	for _, r := range runEnd {
		durations = append(durations, int(r.DurationMS))
	}

	report := Report{
		Source: source, TotalRuns: len(runEnd), TerminalRuns: totalTerminal,
		Success: success, Failed: failed, RetryCount: retryCount, StaleInProgress: staleInProgress,
	}
	if totalTerminal > 0 {
		rate := float64(success) / float64(totalTerminal)
		report.SuccessRate = &rate
	}
	if len(durations) > 0 {
		sum := 0
		for _, d := range durations {
			sum += d
		}
		avg := float64(sum) / float64(len(durations))
		p95 := percentile(durations, 0.95)
		report.LatencyAvgMS = &avg
		report.LatencyP95MS = &p95
	}
	return report
}

// Thresholds are the operator-configured alert limits for ops kpi
// --fail-on-alert. A zero value for any limit means "no limit".
type Thresholds struct {
	MaxFailureRate       float64
	MaxLatencyP95MS      int
	MaxStaleInProgress   int
}

// Alert evaluates report against thresholds, returning one "alert <msg>"
// style message per breached threshold, in the order spec §6 documents
// them (failure rate, latency, stale in-progress).
func Alert(report Report, thresholds Thresholds) []string {
	var alerts []string
	if thresholds.MaxFailureRate > 0 && report.TerminalRuns > 0 {
		failureRate := float64(report.Failed) / float64(report.TerminalRuns)
		if failureRate > thresholds.MaxFailureRate {
			alerts = append(alerts, formatAlert("failure_rate", failureRate, thresholds.MaxFailureRate))
		}
	}
	if thresholds.MaxLatencyP95MS > 0 && report.LatencyP95MS != nil && *report.LatencyP95MS > thresholds.MaxLatencyP95MS {
		alerts = append(alerts, formatAlertInt("latency_p95_ms", *report.LatencyP95MS, thresholds.MaxLatencyP95MS))
	}
	if thresholds.MaxStaleInProgress > 0 && report.StaleInProgress > thresholds.MaxStaleInProgress {
		alerts = append(alerts, formatAlertInt("stale_in_progress", report.StaleInProgress, thresholds.MaxStaleInProgress))
	}
	return alerts
}

// Instruments bundles the otel instruments the KPI command records on
// each run (the ops kpi --emit-metrics path described in SPEC_FULL.md §6).
type Instruments struct {
	SuccessRate     metric.Float64Gauge
	LatencyP95      metric.Int64Gauge
	RetryCount      metric.Int64Gauge
	StaleInProgress metric.Int64Gauge
}

// NewInstruments registers the KPI gauges against meter.
func NewInstruments(meter metric.Meter) (Instruments, error) {
	var inst Instruments
	var err error
	if inst.SuccessRate, err = meter.Float64Gauge("queue_engine.kpi.success_rate"); err != nil {
		return inst, err
	}
	if inst.LatencyP95, err = meter.Int64Gauge("queue_engine.kpi.latency_p95_ms"); err != nil {
		return inst, err
	}
	if inst.RetryCount, err = meter.Int64Gauge("queue_engine.kpi.retry_count"); err != nil {
		return inst, err
	}
	if inst.StaleInProgress, err = meter.Int64Gauge("queue_engine.kpi.stale_in_progress"); err != nil {
		return inst, err
	}
	return inst, nil
}

// Record publishes report's values through inst.
func (inst Instruments) Record(ctx context.Context, report Report) {
	if report.SuccessRate != nil {
		inst.SuccessRate.Record(ctx, *report.SuccessRate)
	}
	if report.LatencyP95MS != nil {
		inst.LatencyP95.Record(ctx, int64(*report.LatencyP95MS))
	}
	inst.RetryCount.Record(ctx, int64(report.RetryCount))
	inst.StaleInProgress.Record(ctx, int64(report.StaleInProgress))
}
