package metrics

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/beads-queue/orchestrator/internal/auditlog"
)

func sampleRuns() []auditlog.Run {
	return []auditlog.Run{
		{Event: auditlog.EventRunStart, Command: "done"},
		{Event: auditlog.EventRunEnd, Command: "done", ExitCode: 0, DurationMS: 100},
		{Event: auditlog.EventRunEnd, Command: "done", ExitCode: 0, DurationMS: 200},
		{Event: auditlog.EventRunEnd, Command: "fail", ExitCode: 0, DurationMS: 300},
		{Event: auditlog.EventRunEnd, Command: "pick", ExitCode: 0, DurationMS: 10},
	}
}

func TestAggregateComputesSuccessRateAndLatency(t *testing.T) {
	report := Aggregate("test.jsonl", sampleRuns(), 3, 1)
	if report.TotalRuns != 4 {
		t.Fatalf("expected 4 run_end events, got %d", report.TotalRuns)
	}
	if report.Success != 2 || report.Failed != 1 {
		t.Fatalf("expected success=2 failed=1, got success=%d failed=%d", report.Success, report.Failed)
	}
	if report.SuccessRate == nil || *report.SuccessRate != 2.0/3.0 {
		t.Fatalf("unexpected success rate: %v", report.SuccessRate)
	}
	if report.LatencyP95MS == nil {
		t.Fatalf("expected latency p95 computed")
	}
	if report.RetryCount != 3 || report.StaleInProgress != 1 {
		t.Fatalf("expected passthrough retry/stale counts, got %+v", report)
	}
}

func TestAggregateEmptyRuns(t *testing.T) {
	report := Aggregate("empty.jsonl", nil, 0, 0)
	if report.SuccessRate != nil || report.LatencyP95MS != nil {
		t.Fatalf("expected nil rate/latency for empty input, got %+v", report)
	}
}

func TestAlertFiresOnFailureRate(t *testing.T) {
	report := Report{TerminalRuns: 10, Failed: 5}
	alerts := Alert(report, Thresholds{MaxFailureRate: 0.3})
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %v", alerts)
	}
}

func TestAlertNoFireUnderThreshold(t *testing.T) {
	report := Report{TerminalRuns: 10, Failed: 1}
	alerts := Alert(report, Thresholds{MaxFailureRate: 0.3})
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %v", alerts)
	}
}

func TestAlertFiresOnLatencyAndStale(t *testing.T) {
	p95 := 5000
	report := Report{LatencyP95MS: &p95, StaleInProgress: 7}
	alerts := Alert(report, Thresholds{MaxLatencyP95MS: 2000, MaxStaleInProgress: 3})
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %v", alerts)
	}
}

func TestInstrumentsRecordPublishesGauges(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(ctx)

	inst, err := NewInstruments(provider.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rate := 0.5
	p95 := 1200
	inst.Record(ctx, Report{SuccessRate: &rate, LatencyP95MS: &p95, RetryCount: 2, StaleInProgress: 1})

	var data metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &data); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(data.ScopeMetrics) == 0 || len(data.ScopeMetrics[0].Metrics) != 4 {
		t.Fatalf("expected 4 recorded instruments, got %+v", data.ScopeMetrics)
	}
}
