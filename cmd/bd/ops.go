package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/beads-queue/orchestrator/internal/auditlog"
	"github.com/beads-queue/orchestrator/internal/metrics"
	"github.com/beads-queue/orchestrator/internal/router"
	"github.com/beads-queue/orchestrator/internal/types"
	"github.com/beads-queue/orchestrator/internal/view"
)

func newOpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Operator actions: status, cancel, replan, retry, consistency, KPIs",
	}
	cmd.AddCommand(newOpsStatusCmd())
	cmd.AddCommand(newOpsWorkersCmd())
	cmd.AddCommand(newOpsCancelCmd())
	cmd.AddCommand(newOpsReplanCmd())
	cmd.AddCommand(newOpsRetryCmd())
	cmd.AddCommand(newOpsConsistencyCheckCmd())
	cmd.AddCommand(newOpsKPICmd())
	return cmd
}

func newOpsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize queue item counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "status", "", func() error {
				items, err := theApp.st.List(cmd.Context(), types.Filter{})
				if err != nil {
					return fmt.Errorf("ops status: %w", err)
				}
				counts := map[types.Status]int{}
				for _, it := range items {
					counts[it.Status]++
				}
				for _, s := range []types.Status{types.StatusPending, types.StatusInProgress, types.StatusBlocked, types.StatusFailed, types.StatusDone} {
					fmt.Printf("%-12s %d\n", s, counts[s])
				}
				return nil
			})
		},
	}
}

func newOpsWorkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Summarize active owner sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "workers", "", func() error {
				items, err := theApp.st.List(cmd.Context(), types.Filter{Status: types.StatusInProgress})
				if err != nil {
					return fmt.Errorf("ops workers: %w", err)
				}
				if len(items) == 0 {
					fmt.Println("No active workers")
					return nil
				}
				fmt.Print(renderQueueTable(items))
				return nil
			})
		},
	}
}

func newOpsCancelCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an active item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "cancel", id, func() error {
				status, err := router.Cancel(cmd.Context(), theApp.st, id)
				if err != nil {
					return fmt.Errorf("ops cancel: %w", err)
				}
				fmt.Println(status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "item id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newOpsReplanCmd() *cobra.Command {
	var id, notes string
	cmd := &cobra.Command{
		Use:   "replan",
		Short: "Append operator guidance and requeue an item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "replan", id, func() error {
				status, err := router.Replan(cmd.Context(), theApp.st, id, notes)
				if err != nil {
					return fmt.Errorf("ops replan: %w", err)
				}
				fmt.Println(status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "item id")
	cmd.Flags().StringVar(&notes, "notes", "", "replan guidance")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newOpsRetryCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Manually retry an eligible item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "retry", id, func() error {
				status, err := router.Retry(cmd.Context(), theApp.st, id, theApp.clk.NowEpoch(), theApp.cfg.RetryBackoffSeconds)
				if err != nil {
					return fmt.Errorf("ops retry: %w", err)
				}
				fmt.Println(status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "item id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newOpsConsistencyCheckCmd() *cobra.Command {
	var viewPath, storePath string
	cmd := &cobra.Command{
		Use:   "consistency-check",
		Short: "Compare the tabular view against the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "consistency-check", "", func() error {
				if viewPath == "" {
					viewPath = theApp.cfg.ViewPath
				}
				items, err := theApp.st.List(cmd.Context(), types.Filter{})
				if err != nil {
					return fmt.Errorf("ops consistency-check: list store: %w", err)
				}

				doc, err := os.ReadFile(viewPath)
				if err != nil {
					return fmt.Errorf("ops consistency-check: read view %s: %w", viewPath, err)
				}
				rows, _, _, err := view.ParseRows(string(doc))
				if err != nil {
					return fmt.Errorf("ops consistency-check: parse view: %w", err)
				}

				report := view.CheckConsistency(items, rows)
				printConsistencyReport(report)
				if !report.OK() {
					return newExitError(1, fmt.Errorf("ops consistency-check: view and store disagree"))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&viewPath, "view-path", "", "tabular view file (defaults to configured view-path)")
	cmd.Flags().StringVar(&storePath, "store-path", "", "unused override reserved for future multi-store comparisons")
	return cmd
}

func printConsistencyReport(report view.ConsistencyReport) {
	if report.OK() {
		fmt.Println("consistent")
		return
	}
	if len(report.MissingInView) > 0 {
		ids := append([]string(nil), report.MissingInView...)
		sort.Strings(ids)
		fmt.Println("missing_in_view:", strings.Join(ids, ","))
	}
	if len(report.MissingInStore) > 0 {
		ids := append([]string(nil), report.MissingInStore...)
		sort.Strings(ids)
		fmt.Println("missing_in_store:", strings.Join(ids, ","))
	}
	for _, m := range report.Mismatches {
		fmt.Printf("mismatch: id=%s field=%s store=%q view=%q\n", m.ID, m.Field, m.StoreValue, m.ViewValue)
	}
}

func newOpsKPICmd() *cobra.Command {
	var logPath string
	var maxFailureRate float64
	var maxLatencyP95MS, maxStaleInProgress, staleMinutes int
	var failOnAlert, emitMetrics bool

	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Aggregate success/failure/latency KPIs from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report metrics.Report
			var alerts []string
			err := runWithAudit(cmd.Context(), "kpi", "", func() error {
				if logPath == "" {
					logPath = theApp.cfg.LogPath
				}
				runs, err := auditlog.ReadAll(logPath)
				if err != nil {
					return fmt.Errorf("ops kpi: read audit log: %w", err)
				}

				retryCount := countRetries(runs)
				stale, err := countStaleInProgress(cmd, staleMinutes)
				if err != nil {
					return fmt.Errorf("ops kpi: %w", err)
				}

				report = metrics.Aggregate(logPath, runs, retryCount, stale)
				alerts = metrics.Alert(report, metrics.Thresholds{
					MaxFailureRate:     maxFailureRate,
					MaxLatencyP95MS:    maxLatencyP95MS,
					MaxStaleInProgress: maxStaleInProgress,
				})
				printKPIReport(report, alerts)
				if emitMetrics {
					if err := emitKPIInstruments(cmd.Context(), report); err != nil {
						return fmt.Errorf("ops kpi: emit metrics: %w", err)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if failOnAlert && len(alerts) > 0 {
				return newExitError(2, errors.New(strings.Join(alerts, "; ")))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log-path", "", "audit log JSONL path (defaults to configured log-path)")
	cmd.Flags().Float64Var(&maxFailureRate, "max-failure-rate", 0, "alert threshold, 0 disables")
	cmd.Flags().IntVar(&maxLatencyP95MS, "max-latency-p95-ms", 0, "alert threshold, 0 disables")
	cmd.Flags().IntVar(&maxStaleInProgress, "max-stale-in-progress", 0, "alert threshold, 0 disables")
	cmd.Flags().IntVar(&staleMinutes, "stale-minutes", 60, "IN_PROGRESS age counted as stale")
	cmd.Flags().BoolVar(&failOnAlert, "fail-on-alert", false, "exit 2 if any threshold is breached")
	cmd.Flags().BoolVar(&emitMetrics, "emit-metrics", false, "also publish the KPI gauges through an OTel meter, printed to stdout")
	return cmd
}

// emitKPIInstruments publishes report through a one-shot OTel meter
// provider backed by the stdout exporter, so operators piping --emit-metrics
// into a collector see the same gauges a long-running agent would push.
func emitKPIInstruments(ctx context.Context, report metrics.Report) error {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return fmt.Errorf("new stdout exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("beads-queue-engine")))
	if err != nil {
		return fmt.Errorf("new resource: %w", err)
	}
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	defer provider.Shutdown(ctx)

	inst, err := metrics.NewInstruments(provider.Meter("queue_engine.kpi"))
	if err != nil {
		return fmt.Errorf("new instruments: %w", err)
	}
	inst.Record(ctx, report)

	var data metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &data); err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	return exporter.Export(ctx, &data)
}

func countRetries(runs []auditlog.Run) int {
	n := 0
	for _, r := range runs {
		if r.Event == auditlog.EventRunEnd && r.Command == "retry" && r.ExitCode == 0 {
			n++
		}
	}
	return n
}

func countStaleInProgress(cmd *cobra.Command, staleMinutes int) (int, error) {
	items, err := theApp.st.List(cmd.Context(), types.Filter{Status: types.StatusInProgress})
	if err != nil {
		return 0, fmt.Errorf("list in-progress items: %w", err)
	}
	now := theApp.clk.NowEpoch()
	threshold := now - int64(staleMinutes)*60
	stale := 0
	for _, it := range items {
		if it.LeaseExpiresAt != 0 && it.LeaseExpiresAt <= threshold {
			stale++
		}
	}
	return stale, nil
}

func printKPIReport(report metrics.Report, alerts []string) {
	fmt.Printf("total_runs=%d terminal_runs=%d success=%d failed=%d\n", report.TotalRuns, report.TerminalRuns, report.Success, report.Failed)
	if report.SuccessRate != nil {
		fmt.Printf("success_rate=%.4f\n", *report.SuccessRate)
	}
	if report.LatencyAvgMS != nil {
		fmt.Printf("latency_avg_ms=%.1f\n", *report.LatencyAvgMS)
	}
	if report.LatencyP95MS != nil {
		fmt.Printf("latency_p95_ms=%d\n", *report.LatencyP95MS)
	}
	fmt.Printf("retry_count=%d stale_in_progress=%d\n", report.RetryCount, report.StaleInProgress)
	for _, a := range alerts {
		fmt.Println("alert:", a)
	}
}
