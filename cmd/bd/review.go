package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/beads-queue/orchestrator/internal/gate"
	"github.com/beads-queue/orchestrator/internal/router"
	"github.com/beads-queue/orchestrator/internal/uicheck"
)

// execRunner shells out to the UI smoke collaborator binary named in
// args[0], matching uicheck.Runner's injection-seam contract. Production
// wiring only; tests exercise uicheck.Validate directly with a fake.
func execRunner(ctx context.Context, args []string, timeout time.Duration) (int, string, string) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cctx.Err() != nil {
		return 124, stdout.String(), "timeout"
	}
	if err == nil {
		return 0, stdout.String(), stderr.String()
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), stdout.String(), stderr.String()
	}
	return 1, stdout.String(), err.Error()
}

func newReviewCmd() *cobra.Command {
	var id, successCriteria, report, uiURL string
	var uiContains []string
	var uiTimeout time.Duration
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "review-and-route",
		Short: "Evaluate a worker report against success criteria and route the resulting verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "review-and-route", id, func() error {
				item, err := theApp.st.Get(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("review-and-route: get item %s: %w", id, err)
				}

				result := gate.EvaluateResult(successCriteria, report, item.ReviewAttempts, maxRetries)

				if uiURL != "" {
					ui := uicheck.Validate(cmd.Context(), execRunner, uiURL, uiContains, uiTimeout, id)
					result = gate.ApplyUIGate(result, ui, item.ReviewAttempts, maxRetries)
				}

				status, err := router.ApplyReviewVerdict(cmd.Context(), theApp.st, id, result, maxRetries)
				if err != nil {
					return fmt.Errorf("review-and-route: %w", err)
				}
				fmt.Printf("%s verdict=%s\n", status, result.Verdict)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "item id")
	cmd.Flags().StringVar(&successCriteria, "success-criteria", "", "success criteria bullets")
	cmd.Flags().StringVar(&report, "report", "", "worker's compact report text")
	cmd.Flags().StringVar(&uiURL, "ui-url", "", "optional URL to smoke-check via the UI collaborator")
	cmd.Flags().StringArrayVar(&uiContains, "ui-contains", nil, "required term in the UI snapshot (repeatable)")
	cmd.Flags().DurationVar(&uiTimeout, "ui-timeout", 30*time.Second, "per-step timeout for the UI collaborator")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "retry budget before a RETRY verdict escalates to BLOCK")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("success-criteria")
	_ = cmd.MarkFlagRequired("report")
	return cmd
}
