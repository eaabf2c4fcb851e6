package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beads-queue/orchestrator/internal/guardrail"
	"github.com/beads-queue/orchestrator/internal/types"
)

func newGuardrailCmd() *cobra.Command {
	var id, report string
	var currentTokens int
	var soft, hard int

	cmd := &cobra.Command{
		Use:   "enforce-guardrails",
		Short: "Validate a worker's compact report structure and token budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "enforce-guardrails", id, func() error {
				if soft == 0 {
					soft = theApp.cfg.TokenSoftLimit
				}
				if hard == 0 {
					hard = theApp.cfg.TokenHardLimit
				}

				check := guardrail.ValidateReport(report)
				state := guardrail.CheckBudget(currentTokens, soft, hard)
				action := guardrail.DecideAction(state, check.Violations)

				violationCodes := make([]string, len(check.Violations))
				for i, v := range check.Violations {
					violationCodes[i] = v.Code
				}

				if err := theApp.st.AppendEvent(cmd.Context(), id, types.EventGuardrail, map[string]any{
					"state": state, "action": action,
					"current_tokens": currentTokens, "estimated_tokens": check.EstimatedTokens,
					"violations": violationCodes,
				}); err != nil {
					return fmt.Errorf("enforce-guardrails: record event: %w", err)
				}

				if action == guardrail.ActionBlock {
					notes := fmt.Sprintf("guardrail:BLOCK state=%s violations=%v", state, violationCodes)
					if err := theApp.st.MarkBlocked(cmd.Context(), id, notes); err != nil {
						return fmt.Errorf("enforce-guardrails: mark blocked %s: %w", id, err)
					}
				}

				fmt.Printf("state=%s action=%s estimated_tokens=%d\n", state, action, check.EstimatedTokens)
				for _, v := range check.Violations {
					fmt.Printf("violation: %s (%s) %s\n", v.Code, v.Severity, v.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "item id")
	cmd.Flags().StringVar(&report, "report", "", "worker's compact report text")
	cmd.Flags().IntVar(&currentTokens, "current-tokens", 0, "current measured token usage")
	cmd.Flags().IntVar(&soft, "soft", 0, "soft budget threshold (defaults to configured token-soft-limit)")
	cmd.Flags().IntVar(&hard, "hard", 0, "hard budget threshold (defaults to configured token-hard-limit)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("report")
	return cmd
}
