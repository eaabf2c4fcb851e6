package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/beads-queue/orchestrator/internal/duetime"
	"github.com/beads-queue/orchestrator/internal/idgen"
	"github.com/beads-queue/orchestrator/internal/store"
	"github.com/beads-queue/orchestrator/internal/types"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and mutate the work queue",
	}
	cmd.AddCommand(newQueueAddCmd())
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueuePickCmd())
	cmd.AddCommand(newQueueDoneCmd())
	cmd.AddCommand(newQueueFailCmd())
	return cmd
}

func newQueueAddCmd() *cobra.Command {
	var id, priority, task, successCriteria, due, notes, idempotencyKey string
	var maxAttempts int
	var interactive bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new item to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				if err := promptMissingAddFields(&priority, &task, &successCriteria, &due, &notes); err != nil {
					return fmt.Errorf("queue add: %w", err)
				}
			}
			if task == "" || successCriteria == "" {
				return fmt.Errorf("queue add: --task and --success-criteria are required (or pass --interactive)")
			}
			return runWithAudit(cmd.Context(), "add", id, func() error {
				now := theApp.clk.NowEpoch()
				if id == "" {
					id = idgen.NewItemID("ITEM", task, timeFromEpoch(now), int(theApp.clk.NextEventID()))
				}
				item := types.Item{
					ID:              id,
					Status:          types.StatusPending,
					Priority:        types.Priority(priority),
					Task:            task,
					SuccessCriteria: successCriteria,
					DueAtKST:        duetime.Parse(due, timeFromEpoch(now)),
					Notes:           notes,
					MaxAttempts:     maxAttempts,
					IdempotencyKey:  idempotencyKey,
					CreatedAtKST:    theApp.clk.NowWall(),
					UpdatedAtKST:    theApp.clk.NowWall(),
					CreatedAtEpoch:  now,
					UpdatedAtEpoch:  now,
				}
				if err := item.Validate(); err != nil {
					return fmt.Errorf("queue add: %w", err)
				}
				if err := theApp.st.Add(cmd.Context(), item); err != nil {
					return fmt.Errorf("queue add: %w", err)
				}
				fmt.Println(id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "item id (auto-generated when omitted)")
	cmd.Flags().StringVar(&priority, "priority", string(types.PriorityP2), "P0, P1, or P2")
	cmd.Flags().StringVar(&task, "task", "", "task description")
	cmd.Flags().StringVar(&successCriteria, "success-criteria", "", "bullet/semicolon separated success criteria")
	cmd.Flags().StringVar(&due, "due", "", "due date, natural language or literal")
	cmd.Flags().StringVar(&notes, "notes", "", "freeform notes")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "dedup key (optional)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", types.DefaultMaxAttempts, "max retry attempts")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "prompt for any missing fields instead of requiring flags")

	return cmd
}

// promptMissingAddFields fills in whichever of the given fields are still
// empty after flag parsing, via an interactive terminal form. Priority
// offers a select; the rest are free text inputs.
func promptMissingAddFields(priority, task, successCriteria, due, notes *string) error {
	var fields []huh.Field
	if *task == "" {
		fields = append(fields, huh.NewText().Title("Task").Value(task))
	}
	if *successCriteria == "" {
		fields = append(fields, huh.NewText().Title("Success criteria").Value(successCriteria))
	}
	if *priority == "" {
		fields = append(fields, huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("P0 - urgent", string(types.PriorityP0)),
				huh.NewOption("P1 - normal", string(types.PriorityP1)),
				huh.NewOption("P2 - low", string(types.PriorityP2)),
			).
			Value(priority))
	}
	if *due == "" {
		fields = append(fields, huh.NewInput().Title("Due (optional, natural language)").Value(due))
	}
	if *notes == "" {
		fields = append(fields, huh.NewText().Title("Notes (optional)").Value(notes))
	}
	if len(fields) == 0 {
		return nil
	}
	form := huh.NewForm(huh.NewGroup(fields...))
	return form.Run()
}

func newQueueListCmd() *cobra.Command {
	var status, priority string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "list", "", func() error {
				items, err := theApp.st.List(cmd.Context(), types.Filter{
					Status:   types.Status(status),
					Priority: types.Priority(priority),
				})
				if err != nil {
					return fmt.Errorf("queue list: %w", err)
				}
				fmt.Print(renderQueueTable(items))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	return cmd
}

func newQueuePickCmd() *cobra.Command {
	var ownerSession string
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Claim the next eligible item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "pick", "", func() error {
				item, err := pickNext(cmd, ownerSession)
				if err != nil {
					return err
				}
				if item == nil {
					fmt.Println("No pending tasks")
					return nil
				}
				fmt.Println(item.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ownerSession, "owner-session", "", "claiming session id")
	return cmd
}

func newQueueDoneCmd() *cobra.Command {
	var id, notes string
	cmd := &cobra.Command{
		Use:   "done",
		Short: "Mark an item done",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "done", id, func() error {
				if err := theApp.st.MarkDone(cmd.Context(), id, notes); err != nil {
					return fmt.Errorf("queue done %s: %w", id, err)
				}
				if err := theApp.st.AppendEvent(cmd.Context(), id, types.EventDone, map[string]any{"notes": notes}); err != nil {
					return fmt.Errorf("queue done %s: record event: %w", id, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "item id")
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newQueueFailCmd() *cobra.Command {
	var id, notes string
	cmd := &cobra.Command{
		Use:   "fail",
		Short: "Mark an item failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "fail", id, func() error {
				if err := theApp.st.MarkFailed(cmd.Context(), id, notes); err != nil {
					return fmt.Errorf("queue fail %s: %w", id, err)
				}
				if err := theApp.st.AppendEvent(cmd.Context(), id, types.EventFailed, map[string]any{"notes": notes}); err != nil {
					return fmt.Errorf("queue fail %s: record event: %w", id, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "item id")
	cmd.Flags().StringVar(&notes, "notes", "", "failure notes")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func pickNext(cmd *cobra.Command, ownerSession string) (*types.Item, error) {
	item, err := theApp.st.PickNext(cmd.Context(), ownerSession, theApp.clk.NowEpoch(), theApp.cfg.LeaseTTLSeconds)
	if err != nil {
		if errors.Is(err, store.ErrNoWork) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue pick: %w", err)
	}
	return &item, nil
}
