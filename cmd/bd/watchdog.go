package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/beads-queue/orchestrator/internal/watchdog"
)

func newWatchdogCmd() *cobra.Command {
	var staleMinutes int
	var daemon bool
	var intervalSeconds int64

	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Reclaim FAILED-under-cap and lease-expired IN_PROGRESS items, or run continuously with --daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "watchdog", "", func() error {
				if intervalSeconds <= 0 {
					intervalSeconds = theApp.cfg.WatchdogIntervalSeconds
				}
				if !daemon {
					ids, err := watchdog.Sweep(cmd.Context(), theApp.st, theApp.clk.NowEpoch())
					if err != nil {
						return fmt.Errorf("watchdog: %w", err)
					}
					if len(ids) == 0 {
						fmt.Println("NOOP")
						return nil
					}
					fmt.Println("RESET " + strings.Join(ids, ","))
					return nil
				}

				logger := log.New(os.Stderr, "", 0)
				g, ctx := errgroup.WithContext(cmd.Context())
				watchdog.RunGroup(g, ctx, theApp.st, time.Duration(intervalSeconds)*time.Second, theApp.clk.NowEpoch, logger)
				return g.Wait()
			})
		},
	}

	cmd.Flags().IntVar(&staleMinutes, "stale-minutes", 60, "not used: IN_PROGRESS items are reset by lease expiry only, not by age")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "run as a continuous supervised loop instead of one shot")
	cmd.Flags().Int64Var(&intervalSeconds, "interval-seconds", 0, "loop interval in daemon mode (defaults to configured watchdog-interval-seconds)")
	return cmd
}
