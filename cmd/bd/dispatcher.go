package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newDispatcherCmd() *cobra.Command {
	var ownerSession string
	var daemon bool
	var intervalSeconds int64

	cmd := &cobra.Command{
		Use:   "dispatcher",
		Short: "Claim the next eligible item, or run as a continuous loop with --daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithAudit(cmd.Context(), "dispatcher", "", func() error {
				if intervalSeconds <= 0 {
					intervalSeconds = theApp.cfg.DispatcherIntervalSeconds
				}
				if !daemon {
					item, err := pickNext(cmd, ownerSession)
					if err != nil {
						return fmt.Errorf("dispatcher: %w", err)
					}
					if item == nil {
						fmt.Println("NOOP")
						return nil
					}
					fmt.Println(item.ID)
					return nil
				}

				logger := log.New(os.Stderr, "dispatcher: ", log.LstdFlags)
				g, ctx := errgroup.WithContext(cmd.Context())
				ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
				defer ticker.Stop()
				g.Go(func() error {
					for {
						select {
						case <-ctx.Done():
							return ctx.Err()
						case <-ticker.C:
							item, err := pickNext(cmd, ownerSession)
							if err != nil {
								logger.Printf("error: %v", err)
								continue
							}
							if item == nil {
								logger.Printf("NOOP")
								continue
							}
							logger.Printf("picked %s", item.ID)
						}
					}
				})
				return g.Wait()
			})
		},
	}

	cmd.Flags().StringVar(&ownerSession, "owner-session", "", "claiming session id")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "run as a continuous supervised loop instead of one shot")
	cmd.Flags().Int64Var(&intervalSeconds, "interval-seconds", 0, "loop interval in daemon mode (defaults to configured dispatcher-interval-seconds)")
	return cmd
}
