// Package watchdog implements the periodic sweep that reclaims stuck work:
// FAILED items still under their attempt cap, and IN_PROGRESS items whose
// lease has expired. Ported from
// _examples/original_source/automation/orchestrator/watchdog.py and
// db_store.py's retry_eligible_items.
package watchdog

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Store is the subset of store.Store the watchdog sweep needs.
type Store interface {
	// RetryEligible resets every FAILED or lease-expired IN_PROGRESS item
	// that hasn't exhausted its attempt budget back to PENDING, stamping a
	// retry_not_before note per the backoff schedule, and returns the ids
	// it reset.
	RetryEligible(ctx context.Context, now int64) ([]string, error)
}

// Sweep runs one watchdog pass and returns the ids that were reset.
func Sweep(ctx context.Context, st Store, now int64) ([]string, error) {
	return st.RetryEligible(ctx, now)
}

// Run drives Sweep on a fixed interval until ctx is cancelled, logging
// every non-empty sweep. nowFn is injected so tests can run deterministic
// iterations instead of waiting on wall-clock time.
func Run(ctx context.Context, st Store, interval time.Duration, nowFn func() int64, logger *log.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ids, err := Sweep(ctx, st, nowFn())
			if err != nil {
				logger.Printf("watchdog: sweep error: %v", err)
				continue
			}
			if len(ids) == 0 {
				logger.Printf("watchdog: NOOP")
				continue
			}
			logger.Printf("watchdog: RESET %v", ids)
		}
	}
}

// RunGroup wires Run into an errgroup so a watchdog loop can be supervised
// alongside other long-running goroutines (the dispatcher loop, the
// metrics exporter) and have its error propagate through g.Wait().
func RunGroup(g *errgroup.Group, ctx context.Context, st Store, interval time.Duration, nowFn func() int64, logger *log.Logger) {
	g.Go(func() error {
		return Run(ctx, st, interval, nowFn, logger)
	})
}
