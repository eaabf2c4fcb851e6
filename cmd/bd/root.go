// Package main is the bd CLI: one subcommand group per file, following
// the teacher's cmd/bd convention. Grounded on the teacher's root.go for
// the persistent-flag/PersistentPreRunE wiring shape; the daemon/RPC
// surface that shape normally serves has no equivalent here, so
// PersistentPreRunE instead builds the queue engine's store, clock, and
// logger once per invocation and hands them down via a package-level
// *app (configuration is immutable for the process per spec §5).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beads-queue/orchestrator/internal/auditlog"
	"github.com/beads-queue/orchestrator/internal/clock"
	"github.com/beads-queue/orchestrator/internal/config"
	"github.com/beads-queue/orchestrator/internal/store"
	"github.com/beads-queue/orchestrator/internal/store/dolt"
	"github.com/beads-queue/orchestrator/internal/store/factory"
)

// exitError lets a subcommand request a specific process exit code (spec
// §6: 0 success, 1 operational error, 2 alert when explicitly requested)
// while still flowing through cobra's RunE error-return plumbing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// app bundles the resources every subcommand needs. It is built once in
// PersistentPreRunE and torn down in PersistentPostRunE.
type app struct {
	cfg   config.Config
	clk   clock.Clock
	st    store.Store
	log   *zap.SugaredLogger
	trace string
}

var (
	flagConfigPath string
	flagDebug      bool
	theApp         *app
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bd",
		Short:         "Persistent task orchestrator queue engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config.toml (defaults to <base-dir>/config.toml)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose zap logging to stderr")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err := buildLogger(flagDebug)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}

		clk := clock.NewSystem(cfg.TimezoneOffsetHours, 0)

		st, err := factory.New(cmd.Context(), cfg.StoreBackend, factory.Options{
			SQLitePath: cfg.StorePath,
			Dolt:       dolt.Config{Path: cfg.StorePath},
		}, clk)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		theApp = &app{cfg: cfg, clk: clk, st: st, log: logger, trace: auditlog.NewTraceID()}
		return nil
	}

	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if theApp == nil {
			return nil
		}
		_ = theApp.log.Sync()
		return theApp.st.Close()
	}

	root.AddCommand(newQueueCmd())
	root.AddCommand(newOpsCmd())
	root.AddCommand(newDispatcherCmd())
	root.AddCommand(newWatchdogCmd())
	root.AddCommand(newReviewCmd())
	root.AddCommand(newGuardrailCmd())

	return root
}

func buildLogger(debug bool) (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		l, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// runWithAudit wraps a subcommand body with the run_start/run_end JSONL
// events spec §6 requires: command name, item id (if any), exit status,
// duration, and error text on failure. It always returns a non-nil error
// on failure so cobra's RunE contract surfaces a non-zero exit via main.
func runWithAudit(ctx context.Context, command, itemID string, body func() error) error {
	start := time.Now()
	_ = auditlog.Append(theApp.cfg.LogPath, auditlog.Run{
		TSWall:    theApp.clk.NowWall(),
		TSEpochMS: start.UnixMilli(),
		Event:     auditlog.EventRunStart,
		TraceID:   theApp.trace,
		Command:   command,
		ItemID:    itemID,
	})

	err := body()

	status := "ok"
	exitCode := 0
	errText := ""
	if err != nil {
		status = "error"
		exitCode = 1
		errText = err.Error()
	}

	_ = auditlog.Append(theApp.cfg.LogPath, auditlog.Run{
		TSWall:     theApp.clk.NowWall(),
		TSEpochMS:  time.Now().UnixMilli(),
		Event:      auditlog.EventRunEnd,
		TraceID:    theApp.trace,
		Command:    command,
		ExitCode:   exitCode,
		Status:     status,
		ItemID:     itemID,
		DurationMS: time.Since(start).Milliseconds(),
		Error:      errText,
	})

	if err != nil {
		theApp.log.Errorw("command failed", "command", command, "item_id", itemID, "error", err)
	}
	return err
}

func main() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}
