// Package auditlog implements the append-only JSONL run log consumed by
// internal/metrics. Ported from
// _examples/original_source/automation/orchestrator/orch.py's emit_log,
// with the reader idiom (bufio.Scanner, large-line buffer) grounded on
// the teacher's internal/jsonl package.
package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Run is one run_start/run_end record. Fields mirror spec §6's persisted
// state layout for the JSONL run log exactly; Error is omitted from the
// encoded JSON when empty.
type Run struct {
	TSWall     string `json:"ts_wall"`
	TSEpochMS  int64  `json:"ts_epoch_ms"`
	Event      string `json:"event"`
	TraceID    string `json:"trace_id"`
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	Status     string `json:"status"`
	ItemID     string `json:"item_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

const (
	EventRunStart = "run_start"
	EventRunEnd   = "run_end"
)

// NewTraceID mints a random trace id for one command invocation.
func NewTraceID() string {
	return uuid.NewString()
}

// Append writes one JSONL record to path, creating parent directories as
// needed. The file is opened in append mode so concurrent writers never
// truncate each other's history; callers that need atomicity across the
// run_start/run_end pair should hold their own external lock (the queue
// engine doesn't require cross-writer ordering beyond append order).
func Append(path string, run Run) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("auditlog: create log dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("auditlog: open %s: %w", path, err)
	}
	defer f.Close()

	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("auditlog: marshal run record: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("auditlog: write %s: %w", path, err)
	}
	return nil
}

// ReadAll parses every JSONL line in path into a Run, skipping blank
// lines. A malformed line is surfaced as an error naming the line number,
// matching the teacher's jsonl reader's line-numbered failure reporting.
func ReadAll(path string) ([]Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", path, err)
	}
	defer f.Close()

	var runs []Run
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		var run Run
		if err := json.Unmarshal([]byte(line), &run); err != nil {
			return nil, fmt.Errorf("auditlog: parse %s line %d: %w", path, lineNum, err)
		}
		runs = append(runs, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auditlog: scan %s: %w", path, err)
	}
	return runs, nil
}
