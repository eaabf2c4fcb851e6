package main

import (
	"os"
	"time"

	"github.com/beads-queue/orchestrator/internal/types"
	"github.com/beads-queue/orchestrator/internal/uirender"
)

func timeFromEpoch(epoch int64) time.Time {
	return time.Unix(epoch, 0).UTC()
}

func renderQueueTable(items []types.Item) string {
	return uirender.StatusTable(os.Stdout, items)
}
