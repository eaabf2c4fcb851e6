// Package uirender renders operator-facing CLI tables with
// charmbracelet/lipgloss, downgrading to plain text automatically when
// stdout isn't a color terminal. Grounded on the teacher's
// internal/ui/table.go and terminal.go (status-colored styles, TTY
// detection), adapted to the queue engine's five statuses instead of
// bd's issue states.
package uirender

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/beads-queue/orchestrator/internal/types"
)

var (
	colorDone       = lipgloss.Color("42")  // green
	colorPending    = lipgloss.Color("245") // gray
	colorInProgress = lipgloss.Color("33")  // blue
	colorFailed     = lipgloss.Color("196") // red
	colorBlocked    = lipgloss.Color("208") // orange
	colorHeader     = lipgloss.Color("99")  // purple
)

func styleForStatus(r *lipgloss.Renderer, s types.Status) lipgloss.Style {
	base := r.NewStyle().Bold(true)
	switch s {
	case types.StatusDone:
		return base.Foreground(colorDone)
	case types.StatusInProgress:
		return base.Foreground(colorInProgress)
	case types.StatusFailed:
		return base.Foreground(colorFailed)
	case types.StatusBlocked:
		return base.Foreground(colorBlocked)
	default:
		return base.Foreground(colorPending)
	}
}

// StatusTable renders one line per item ("<id>  <status>  <priority>
// <task>"), status-colored when w's renderer has a color profile other
// than Ascii (which lipgloss.NewRenderer selects automatically from the
// output's terminal capability).
func StatusTable(w io.Writer, items []types.Item) string {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true).Foreground(colorHeader).Render("ID           STATUS       PRI  TASK")

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, it := range items {
		style := styleForStatus(r, it.Status)
		line := style.Render(pad(it.ID, 12)+" "+pad(string(it.Status), 12)+" "+pad(string(it.Priority), 4)) + " " + it.Task
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
