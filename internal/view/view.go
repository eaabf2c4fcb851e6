// Package view implements the read-only tabular projection of the queue
// and its consistency checker. Ported from
// _examples/original_source/automation/orchestrator/orch.py's QueueFile
// (table parsing/sanitization) and render_queue_md.py (projection), with
// the consistency check supplemented per spec §4.J (no Python original).
package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beads-queue/orchestrator/internal/types"
)

const header = "| id | status | priority | task | success_criteria | owner_session | started_at | due_at | notes |"
const separator = "| --- | --- | --- | --- | --- | --- | --- | --- | --- |"

const cellCount = 9

// ErrSchemaMismatch is returned when a view row doesn't split into the
// fixed nine cells the format requires.
type ErrSchemaMismatch struct {
	Line string
	Got  int
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("view: expected %d cells, got %d: %q", cellCount, e.Got, e.Line)
}

// Row is one parsed line of the tabular view.
type Row struct {
	ID              string
	Status          string
	Priority        string
	Task            string
	SuccessCriteria string
	OwnerSession    string
	StartedAtKST    string
	DueAtKST        string
	Notes           string
}

func sanitizeCell(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "|", "/")
	return strings.TrimSpace(v)
}

func (r Row) toCells() []string {
	return []string{r.ID, r.Status, r.Priority, r.Task, r.SuccessCriteria, r.OwnerSession, r.StartedAtKST, r.DueAtKST, r.Notes}
}

func rowToLine(r Row) string {
	cells := make([]string, cellCount)
	for i, c := range r.toCells() {
		cells[i] = sanitizeCell(c)
	}
	return "| " + strings.Join(cells, " | ") + " |"
}

func rowFromItem(it types.Item) Row {
	due := it.DueAtKST
	if due == "" {
		due = "-"
	}
	owner := it.OwnerSession
	if owner == "" {
		owner = "-"
	}
	started := it.StartedAtKST
	if started == "" {
		started = "-"
	}
	return Row{
		ID: it.ID, Status: string(it.Status), Priority: string(it.Priority), Task: it.Task,
		SuccessCriteria: it.SuccessCriteria, OwnerSession: owner, StartedAtKST: started,
		DueAtKST: due, Notes: it.Notes,
	}
}

func splitRow(line string) ([]string, error) {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(trimmed, "|")
	if len(parts) != cellCount {
		return nil, &ErrSchemaMismatch{Line: line, Got: len(parts)}
	}
	cells := make([]string, cellCount)
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells, nil
}

func parseRow(line string) (Row, error) {
	cells, err := splitRow(line)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID: cells[0], Status: cells[1], Priority: cells[2], Task: cells[3],
		SuccessCriteria: cells[4], OwnerSession: cells[5], StartedAtKST: cells[6],
		DueAtKST: cells[7], Notes: cells[8],
	}, nil
}

func findHeaderLine(lines []string) int {
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "| id | status | priority | task |") {
			return i
		}
	}
	return -1
}

func tableEnd(lines []string, start int) int {
	for i := start + 2; i < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "|") {
			return i
		}
	}
	return len(lines)
}

// ParseRows extracts the table rows from an existing view document,
// returning the row set and the bounds of the table region (for callers
// that want to preserve content outside it).
func ParseRows(document string) (rows []Row, headerIdx, endIdx int, err error) {
	lines := strings.Split(document, "\n")
	start := findHeaderLine(lines)
	if start < 0 {
		return nil, -1, -1, fmt.Errorf("view: table header not found")
	}
	end := tableEnd(lines, start)
	for _, line := range lines[start+2 : end] {
		if strings.TrimSpace(line) == "" || !strings.HasPrefix(strings.TrimSpace(line), "|") {
			continue
		}
		row, perr := parseRow(line)
		if perr != nil {
			return nil, -1, -1, perr
		}
		rows = append(rows, row)
	}
	return rows, start, end, nil
}

// Render rebuilds the full view document from items. The table region of
// existingDocument runs from its fixed header row to the first following
// line that does not start with "|"; content before and after that region
// is preserved verbatim. An empty existingDocument produces a bare table
// with no surrounding content.
func Render(existingDocument string, items []types.Item) (string, error) {
	sorted := make([]types.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	rows := make([]Row, len(sorted))
	for i, it := range sorted {
		rows[i] = rowFromItem(it)
	}

	if strings.TrimSpace(existingDocument) == "" {
		return renderTable(nil, nil, rows), nil
	}

	lines := strings.Split(existingDocument, "\n")
	start := findHeaderLine(lines)
	if start < 0 {
		return "", fmt.Errorf("view: table header not found")
	}
	end := tableEnd(lines, start)
	return renderTable(lines[:start], lines[end:], rows), nil
}

func renderTable(before, after []string, rows []Row) string {
	var b strings.Builder
	for _, l := range before {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(separator)
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(rowToLine(r))
		b.WriteString("\n")
	}
	for i, l := range after {
		b.WriteString(l)
		if i < len(after)-1 {
			b.WriteString("\n")
		}
	}
	out := b.String()
	if len(after) == 0 {
		out = strings.TrimSuffix(out, "\n")
		out += "\n"
	}
	return out
}
