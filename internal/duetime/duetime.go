// Package duetime parses the free-form natural-language dates the
// `queue add --due` flag accepts ("next monday", "in 3 days"), per
// SPEC_FULL.md's CLI additions. Grounded on the teacher's general
// tolerance for free-text fields it stores without strict validation
// (e.g. config.LocalConfig's passthrough fields); there is no Python
// original for due-date parsing to port.
package duetime

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Parse interprets text as a natural-language date relative to now and
// formats the result "YYYY-MM-DD HH:MM". When text doesn't parse as a
// date (or is empty), it is returned unchanged: due_at_kst is a plain
// string field, never validated strictly.
func Parse(text string, now time.Time) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	result, err := parser.Parse(trimmed, now)
	if err != nil || result == nil {
		return trimmed
	}
	return result.Time.Format("2006-01-02 15:04")
}
