package gate

import (
	"regexp"
	"strconv"
	"strings"
)

// failureMarkers and blockMarkers carry the exact, asymmetric leading/
// trailing-space padding from the Python original. This is deliberate, not
// a typo: normalize() pads the report with exactly one leading and one
// trailing space, and whitespace inside the report is already collapsed to
// single spaces, so the leading space anchors every marker to the start of
// a word. Only markers with a trailing space (" fail ") are anchored at the
// end too: a marker like " failed" (no trailing space) also matches a
// longer word or a word followed by punctuation (" failed.", " errors").
// Changing this padding would silently change which reports trip which
// marker — see spec §9 Design Note.
var failureMarkers = []string{
	" fail ",
	" failed",
	" error",
	" exception",
	" incomplete",
	" not done",
	" todo",
	" missing",
}

var blockMarkers = []string{
	" blocker",
	" blocked",
	" cannot proceed",
	" escalation",
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "into": true, "have": true, "has": true,
	"been": true, "were": true, "was": true, "will": true, "shall": true,
	"must": true, "should": true, "able": true, "ensure": true, "verify": true,
	"check": true, "tests": true, "test": true,
}

var collapseWhitespace = regexp.MustCompile(`\s+`)
var criteriaSplitter = regexp.MustCompile(`[;\x{2022}]+`)
var keywordPattern = regexp.MustCompile(`[a-zA-Z0-9_\-/]{3,}`)

// criteriaItem is one parsed success-criteria bullet: its raw text plus up
// to six deterministically-ordered keywords.
type criteriaItem struct {
	Raw      string
	Keywords []string
}

func normalize(text string) string {
	collapsed := collapseWhitespace.ReplaceAllString(strings.ToLower(text), " ")
	return " " + strings.TrimSpace(collapsed) + " "
}

func splitCriteria(successCriteria string) []string {
	text := strings.TrimSpace(successCriteria)
	if text == "" {
		return nil
	}
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(line, " -\t")
		if line == "" {
			continue
		}
		for _, part := range criteriaSplitter.Split(line, -1) {
			part = strings.TrimSpace(part)
			if part != "" {
				chunks = append(chunks, part)
			}
		}
	}
	return chunks
}

func keywordsOf(item string) []string {
	words := keywordPattern.FindAllString(strings.ToLower(item), -1)
	seen := map[string]bool{}
	var out []string
	for _, w := range words {
		if len(w) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == 6 {
			break
		}
	}
	return out
}

func buildItems(successCriteria string) []criteriaItem {
	chunks := splitCriteria(successCriteria)
	items := make([]criteriaItem, len(chunks))
	for i, c := range chunks {
		items[i] = criteriaItem{Raw: c, Keywords: keywordsOf(c)}
	}
	return items
}

func isItemCovered(item criteriaItem, normalizedReport string) bool {
	phrase := normalize(item.Raw)
	if strings.TrimSpace(phrase) != "" && strings.Contains(normalizedReport, phrase) {
		return true
	}
	for _, kw := range item.Keywords {
		if strings.Contains(normalizedReport, " "+kw+" ") {
			return true
		}
	}
	return false
}

func findMarkers(normalizedReport string, markers []string) []string {
	var found []string
	for _, m := range markers {
		if strings.Contains(normalizedReport, m) {
			found = append(found, strings.TrimSpace(m))
		}
	}
	return found
}

func joinComma(parts []string) string { return strings.Join(parts, ",") }
func itoa(n int) string               { return strconv.Itoa(n) }
