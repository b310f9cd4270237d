package publish

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/scholarstream/arxiv-radar/internal/domain"
)

const (
	tableTitle  = "# Paper Updates"
	tableHeader = "| Paper | Date | Venue |"
	tableDivide = "|---|---|---|"
)

// tableRowPattern parses a rendered row back into its fields. The link
// target carries the paper identity for idempotent merging.
var tableRowPattern = regexp.MustCompile(`^\|\s*\[(.+?)\]\((\S+?)\)\s*\|\s*(\d{4}-\d{2}-\d{2})\s*\|\s*(.*?)\s*\|$`)

// tableRow is one line of the quick table.
type tableRow struct {
	Title string
	URL   string
	Date  string
	Venue string
}

// parseTable extracts rows from quick-table markdown. Unparseable lines are
// ignored so a hand-edited file never breaks a run.
func parseTable(content string) []tableRow {
	var rows []tableRow
	for _, line := range strings.Split(content, "\n") {
		m := tableRowPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		rows = append(rows, tableRow{Title: m[1], URL: m[2], Date: m[3], Venue: m[4]})
	}
	return rows
}

// tableRegion locates the contiguous row block under the table header.
// Returns the half-open line range of the rows, or (-1, -1) when the file
// contains no table.
func tableRegion(lines []string) (int, int) {
	for i := 0; i+1 < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != tableHeader || strings.TrimSpace(lines[i+1]) != tableDivide {
			continue
		}
		start := i + 2
		end := start
		for end < len(lines) && tableRowPattern.MatchString(strings.TrimSpace(lines[end])) {
			end++
		}
		return start, end
	}
	return -1, -1
}

// mergeTable merges new entries into existing rows, keyed by link URL.
// Re-merging entries already present changes nothing. The result is sorted
// by date descending, ties broken by URL ascending for determinism.
func mergeTable(existing []tableRow, entries []domain.ReportEntry) []tableRow {
	byURL := make(map[string]tableRow, len(existing)+len(entries))
	order := make([]string, 0, len(existing)+len(entries))

	for _, r := range existing {
		if _, ok := byURL[r.URL]; !ok {
			order = append(order, r.URL)
		}
		byURL[r.URL] = r
	}
	for _, e := range entries {
		if _, ok := byURL[e.URL]; !ok {
			order = append(order, e.URL)
		}
		byURL[e.URL] = tableRow{
			Title: sanitizeCell(e.Title),
			URL:   e.URL,
			Date:  e.Date.Format("2006-01-02"),
			Venue: sanitizeCell(e.Venue.Venue),
		}
	}

	merged := make([]tableRow, 0, len(order))
	for _, u := range order {
		merged = append(merged, byURL[u])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date > merged[j].Date
		}
		return merged[i].URL < merged[j].URL
	})
	return merged
}

// renderRow renders one quick-table row.
func renderRow(r tableRow) string {
	return fmt.Sprintf("| [%s](%s) | %s | %s |", r.Title, r.URL, r.Date, r.Venue)
}

// timestampLine renders the volatile last-updated line.
func timestampLine(now time.Time) string {
	return fmt.Sprintf("*Last updated: %s UTC*", now.UTC().Format("2006-01-02 15:04"))
}

// mergeTableContent merges entries into quick-table markdown, rewriting only
// the row block and the timestamp line. Every other line in the file is
// preserved. An empty file is initialized with the standard layout; a file
// without a table keeps its content and gets the table appended.
func mergeTableContent(existing string, entries []domain.ReportEntry, now time.Time) string {
	if strings.TrimSpace(existing) == "" {
		existing = strings.Join([]string{
			tableTitle, "", timestampLine(now), "", tableHeader, tableDivide, "",
		}, "\n")
	}

	lines := strings.Split(existing, "\n")
	start, end := tableRegion(lines)
	if start == -1 {
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, "", tableHeader, tableDivide)
		start, end = len(lines), len(lines)
	}

	merged := mergeTable(parseTable(strings.Join(lines[start:end], "\n")), entries)

	out := make([]string, 0, len(lines)+len(merged))
	out = append(out, lines[:start]...)
	for _, r := range merged {
		out = append(out, renderRow(r))
	}
	out = append(out, lines[end:]...)

	for i, line := range out {
		if lastUpdatedPattern.MatchString(strings.TrimSpace(line)) {
			out[i] = timestampLine(now)
		}
	}
	if out[len(out)-1] != "" {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

// lastUpdatedPattern matches the timestamp line, which must not count
// toward change detection or every run would commit a timestamp-only diff.
var lastUpdatedPattern = regexp.MustCompile(`(?m)^\*Last updated: .*\*$`)

// stripVolatile removes content that changes on every render.
func stripVolatile(s string) string {
	return lastUpdatedPattern.ReplaceAllString(s, "")
}

// sanitizeCell strips characters that would break table syntax.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
