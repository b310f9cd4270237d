package publish

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/scholarstream/arxiv-radar/internal/domain"
)

// reportFileName maps an arXiv ID to a report file name. Old-style IDs
// contain a slash that cannot appear in a file name.
func reportFileName(arxivID string) string {
	return strings.ReplaceAll(arxivID, "/", "_") + ".md"
}

// renderReport renders the detailed report unit for one entry.
func renderReport(e domain.ReportEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", e.Title)
	fmt.Fprintf(&sb, "- **arXiv**: [%s](%s)\n", e.ArXivID, e.URL)
	fmt.Fprintf(&sb, "- **Date**: %s\n", e.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, "- **Venue**: %s\n", e.Venue.Venue)
	fmt.Fprintf(&sb, "- **Topic**: %s\n", e.Topic)
	fmt.Fprintf(&sb, "- **Relevance**: %.0f/100\n", e.Score.Score)

	a := e.Analysis
	if a == nil {
		return sb.String()
	}

	if a.Partial() {
		sb.WriteString("\n> Partial analysis: one or more stages did not complete.\n")
	}
	if a.ContentAbsent {
		sb.WriteString("\n> Full text was unavailable; this report is based on the abstract alone.\n")
	}

	if a.Overview != "" {
		sb.WriteString("\n## Overview\n\n")
		sb.WriteString(a.Overview)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&sb, "- **Problem**: %s\n", a.Summary.Problem)
	fmt.Fprintf(&sb, "- **Solution**: %s\n", a.Summary.Solution)
	fmt.Fprintf(&sb, "- **Methodology**: %s\n", a.Summary.Methodology)
	fmt.Fprintf(&sb, "- **Experiments**: %s\n", a.Summary.Experiments)
	fmt.Fprintf(&sb, "- **Conclusion**: %s\n", a.Summary.Conclusion)

	if len(a.Findings) > 0 {
		sb.WriteString("\n## Questions & Answers\n")
		for i, f := range a.Findings {
			fmt.Fprintf(&sb, "\n### %d. %s\n\n", i+1, f.Question)
			if f.Answer != "" {
				sb.WriteString(f.Answer)
				sb.WriteString("\n")
			}
			if f.Quote != "" {
				fmt.Fprintf(&sb, "\n> %s\n", f.Quote)
			}
			if f.Unverifiable {
				sb.WriteString("\n*Unverified: not grounded in the paper's full text.*\n")
			} else {
				fmt.Fprintf(&sb, "\n*Confidence: %.2f*\n", f.Confidence)
			}
		}
	}

	if len(a.Claims) > 0 {
		sb.WriteString("\n## Key Claims\n\n")
		for _, c := range a.Claims {
			fmt.Fprintf(&sb, "- %s *(confidence %.2f)*\n", c.Text, c.Confidence)
		}
	}

	return sb.String()
}

const indexTitle = "# Reports"

// indexLinePattern parses an index line; the link path is the identity key.
var indexLinePattern = regexp.MustCompile(`^- (\d{4}-\d{2}-\d{2}) — \[(.+?)\]\((\S+?)\)(?: — (.*))?$`)

// indexLine is one entry of the report index.
type indexLine struct {
	Date  string
	Title string
	Path  string
	Venue string
}

// parseIndex extracts entry lines from index markdown.
func parseIndex(content string) []indexLine {
	var lines []indexLine
	for _, raw := range strings.Split(content, "\n") {
		m := indexLinePattern.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			continue
		}
		lines = append(lines, indexLine{Date: m[1], Title: m[2], Path: m[3], Venue: m[4]})
	}
	return lines
}

// mergeIndex merges new entries into the index, keyed by report path, and
// sorts by date descending with path ascending on ties. Paths are bare file
// names: the index lives in the report directory, so relative links must
// not repeat it.
func mergeIndex(existing []indexLine, entries []domain.ReportEntry) []indexLine {
	byPath := make(map[string]indexLine, len(existing)+len(entries))
	order := make([]string, 0, len(existing)+len(entries))

	for _, l := range existing {
		if _, ok := byPath[l.Path]; !ok {
			order = append(order, l.Path)
		}
		byPath[l.Path] = l
	}
	for _, e := range entries {
		path := reportFileName(e.ArXivID)
		if _, ok := byPath[path]; !ok {
			order = append(order, path)
		}
		byPath[path] = indexLine{
			Date:  e.Date.Format("2006-01-02"),
			Title: sanitizeCell(e.Title),
			Path:  path,
			Venue: sanitizeCell(e.Venue.Venue),
		}
	}

	merged := make([]indexLine, 0, len(order))
	for _, p := range order {
		merged = append(merged, byPath[p])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date > merged[j].Date
		}
		return merged[i].Path < merged[j].Path
	})
	return merged
}

// renderIndexLine renders one index entry.
func renderIndexLine(l indexLine) string {
	s := fmt.Sprintf("- %s — [%s](%s)", l.Date, l.Title, l.Path)
	if l.Venue != "" {
		s += " — " + l.Venue
	}
	return s
}

// indexRegion locates the contiguous entry block. Returns the half-open
// line range of the entries, or (-1, -1) when the file contains none.
func indexRegion(lines []string) (int, int) {
	for i, line := range lines {
		if !indexLinePattern.MatchString(strings.TrimSpace(line)) {
			continue
		}
		end := i
		for end < len(lines) && indexLinePattern.MatchString(strings.TrimSpace(lines[end])) {
			end++
		}
		return i, end
	}
	return -1, -1
}

// mergeIndexContent merges entries into index markdown, rewriting only the
// entry block; every other line in the file is preserved. An empty file is
// initialized with the standard title; a file without an entry block keeps
// its content and gets the entries appended.
func mergeIndexContent(existing string, entries []domain.ReportEntry) string {
	if strings.TrimSpace(existing) == "" {
		existing = indexTitle + "\n\n"
	}

	lines := strings.Split(existing, "\n")
	start, end := indexRegion(lines)
	if start == -1 {
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, "")
		start, end = len(lines), len(lines)
	}

	merged := mergeIndex(parseIndex(strings.Join(lines[start:end], "\n")), entries)

	out := make([]string, 0, len(lines)+len(merged))
	out = append(out, lines[:start]...)
	for _, l := range merged {
		out = append(out, renderIndexLine(l))
	}
	out = append(out, lines[end:]...)
	if out[len(out)-1] != "" {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}
