package venue

import (
	"regexp"
	"strings"
)

// rule pairs a compiled pattern with a renderer that turns the match into a
// venue string. Rules are tried in order; the first match wins.
type rule struct {
	pattern *regexp.Regexp
	render  func(m []string) string
}

// conferenceAbbrevs are well-known venue abbreviations matched together with
// an optional year, e.g. "ICSE 2024" or "NeurIPS'23".
var conferenceAbbrevs = []string{
	"ICSE", "FSE", "ESEC/FSE", "ASE", "ISSTA", "ICSME", "SANER", "MSR",
	"NeurIPS", "ICLR", "ICML", "AAAI", "IJCAI",
	"CVPR", "ICCV", "ECCV",
	"ACL", "EMNLP", "NAACL", "COLING",
	"SIGMOD", "VLDB", "ICDE", "KDD", "WWW", "CIKM",
	"CHI", "UIST", "CSCW",
	"SOSP", "OSDI", "NSDI", "PLDI", "POPL", "OOPSLA", "S&P", "CCS", "USENIX Security",
}

// journalKeywords mark free-text journal references, e.g. "IEEE Transactions
// on Software Engineering".
var journalKeywords = []string{
	"Transactions on", "Journal of", "TOSEM", "TSE", "TPAMI", "JMLR", "TACL",
}

// rules is the ordered matcher list applied to the comment field.
var rules = buildRules()

func buildRules() []rule {
	out := make([]rule, 0, 4)

	// "Accepted to ICSE 2024", "Accepted at NeurIPS'23", "To appear in FSE 2025",
	// "Published in EMNLP 2024 Findings".
	phrase := regexp.MustCompile(`(?i)\b(?:accepted (?:to|at|by)|to appear (?:in|at)|published (?:in|at)|appears in|presented at|camera[- ]ready for)\s+(?:the\s+)?([^.;,\n]+)`)
	out = append(out, rule{
		pattern: phrase,
		render: func(m []string) string {
			return cleanVenue(m[1])
		},
	})

	// Bare abbreviation with a year: "ICSE 2024", "NeurIPS'23", "CVPR2025".
	abbrevAlt := make([]string, len(conferenceAbbrevs))
	for i, a := range conferenceAbbrevs {
		abbrevAlt[i] = regexp.QuoteMeta(a)
	}
	abbrev := regexp.MustCompile(`\b(` + strings.Join(abbrevAlt, "|") + `)\s*'?\s*((?:19|20)\d{2}|\d{2})\b`)
	out = append(out, rule{
		pattern: abbrev,
		render: func(m []string) string {
			year := m[2]
			if len(year) == 2 {
				year = "20" + year
			}
			return m[1] + " " + year
		},
	})

	// Journal references without the accepted/published phrasing.
	jkAlt := make([]string, len(journalKeywords))
	for i, k := range journalKeywords {
		jkAlt[i] = regexp.QuoteMeta(k)
	}
	journal := regexp.MustCompile(`(?i)\b((?:[A-Z][\w&-]*\s+)*(?:` + strings.Join(jkAlt, "|") + `)[^.;,\n]*)`)
	out = append(out, rule{
		pattern: journal,
		render: func(m []string) string {
			return cleanVenue(m[1])
		},
	})

	return out
}

// matchRules applies the rule table to a comment. The boolean reports whether
// any rule matched.
func matchRules(comment string) (string, bool) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(comment)
		if m == nil {
			continue
		}
		if v := r.render(m); v != "" {
			return v, true
		}
	}
	return "", false
}

// cleanVenue trims captured venue text down to a presentable string.
func cleanVenue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'()[]`)
	// Drop trailing page/DOI noise after the venue name.
	for _, sep := range []string{" pp ", " pp.", " doi:", " DOI:", " vol.", " Vol."} {
		if i := strings.Index(s, sep); i > 0 {
			s = s[:i]
		}
	}
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		s = strings.TrimSpace(s[:80])
	}
	return s
}
