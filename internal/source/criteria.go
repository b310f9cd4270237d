package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/scholarstream/arxiv-radar/internal/domain"
)

// SearchCriteria is the normalized search definition for one topic run.
// Immutable once built.
type SearchCriteria struct {
	Topic      string
	Categories []string
	Include    []string
	Exclude    []string
	From       time.Time
	To         time.Time
}

// CriteriaInput carries the raw topic query fields into BuildCriteria.
type CriteriaInput struct {
	Topic      string
	Categories []string
	Include    []string
	Exclude    []string
	// From/To bound the submission date window. Zero From means
	// "To minus WindowDays"; zero To means now.
	From       time.Time
	To         time.Time
	WindowDays int
}

// BuildCriteria normalizes a topic query into SearchCriteria. It fails fast
// with a configuration error when no categories are given.
func BuildCriteria(in CriteriaInput) (SearchCriteria, error) {
	if len(in.Categories) == 0 {
		return SearchCriteria{}, &domain.ConfigError{
			Field:   fmt.Sprintf("topics[%s].query.categories", in.Topic),
			Message: "must not be empty",
		}
	}

	to := in.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from := in.From
	if from.IsZero() {
		days := in.WindowDays
		if days <= 0 {
			days = 7
		}
		from = to.AddDate(0, 0, -days)
	}

	return SearchCriteria{
		Topic:      in.Topic,
		Categories: trimTerms(in.Categories),
		Include:    normalizeTerms(in.Include),
		Exclude:    normalizeTerms(in.Exclude),
		From:       from,
		To:         to,
	}, nil
}

// QueryString renders the criteria as an arXiv API search_query expression:
// category and include-keyword clauses AND a submittedDate range. Exclude
// terms are not part of the upstream query; they are applied by Excludes so
// that exclusion always takes precedence over inclusion.
func (c SearchCriteria) QueryString() string {
	var parts []string

	if len(c.Include) > 0 {
		kws := make([]string, 0, len(c.Include))
		for _, kw := range c.Include {
			kws = append(kws, fmt.Sprintf("all:%q", kw))
		}
		parts = append(parts, "("+strings.Join(kws, " OR ")+")")
	}

	cats := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		cats = append(cats, "cat:"+cat)
	}
	parts = append(parts, "("+strings.Join(cats, " OR ")+")")

	parts = append(parts, fmt.Sprintf("submittedDate:[%s0000 TO %s2359]",
		c.From.Format("20060102"), c.To.Format("20060102")))

	return strings.Join(parts, " AND ")
}

// Excludes reports whether the paper matches any exclude term in its title or
// abstract. A paper matching both include and exclude terms is excluded.
func (c SearchCriteria) Excludes(p domain.Paper) bool {
	if len(c.Exclude) == 0 {
		return false
	}
	blob := strings.ToLower(p.Title + " " + p.Abstract)
	for _, term := range c.Exclude {
		if strings.Contains(blob, term) {
			return true
		}
	}
	return false
}

// normalizeTerms trims, lowercases and drops empty terms.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// trimTerms trims and drops empty terms, preserving case (category codes are
// case-sensitive).
func trimTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
