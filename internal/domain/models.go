// Package domain defines the data model shared across the arxiv-radar pipeline.
package domain

import (
	"strings"
	"time"
)

// Author represents a paper author.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Paper holds the metadata for a single arXiv paper as returned by the feed.
// It is created by the feed client and treated as read-only downstream.
type Paper struct {
	// ArXivID is the version-stripped identifier, e.g. "2401.12345".
	ArXivID    string     `json:"arxiv_id"`
	Title      string     `json:"title"`
	Abstract   string     `json:"abstract"`
	Authors    []Author   `json:"authors"`
	Categories []string   `json:"categories"`
	Submitted  time.Time  `json:"submitted"`
	Updated    *time.Time `json:"updated,omitempty"`
	// Comment is the free-text arXiv comment field; it often carries venue
	// hints such as "Accepted to ICSE 2024".
	Comment string `json:"comment,omitempty"`
	AbsURL  string `json:"abs_url"`
	PDFURL  string `json:"pdf_url"`
}

// CanonicalID returns the ledger key for the paper.
func (p Paper) CanonicalID() string {
	return "arxiv:" + p.ArXivID
}

// AuthorNames returns the author names joined with ", ".
func (p Paper) AuthorNames() string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// RelevanceScore is the scored relevance of a paper against a topic.
// Never mutated after creation.
type RelevanceScore struct {
	// Score is on a 0-100 scale, clamped.
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
	// Passed reports score >= threshold (inclusive).
	Passed bool `json:"passed"`
}

// ContentSource tags the provenance of fetched paper content.
type ContentSource string

const (
	// ContentSourceHTML means the rendered ar5iv HTML mirror supplied the body.
	ContentSourceHTML ContentSource = "html"
	// ContentSourcePDF means the body was extracted from the PDF.
	ContentSourcePDF ContentSource = "pdf"
)

// PaperContent is the full text body of a paper plus its provenance.
type PaperContent struct {
	Body   string        `json:"body"`
	Source ContentSource `json:"source"`
}

// StageStatus records the outcome of a single analysis stage.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StagePartial StageStatus = "partial"
	StageSkipped StageStatus = "skipped"
)

// Summary holds the five-aspect structured summary of a paper.
type Summary struct {
	Problem     string `json:"problem"`
	Solution    string `json:"solution"`
	Methodology string `json:"methodology"`
	Experiments string `json:"experiments"`
	Conclusion  string `json:"conclusion"`
}

// Finding is one interest-aligned question with its evidence-grounded answer.
type Finding struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	// Quote is a supporting quote from the paper body. Empty and Unverifiable
	// set when no content was available to ground the answer.
	Quote        string  `json:"quote,omitempty"`
	Unverifiable bool    `json:"unverifiable,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// Claim is one overview claim with a confidence score.
type Claim struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult is the complete multi-stage analysis of a paper. It is owned
// by the pipeline run that created it and immutable once published.
type AnalysisResult struct {
	Summary  Summary   `json:"summary"`
	Findings []Finding `json:"findings,omitempty"`
	Overview string    `json:"overview,omitempty"`
	Claims   []Claim   `json:"claims,omitempty"`

	// Stage statuses; stages after the summary degrade to partial/skipped
	// instead of discarding the whole analysis.
	SummaryStage   StageStatus `json:"summary_stage"`
	QuestionsStage StageStatus `json:"questions_stage"`
	AnswersStage   StageStatus `json:"answers_stage"`
	OverviewStage  StageStatus `json:"overview_stage"`

	// ContentAbsent is set when no full text was available and the summary
	// was produced from metadata alone.
	ContentAbsent bool `json:"content_absent,omitempty"`
}

// Partial reports whether any stage after the summary degraded or was skipped.
func (r AnalysisResult) Partial() bool {
	return r.SummaryStage != StageOK ||
		r.QuestionsStage != StageOK ||
		r.AnswersStage != StageOK ||
		r.OverviewStage != StageOK
}

// VenueSource tags how a venue was resolved.
type VenueSource string

const (
	// VenueSourceRule means an ordered pattern rule matched the comment field.
	VenueSourceRule VenueSource = "rule"
	// VenueSourceLLM means the LLM inferred the venue from the comment text.
	VenueSourceLLM VenueSource = "llm"
	// VenueSourceDefault means the fallback venue was assigned.
	VenueSourceDefault VenueSource = "default"
)

// DefaultVenue is assigned when neither rules nor the LLM resolve a venue.
const DefaultVenue = "arXiv"

// VenueInfo is the resolved publication venue with provenance. Resolution is
// total: Venue is never empty.
type VenueInfo struct {
	Venue  string      `json:"venue"`
	Source VenueSource `json:"source"`
}

// ReportEntry is the externally published unit for a single analyzed paper.
type ReportEntry struct {
	ArXivID string    `json:"arxiv_id"`
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Date    time.Time `json:"date"`
	Venue   VenueInfo `json:"venue"`
	// Analysis is carried only into the detailed report store; the quick
	// table consumes the row fields above.
	Analysis *AnalysisResult `json:"analysis,omitempty"`
	Score    RelevanceScore  `json:"score"`
	Topic    string          `json:"topic"`
}
