package domain

import "time"

// RunStatus is the overall outcome of a pipeline run.
type RunStatus string

const (
	// RunOK means every topic completed without failures.
	RunOK RunStatus = "ok"
	// RunPartial means at least one topic or paper failed but others
	// published.
	RunPartial RunStatus = "partial"
	// RunFailed means no topic produced output.
	RunFailed RunStatus = "failed"
)

// SkipReason records why a paper produced no ReportEntry.
type SkipReason struct {
	ArXivID string `json:"arxiv_id"`
	Reason  string `json:"reason"`
}

// TopicStats counts what happened to a topic's papers during one run.
type TopicStats struct {
	Topic             string       `json:"topic"`
	Discovered        int          `json:"discovered"`
	DedupFiltered     int          `json:"dedup_filtered"`
	RelevanceFiltered int          `json:"relevance_filtered"`
	Analyzed          int          `json:"analyzed"`
	Published         int          `json:"published"`
	Failed            int          `json:"failed"`
	// LedgerErrors counts published papers whose seen-marker write failed;
	// those papers may be reprocessed on the next run.
	LedgerErrors int          `json:"ledger_errors,omitempty"`
	Skips        []SkipReason `json:"skips,omitempty"`
	// Err is set when the topic aborted before its papers could be
	// processed (source down, publish failure).
	Err error `json:"-"`
}

// RunReport is the end-of-run summary across all topics.
type RunReport struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Status   RunStatus     `json:"status"`
	Topics   []TopicStats  `json:"topics"`
}
