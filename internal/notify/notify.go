// Package notify defines the boundary for end-of-run notifications.
// Delivery transports (email, chat) live behind the Notifier interface;
// the default implementation just logs the summary.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/scholarstream/arxiv-radar/internal/domain"
)

// Notifier delivers a run summary to a human.
type Notifier interface {
	NotifyRun(ctx context.Context, report domain.RunReport) error
}

// LogNotifier writes the run summary to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

// NotifyRun logs one line per topic plus a run-level summary.
func (n *LogNotifier) NotifyRun(_ context.Context, report domain.RunReport) error {
	for _, ts := range report.Topics {
		n.logger.Info().
			Str("topic", ts.Topic).
			Int("discovered", ts.Discovered).
			Int("dedup_filtered", ts.DedupFiltered).
			Int("relevance_filtered", ts.RelevanceFiltered).
			Int("analyzed", ts.Analyzed).
			Int("published", ts.Published).
			Int("failed", ts.Failed).
			Msg("topic summary")
	}

	n.logger.Info().
		Str("run_id", report.RunID).
		Str("status", string(report.Status)).
		Dur("duration", report.Duration).
		Msg("run complete")
	return nil
}
