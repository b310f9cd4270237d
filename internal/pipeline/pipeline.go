// Package pipeline orchestrates a run: discovery, dedup, relevance scoring,
// content fetch, analysis, venue resolution, and publishing, topic by topic.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scholarstream/arxiv-radar/internal/config"
	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/ledger"
	"github.com/scholarstream/arxiv-radar/internal/notify"
	"github.com/scholarstream/arxiv-radar/internal/observability"
	"github.com/scholarstream/arxiv-radar/internal/relevance"
	"github.com/scholarstream/arxiv-radar/internal/source"
)

// DefaultAnalysisConcurrency bounds parallel per-paper analysis.
const DefaultAnalysisConcurrency = 4

// Source discovers papers matching the criteria.
type Source interface {
	Fetch(ctx context.Context, criteria source.SearchCriteria) ([]domain.Paper, error)
}

// Scorer scores a batch of papers against an interest description.
type Scorer interface {
	ScoreAll(ctx context.Context, papers []domain.Paper, interestPrompt string) ([]relevance.Result, error)
}

// ContentFetcher retrieves a paper's full text, nil meaning absent.
type ContentFetcher interface {
	Fetch(ctx context.Context, paper domain.Paper) (*domain.PaperContent, error)
}

// Analyzer produces an AnalysisResult for a paper.
type Analyzer interface {
	Analyze(ctx context.Context, paper domain.Paper, content *domain.PaperContent, interestPrompt string) (*domain.AnalysisResult, error)
}

// VenueResolver determines a paper's venue.
type VenueResolver interface {
	Resolve(ctx context.Context, paper domain.Paper) domain.VenueInfo
}

// Publisher merges report entries into the output stores.
type Publisher interface {
	Publish(ctx context.Context, topic string, entries []domain.ReportEntry) error
}

// Options are per-run settings on top of the static configuration.
type Options struct {
	// Topics to process, in order.
	Topics []config.TopicConfig

	// TopicFilter restricts the run to one topic by name. Empty means all.
	TopicFilter string

	// WindowDays is the default lookback window for discovery.
	WindowDays int

	// From/To override the discovery window when non-zero.
	From time.Time
	To   time.Time

	// PaperLimit caps the papers considered per topic. Zero means no cap.
	PaperLimit int

	// Concurrency bounds parallel per-paper analysis within a topic.
	Concurrency int
}

// Pipeline wires the stages together. Topics run sequentially; papers within
// a topic fan out up to the concurrency limit.
type Pipeline struct {
	source    Source
	scorer    Scorer
	content   ContentFetcher
	analyzer  Analyzer
	venues    VenueResolver
	publisher Publisher
	ledger    ledger.Store
	notifier  notify.Notifier
	logger    zerolog.Logger
}

// New creates a pipeline.
func New(
	src Source,
	scorer Scorer,
	content ContentFetcher,
	analyzer Analyzer,
	venues VenueResolver,
	publisher Publisher,
	ledgerStore ledger.Store,
	notifier notify.Notifier,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		source:    src,
		scorer:    scorer,
		content:   content,
		analyzer:  analyzer,
		venues:    venues,
		publisher: publisher,
		ledger:    ledgerStore,
		notifier:  notifier,
		logger:    logger,
	}
}

// Run processes every configured topic and returns the run report. Topic
// failures are isolated: they mark the run partial but never abort it. The
// returned error is non-nil only for run-level aborts (context cancellation).
func (p *Pipeline) Run(ctx context.Context, opts Options) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:   uuid.NewString(),
		Started: time.Now().UTC(),
	}
	log := observability.WithRunContext(p.logger, report.RunID)
	log.Info().Int("topics", len(opts.Topics)).Msg("run started")

	for _, topic := range opts.Topics {
		if opts.TopicFilter != "" && topic.Name != opts.TopicFilter {
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		stats := p.runTopic(ctx, log, topic, opts)
		report.Topics = append(report.Topics, stats)
	}

	report.Duration = time.Since(report.Started)
	report.Status = runStatus(report.Topics)

	if p.notifier != nil {
		if err := p.notifier.NotifyRun(ctx, report); err != nil {
			log.Warn().Err(err).Msg("run notification failed")
		}
	}
	return report, nil
}

// runStatus derives the overall status from per-topic outcomes.
func runStatus(topics []domain.TopicStats) domain.RunStatus {
	if len(topics) == 0 {
		return domain.RunOK
	}
	failed, clean := 0, 0
	for _, ts := range topics {
		switch {
		case ts.Err != nil:
			failed++
		case ts.Failed == 0:
			clean++
		}
	}
	switch {
	case failed == len(topics):
		return domain.RunFailed
	case clean == len(topics):
		return domain.RunOK
	default:
		return domain.RunPartial
	}
}

// runTopic processes one topic end to end. All failures are recorded in the
// returned stats; nothing escapes to the run level except via ctx.
func (p *Pipeline) runTopic(ctx context.Context, log zerolog.Logger, topic config.TopicConfig, opts Options) domain.TopicStats {
	stats := domain.TopicStats{Topic: topic.Name}
	tlog := observability.WithTopicContext(log, topic.Name)

	criteria, err := source.BuildCriteria(source.CriteriaInput{
		Topic:      topic.Name,
		Categories: topic.Query.Categories,
		Include:    topic.Query.Include,
		Exclude:    topic.Query.Exclude,
		From:       opts.From,
		To:         opts.To,
		WindowDays: opts.WindowDays,
	})
	if err != nil {
		tlog.Error().Err(err).Msg("building search criteria failed")
		stats.Err = err
		return stats
	}

	papers, err := p.source.Fetch(ctx, criteria)
	if err != nil {
		tlog.Error().Err(err).Msg("discovery failed, skipping topic")
		stats.Err = err
		return stats
	}
	stats.Discovered = len(papers)
	tlog.Info().Int("discovered", len(papers)).Msg("discovery complete")

	fresh, err := p.filterSeen(ctx, topic.Name, papers, &stats)
	if err != nil {
		stats.Err = err
		return stats
	}

	if opts.PaperLimit > 0 && len(fresh) > opts.PaperLimit {
		fresh = fresh[:opts.PaperLimit]
	}
	if len(fresh) == 0 {
		tlog.Info().Msg("no new papers")
		return stats
	}

	scored, err := p.scorer.ScoreAll(ctx, fresh, topic.InterestPrompt)
	if err != nil {
		stats.Err = err
		return stats
	}

	var accepted []domain.Paper
	for _, r := range scored {
		switch {
		case r.Err != nil:
			stats.Failed++
			stats.Skips = append(stats.Skips, domain.SkipReason{ArXivID: r.Paper.ArXivID, Reason: "scoring: " + r.Err.Error()})
		case !r.Score.Passed:
			stats.RelevanceFiltered++
			tlog.Debug().Str("arxiv_id", r.Paper.ArXivID).Float64("score", r.Score.Score).Msg("below threshold")
		default:
			accepted = append(accepted, r.Paper)
		}
	}
	scoreByID := make(map[string]domain.RelevanceScore, len(scored))
	for _, r := range scored {
		scoreByID[r.Paper.ArXivID] = r.Score
	}

	entries := p.analyzeAll(ctx, tlog, topic, accepted, scoreByID, opts, &stats)
	stats.Analyzed = len(entries)
	if len(entries) == 0 {
		return stats
	}

	if err := p.publisher.Publish(ctx, topic.Name, entries); err != nil {
		tlog.Error().Err(err).Msg("publish failed, papers remain unmarked")
		stats.Err = err
		return stats
	}

	stats.Published = len(entries)

	// Mark only after both stores accepted the entries, so a processed but
	// unpublished paper is reconsidered next run. A failed marker write does
	// not undo the publish; the paper may be reprocessed next run.
	for _, e := range entries {
		if err := p.ledger.MarkSeen(ctx, topic.Name, e.ArXivID); err != nil {
			tlog.Error().Str("arxiv_id", e.ArXivID).Err(err).Msg("ledger write failed")
			stats.LedgerErrors++
		}
	}
	tlog.Info().Int("published", stats.Published).Msg("topic complete")
	return stats
}

// filterSeen drops papers already recorded in the ledger.
func (p *Pipeline) filterSeen(ctx context.Context, topic string, papers []domain.Paper, stats *domain.TopicStats) ([]domain.Paper, error) {
	fresh := make([]domain.Paper, 0, len(papers))
	for _, paper := range papers {
		seen, err := p.ledger.HasSeen(ctx, topic, paper.ArXivID)
		if err != nil {
			return nil, fmt.Errorf("ledger lookup: %w", err)
		}
		if seen {
			stats.DedupFiltered++
			continue
		}
		fresh = append(fresh, paper)
	}
	return fresh, nil
}

// analyzeAll fans accepted papers out over the bounded worker pool and
// collects report entries. Per-paper failures are recorded as skips.
func (p *Pipeline) analyzeAll(
	ctx context.Context,
	tlog zerolog.Logger,
	topic config.TopicConfig,
	papers []domain.Paper,
	scoreByID map[string]domain.RelevanceScore,
	opts Options,
	stats *domain.TopicStats,
) []domain.ReportEntry {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultAnalysisConcurrency
	}

	var mu sync.Mutex
	entries := make([]domain.ReportEntry, 0, len(papers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, paper := range papers {
		g.Go(func() error {
			entry, err := p.analyzeOne(gctx, topic, paper, scoreByID[paper.ArXivID])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.Failed++
				stats.Skips = append(stats.Skips, domain.SkipReason{ArXivID: paper.ArXivID, Reason: err.Error()})
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		tlog.Warn().Err(err).Msg("analysis aborted")
	}
	return entries
}

// analyzeOne runs content fetch, analysis, and venue resolution for one
// paper.
func (p *Pipeline) analyzeOne(ctx context.Context, topic config.TopicConfig, paper domain.Paper, score domain.RelevanceScore) (domain.ReportEntry, error) {
	plog := observability.WithPaperContext(p.logger, paper.ArXivID)

	content, err := p.content.Fetch(ctx, paper)
	if err != nil {
		return domain.ReportEntry{}, fmt.Errorf("content: %w", err)
	}

	analysis, err := p.analyzer.Analyze(ctx, paper, content, topic.InterestPrompt)
	if err != nil {
		return domain.ReportEntry{}, fmt.Errorf("analysis: %w", err)
	}
	if analysis.Partial() {
		stages := partialStages(analysis)
		plog.Warn().Str("stages", stages).Msg("partial analysis")
	}

	venue := p.venues.Resolve(ctx, paper)

	return domain.ReportEntry{
		ArXivID:  paper.ArXivID,
		Title:    paper.Title,
		URL:      paper.AbsURL,
		Date:     paper.Submitted,
		Venue:    venue,
		Analysis: analysis,
		Score:    score,
		Topic:    topic.Name,
	}, nil
}

// partialStages names the stages that did not complete, for logging.
func partialStages(a *domain.AnalysisResult) string {
	var out []string
	for name, status := range map[string]domain.StageStatus{
		"summary":   a.SummaryStage,
		"questions": a.QuestionsStage,
		"answers":   a.AnswersStage,
		"overview":  a.OverviewStage,
	} {
		if status != domain.StageOK {
			out = append(out, name)
		}
	}
	return strings.Join(out, ",")
}
