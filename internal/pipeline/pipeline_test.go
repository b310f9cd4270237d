package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/arxiv-radar/internal/config"
	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/ledger"
	"github.com/scholarstream/arxiv-radar/internal/relevance"
	"github.com/scholarstream/arxiv-radar/internal/source"
)

type stubSource struct {
	papers []domain.Paper
	err    error
}

func (s *stubSource) Fetch(ctx context.Context, criteria source.SearchCriteria) ([]domain.Paper, error) {
	return s.papers, s.err
}

type stubScorer struct {
	scores map[string]float64 // arxiv id -> score; missing means scoring error
}

func (s *stubScorer) ScoreAll(ctx context.Context, papers []domain.Paper, interest string) ([]relevance.Result, error) {
	results := make([]relevance.Result, len(papers))
	for i, p := range papers {
		score, ok := s.scores[p.ArXivID]
		if !ok {
			results[i] = relevance.Result{Paper: p, Err: &domain.ModelResponseError{Stage: "relevance", Message: "unparseable"}}
			continue
		}
		results[i] = relevance.Result{Paper: p, Score: domain.RelevanceScore{Score: score, Passed: score >= 60}}
	}
	return results, nil
}

type stubContent struct{ absent bool }

func (s *stubContent) Fetch(ctx context.Context, paper domain.Paper) (*domain.PaperContent, error) {
	if s.absent {
		return nil, nil
	}
	return &domain.PaperContent{Body: "full text", Source: domain.ContentSourceHTML}, nil
}

type stubAnalyzer struct {
	failIDs map[string]bool
}

func (s *stubAnalyzer) Analyze(ctx context.Context, paper domain.Paper, content *domain.PaperContent, interest string) (*domain.AnalysisResult, error) {
	if s.failIDs[paper.ArXivID] {
		return nil, &domain.ModelResponseError{Stage: "summary", Message: "failed"}
	}
	return &domain.AnalysisResult{
		Summary:        domain.Summary{Problem: "P", Solution: "S"},
		Overview:       "O",
		ContentAbsent:  content == nil,
		SummaryStage:   domain.StageOK,
		QuestionsStage: domain.StageOK,
		AnswersStage:   domain.StageOK,
		OverviewStage:  domain.StageOK,
	}, nil
}

type stubVenues struct{}

func (stubVenues) Resolve(ctx context.Context, paper domain.Paper) domain.VenueInfo {
	return domain.VenueInfo{Venue: domain.DefaultVenue, Source: domain.VenueSourceDefault}
}

type stubPublisher struct {
	published map[string][]domain.ReportEntry
	err       error
}

func (s *stubPublisher) Publish(ctx context.Context, topic string, entries []domain.ReportEntry) error {
	if s.err != nil {
		return s.err
	}
	if s.published == nil {
		s.published = make(map[string][]domain.ReportEntry)
	}
	s.published[topic] = append(s.published[topic], entries...)
	return nil
}

// failMarkLedger rejects every seen-marker write.
type failMarkLedger struct{ ledger.Store }

func (f *failMarkLedger) MarkSeen(ctx context.Context, topic, arxivID string) error {
	return errors.New("database is locked")
}

func paper(id string, day int) domain.Paper {
	return domain.Paper{
		ArXivID:   id,
		Title:     "Paper " + id,
		Abstract:  "abstract",
		AbsURL:    "https://arxiv.org/abs/" + id,
		Submitted: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func topicCfg(name string) config.TopicConfig {
	return config.TopicConfig{
		Name:           name,
		Label:          name,
		Query:          config.QueryConfig{Categories: []string{"cs.SE"}},
		InterestPrompt: "automated program repair",
	}
}

func newTestPipeline(src Source, scorer Scorer, analyzer Analyzer, pub Publisher, led ledger.Store) *Pipeline {
	return New(src, scorer, &stubContent{}, analyzer, stubVenues{}, pub, led, nil, zerolog.Nop())
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path publishes and marks seen", func(t *testing.T) {
		led := ledger.NewMemory()
		pub := &stubPublisher{}
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15), paper("2401.00002", 16)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 80, "2401.00002": 70}},
			&stubAnalyzer{}, pub, led,
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}})
		require.NoError(t, err)

		require.Len(t, report.Topics, 1)
		ts := report.Topics[0]
		assert.Equal(t, 2, ts.Discovered)
		assert.Equal(t, 2, ts.Analyzed)
		assert.Equal(t, 2, ts.Published)
		assert.Zero(t, ts.Failed)
		assert.Equal(t, domain.RunOK, report.Status)
		assert.NotEmpty(t, report.RunID)

		assert.Len(t, pub.published["repair"], 2)
		seen, _ := led.HasSeen(ctx, "repair", "2401.00001")
		assert.True(t, seen)
	})

	t.Run("seen papers are filtered", func(t *testing.T) {
		led := ledger.NewMemory()
		require.NoError(t, led.MarkSeen(ctx, "repair", "2401.00001"))

		pub := &stubPublisher{}
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15), paper("2401.00002", 16)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 80, "2401.00002": 70}},
			&stubAnalyzer{}, pub, led,
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}})
		require.NoError(t, err)

		ts := report.Topics[0]
		assert.Equal(t, 1, ts.DedupFiltered)
		assert.Equal(t, 1, ts.Published)
		assert.Len(t, pub.published["repair"], 1)
		assert.Equal(t, "2401.00002", pub.published["repair"][0].ArXivID)
	})

	t.Run("low score is filtered, not marked seen", func(t *testing.T) {
		led := ledger.NewMemory()
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 45}},
			&stubAnalyzer{}, &stubPublisher{}, led,
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}})
		require.NoError(t, err)

		ts := report.Topics[0]
		assert.Equal(t, 1, ts.RelevanceFiltered)
		assert.Zero(t, ts.Published)

		seen, _ := led.HasSeen(ctx, "repair", "2401.00001")
		assert.False(t, seen, "discarded paper must be reconsidered in future runs")
	})

	t.Run("scoring failure skips the paper only", func(t *testing.T) {
		led := ledger.NewMemory()
		pub := &stubPublisher{}
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15), paper("2401.00002", 16)}},
			&stubScorer{scores: map[string]float64{"2401.00002": 70}},
			&stubAnalyzer{}, pub, led,
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}})
		require.NoError(t, err)

		ts := report.Topics[0]
		assert.Equal(t, 1, ts.Failed)
		assert.Equal(t, 1, ts.Published)
		require.Len(t, ts.Skips, 1)
		assert.Equal(t, "2401.00001", ts.Skips[0].ArXivID)
		assert.Equal(t, domain.RunPartial, report.Status)
	})

	t.Run("analysis failure skips the paper only", func(t *testing.T) {
		led := ledger.NewMemory()
		pub := &stubPublisher{}
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15), paper("2401.00002", 16)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 80, "2401.00002": 70}},
			&stubAnalyzer{failIDs: map[string]bool{"2401.00001": true}}, pub, led,
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}})
		require.NoError(t, err)

		ts := report.Topics[0]
		assert.Equal(t, 1, ts.Failed)
		assert.Equal(t, 1, ts.Published)

		seen, _ := led.HasSeen(ctx, "repair", "2401.00001")
		assert.False(t, seen)
	})

	t.Run("source failure isolates the topic", func(t *testing.T) {
		led := ledger.NewMemory()
		pub := &stubPublisher{}

		good := &stubSource{papers: []domain.Paper{paper("2401.00001", 15)}}
		scorer := &stubScorer{scores: map[string]float64{"2401.00001": 80}}

		// The pipeline has one source; simulate the failing topic by a
		// source that errors only for it.
		src := &topicSwitchSource{
			byTopic: map[string]*stubSource{
				"broken": {err: &domain.SourceError{Source: "arXiv", Op: "fetch", Cause: errors.New("down")}},
				"repair": good,
			},
		}
		p := newTestPipeline(src, scorer, &stubAnalyzer{}, pub, led)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("broken"), topicCfg("repair")}})
		require.NoError(t, err)

		require.Len(t, report.Topics, 2)
		assert.ErrorIs(t, report.Topics[0].Err, domain.ErrSourceUnavailable)
		assert.Equal(t, 1, report.Topics[1].Published)
		assert.Equal(t, domain.RunPartial, report.Status)
	})

	t.Run("publish failure leaves papers unmarked", func(t *testing.T) {
		led := ledger.NewMemory()
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 80}},
			&stubAnalyzer{},
			&stubPublisher{err: &domain.PublishError{Store: "quick-table", Cause: domain.ErrPublishConflict}},
			led,
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}})
		require.NoError(t, err)

		ts := report.Topics[0]
		assert.ErrorIs(t, ts.Err, domain.ErrPublishConflict)
		assert.Zero(t, ts.Published)

		seen, _ := led.HasSeen(ctx, "repair", "2401.00001")
		assert.False(t, seen)
	})

	t.Run("ledger write failure still counts the publish", func(t *testing.T) {
		led := ledger.NewMemory()
		pub := &stubPublisher{}
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 80}},
			&stubAnalyzer{},
			pub,
			&failMarkLedger{Store: led},
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}})
		require.NoError(t, err)

		ts := report.Topics[0]
		assert.Len(t, pub.published["repair"], 1)
		assert.Equal(t, 1, ts.Published)
		assert.Equal(t, 1, ts.LedgerErrors)

		// The marker never landed, so the paper is fair game next run.
		seen, _ := led.HasSeen(ctx, "repair", "2401.00001")
		assert.False(t, seen)
	})

	t.Run("paper limit caps work", func(t *testing.T) {
		led := ledger.NewMemory()
		pub := &stubPublisher{}
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15), paper("2401.00002", 16), paper("2401.00003", 17)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 80, "2401.00002": 80, "2401.00003": 80}},
			&stubAnalyzer{}, pub, led,
		)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topicCfg("repair")}, PaperLimit: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, report.Topics[0].Published)
	})

	t.Run("topic filter restricts the run", func(t *testing.T) {
		led := ledger.NewMemory()
		pub := &stubPublisher{}
		p := newTestPipeline(
			&stubSource{papers: []domain.Paper{paper("2401.00001", 15)}},
			&stubScorer{scores: map[string]float64{"2401.00001": 80}},
			&stubAnalyzer{}, pub, led,
		)

		report, err := p.Run(ctx, Options{
			Topics:      []config.TopicConfig{topicCfg("repair"), topicCfg("testing")},
			TopicFilter: "repair",
		})
		require.NoError(t, err)
		require.Len(t, report.Topics, 1)
		assert.Equal(t, "repair", report.Topics[0].Topic)
	})

	t.Run("empty categories is a topic config error", func(t *testing.T) {
		led := ledger.NewMemory()
		topic := topicCfg("repair")
		topic.Query.Categories = nil
		p := newTestPipeline(&stubSource{}, &stubScorer{}, &stubAnalyzer{}, &stubPublisher{}, led)

		report, err := p.Run(ctx, Options{Topics: []config.TopicConfig{topic}})
		require.NoError(t, err)
		assert.ErrorIs(t, report.Topics[0].Err, domain.ErrConfig)
		assert.Equal(t, domain.RunFailed, report.Status)
	})
}

// topicSwitchSource routes Fetch by criteria topic.
type topicSwitchSource struct {
	byTopic map[string]*stubSource
}

func (s *topicSwitchSource) Fetch(ctx context.Context, criteria source.SearchCriteria) ([]domain.Paper, error) {
	src, ok := s.byTopic[criteria.Topic]
	if !ok {
		return nil, errors.New("unknown topic")
	}
	return src.Fetch(ctx, criteria)
}
