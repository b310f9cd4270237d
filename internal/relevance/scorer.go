// Package relevance scores papers against a topic's interest description.
package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/llm"
)

// Default values for the scorer.
const (
	DefaultThreshold   = 60.0
	DefaultConcurrency = 4
)

const scoringSystemPrompt = `You judge how relevant an academic paper is to a researcher's stated interests.
Respond with a JSON object: {"score": <integer 0-100>, "rationale": "<one or two sentences>"}.
100 means the paper is squarely about the stated interests; 0 means unrelated.`

// Config holds scorer configuration.
type Config struct {
	// Threshold is the inclusive accept threshold on the 0-100 scale.
	Threshold float64

	// Concurrency bounds parallel scoring calls within a batch.
	Concurrency int

	// Model overrides the completer's default model. Scoring is a cheap
	// stage; this is normally the light model.
	Model string

	// Temperature is the sampling temperature for scoring calls.
	Temperature float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// Scorer scores papers with an LLM. Safe for concurrent use.
type Scorer struct {
	completer llm.Completer
	config    Config
	logger    zerolog.Logger
}

// New creates a relevance scorer.
func New(completer llm.Completer, cfg Config, logger zerolog.Logger) *Scorer {
	cfg.applyDefaults()

	return &Scorer{
		completer: completer,
		config:    cfg,
		logger:    logger.With().Str("component", "relevance").Logger(),
	}
}

// Threshold returns the inclusive accept threshold.
func (s *Scorer) Threshold() float64 {
	return s.config.Threshold
}

// scorePayload is the JSON shape the model must return.
type scorePayload struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Score scores one paper against the topic's interest description. An
// unparseable model response is re-asked once; a second failure returns a
// ModelResponseError and the paper should be skipped, not retried.
func (s *Scorer) Score(ctx context.Context, paper domain.Paper, interestPrompt string) (domain.RelevanceScore, error) {
	userPrompt := buildScoringPrompt(paper, interestPrompt)

	payload, err := s.ask(ctx, userPrompt)
	if err != nil {
		s.logger.Debug().Str("arxiv_id", paper.ArXivID).Err(err).Msg("unparseable score, re-asking once")
		payload, err = s.ask(ctx, userPrompt+"\n\nYour previous reply was not valid JSON. Reply with ONLY the JSON object.")
		if err != nil {
			return domain.RelevanceScore{}, &domain.ModelResponseError{
				Stage:   "relevance",
				Message: "score response unparseable after re-ask",
				Cause:   err,
			}
		}
	}

	score := clamp(payload.Score, 0, 100)
	return domain.RelevanceScore{
		Score:     score,
		Rationale: strings.TrimSpace(payload.Rationale),
		Passed:    score >= s.config.Threshold,
	}, nil
}

// Result pairs a paper with its scoring outcome. Err is set when the paper
// could not be scored; the paper is then skipped, never failed wholesale.
type Result struct {
	Paper domain.Paper
	Score domain.RelevanceScore
	Err   error
}

// ScoreAll scores a batch of papers concurrently, bounded by the configured
// concurrency limit. Results are positionally aligned with the input. The
// only returned error is context cancellation.
func (s *Scorer) ScoreAll(ctx context.Context, papers []domain.Paper, interestPrompt string) ([]Result, error) {
	results := make([]Result, len(papers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for i, paper := range papers {
		g.Go(func() error {
			score, err := s.Score(gctx, paper, interestPrompt)
			results[i] = Result{Paper: paper, Score: score, Err: err}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ask performs one scoring call and parses the response.
func (s *Scorer) ask(ctx context.Context, userPrompt string) (scorePayload, error) {
	raw, err := s.completer.Complete(ctx, llm.Request{
		System:      scoringSystemPrompt,
		User:        userPrompt,
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return scorePayload{}, err
	}

	var payload scorePayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return scorePayload{}, fmt.Errorf("parsing score response: %w", err)
	}
	return payload, nil
}

// buildScoringPrompt assembles the user prompt from paper metadata and the
// topic's interest description.
func buildScoringPrompt(paper domain.Paper, interestPrompt string) string {
	var sb strings.Builder
	sb.WriteString("Research interests:\n")
	sb.WriteString(interestPrompt)
	sb.WriteString("\n\nPaper title: ")
	sb.WriteString(paper.Title)
	if len(paper.Authors) > 0 {
		sb.WriteString("\nAuthors: ")
		sb.WriteString(paper.AuthorNames())
	}
	sb.WriteString("\n\nAbstract:\n")
	sb.WriteString(paper.Abstract)
	return sb.String()
}

// extractJSONObject strips code fences and surrounding prose, returning the
// outermost {...} span. Models occasionally wrap JSON despite JSON mode.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
