// Package analysis runs the staged LLM analysis of a paper: five-aspect
// summary, interest-aligned question generation, evidence-grounded answers,
// and an overview with per-claim confidence.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/llm"
)

// DefaultQuestionCount is the default number of generated questions.
const DefaultQuestionCount = 3

// Config holds engine configuration.
type Config struct {
	// QuestionCount is the number of questions generated per paper.
	QuestionCount int

	// Model overrides the completer's default model when set.
	Model string

	// Temperature is the sampling temperature for analysis calls.
	Temperature float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.QuestionCount <= 0 {
		c.QuestionCount = DefaultQuestionCount
	}
}

// Engine produces AnalysisResults. Safe for concurrent use.
type Engine struct {
	completer llm.Completer
	config    Config
	logger    zerolog.Logger
}

// New creates an analysis engine.
func New(completer llm.Completer, cfg Config, logger zerolog.Logger) *Engine {
	cfg.applyDefaults()

	return &Engine{
		completer: completer,
		config:    cfg,
		logger:    logger.With().Str("component", "analysis").Logger(),
	}
}

// Analyze runs the four stages in order. The summary stage is required: its
// failure fails the paper. Every later stage degrades instead — its status is
// recorded as skipped and the remaining stages run with what is available, so
// a partial result is still produced and publishable. A nil content degrades
// to metadata-only analysis with answers marked unverifiable.
func (e *Engine) Analyze(ctx context.Context, paper domain.Paper, content *domain.PaperContent, interestPrompt string) (*domain.AnalysisResult, error) {
	log := e.logger.With().Str("arxiv_id", paper.ArXivID).Logger()

	result := &domain.AnalysisResult{
		ContentAbsent:  content == nil,
		SummaryStage:   domain.StageOK,
		QuestionsStage: domain.StageOK,
		AnswersStage:   domain.StageOK,
		OverviewStage:  domain.StageOK,
	}

	summary, err := e.summarize(ctx, paper, content)
	if err != nil {
		return nil, &domain.ModelResponseError{Stage: "summary", Message: "summary stage failed", Cause: err}
	}
	result.Summary = summary

	questions, err := e.generateQuestions(ctx, paper, summary, interestPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("question generation failed, degrading to partial result")
		result.QuestionsStage = domain.StageSkipped
		result.AnswersStage = domain.StageSkipped
	} else {
		findings, err := e.answer(ctx, paper, content, questions)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("answering failed, degrading to partial result")
			result.AnswersStage = domain.StageSkipped
			for _, q := range questions {
				result.Findings = append(result.Findings, domain.Finding{Question: q, Unverifiable: true})
			}
		} else {
			result.Findings = findings
		}
	}

	overview, claims, err := e.synthesize(ctx, paper, summary, result.Findings)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("overview synthesis failed, degrading to partial result")
		result.OverviewStage = domain.StageSkipped
	} else {
		result.Overview = overview
		result.Claims = claims
	}

	return result, nil
}

// summaryPayload is the JSON shape of the stage (a) response.
type summaryPayload struct {
	Problem     string `json:"problem"`
	Solution    string `json:"solution"`
	Methodology string `json:"methodology"`
	Experiments string `json:"experiments"`
	Conclusion  string `json:"conclusion"`
}

// summarize runs stage (a).
func (e *Engine) summarize(ctx context.Context, paper domain.Paper, content *domain.PaperContent) (domain.Summary, error) {
	var payload summaryPayload
	if err := e.ask(ctx, summarySystemPrompt, buildSummaryPrompt(paper, content), &payload); err != nil {
		return domain.Summary{}, err
	}

	if payload.Problem == "" && payload.Solution == "" {
		return domain.Summary{}, fmt.Errorf("summary response missing required aspects")
	}

	return domain.Summary{
		Problem:     payload.Problem,
		Solution:    payload.Solution,
		Methodology: payload.Methodology,
		Experiments: payload.Experiments,
		Conclusion:  payload.Conclusion,
	}, nil
}

// questionsPayload is the JSON shape of the stage (b) response.
type questionsPayload struct {
	Questions []string `json:"questions"`
}

// generateQuestions runs stage (b).
func (e *Engine) generateQuestions(ctx context.Context, paper domain.Paper, summary domain.Summary, interestPrompt string) ([]string, error) {
	var payload questionsPayload
	if err := e.ask(ctx, questionsSystemPrompt, buildQuestionsPrompt(paper, summary, interestPrompt, e.config.QuestionCount), &payload); err != nil {
		return nil, err
	}

	questions := make([]string, 0, e.config.QuestionCount)
	for _, q := range payload.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == e.config.QuestionCount {
			break
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	return questions, nil
}

// answersPayload is the JSON shape of the stage (c) response.
type answersPayload struct {
	Answers []struct {
		Question     string  `json:"question"`
		Answer       string  `json:"answer"`
		Quote        string  `json:"quote"`
		Unverifiable bool    `json:"unverifiable"`
		Confidence   float64 `json:"confidence"`
	} `json:"answers"`
}

// answer runs stage (c). When content is nil every finding is forced to
// unverifiable regardless of what the model claims.
func (e *Engine) answer(ctx context.Context, paper domain.Paper, content *domain.PaperContent, questions []string) ([]domain.Finding, error) {
	var payload answersPayload
	if err := e.ask(ctx, answersSystemPrompt, buildAnswersPrompt(paper, content, questions), &payload); err != nil {
		return nil, err
	}
	if len(payload.Answers) == 0 {
		return nil, fmt.Errorf("model returned no answers")
	}

	findings := make([]domain.Finding, 0, len(questions))
	for i, q := range questions {
		f := domain.Finding{Question: q, Unverifiable: content == nil}
		if i < len(payload.Answers) {
			a := payload.Answers[i]
			f.Answer = strings.TrimSpace(a.Answer)
			f.Quote = strings.TrimSpace(a.Quote)
			f.Confidence = clamp01(a.Confidence)
			if content == nil || a.Unverifiable || f.Quote == "" {
				f.Unverifiable = true
				f.Quote = ""
			}
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// overviewPayload is the JSON shape of the stage (d) response.
type overviewPayload struct {
	Overview string `json:"overview"`
	Claims   []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"claims"`
}

// synthesize runs stage (d).
func (e *Engine) synthesize(ctx context.Context, paper domain.Paper, summary domain.Summary, findings []domain.Finding) (string, []domain.Claim, error) {
	var payload overviewPayload
	if err := e.ask(ctx, overviewSystemPrompt, buildOverviewPrompt(paper, summary, findings), &payload); err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(payload.Overview) == "" {
		return "", nil, fmt.Errorf("model returned an empty overview")
	}

	claims := make([]domain.Claim, 0, len(payload.Claims))
	for _, c := range payload.Claims {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		claims = append(claims, domain.Claim{Text: text, Confidence: clamp01(c.Confidence)})
	}
	return strings.TrimSpace(payload.Overview), claims, nil
}

// ask performs one completion and unmarshals the JSON response into out.
// Parse failures are permanent for the stage; transient transport errors are
// already retried inside the completer.
func (e *Engine) ask(ctx context.Context, system, user string, out any) error {
	raw, err := e.completer.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Model:       e.config.Model,
		Temperature: e.config.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), out); err != nil {
		return fmt.Errorf("parsing stage response: %w", err)
	}
	return nil
}

// extractJSONObject returns the outermost {...} span, tolerating code fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
