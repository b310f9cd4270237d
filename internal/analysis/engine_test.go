package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/llm"
)

const (
	summaryJSON = `{"problem": "P", "solution": "S", "methodology": "M", "experiments": "E", "conclusion": "C"}`

	questionsJSON = `{"questions": ["How does it work?", "What is evaluated?", "What are the limits?"]}`

	answersJSON = `{"answers": [
		{"question": "How does it work?", "answer": "By doing X.", "quote": "we do X", "unverifiable": false, "confidence": 0.9},
		{"question": "What is evaluated?", "answer": "Benchmarks.", "quote": "on benchmarks", "unverifiable": false, "confidence": 0.8},
		{"question": "What are the limits?", "answer": "Scale.", "quote": "does not scale", "unverifiable": false, "confidence": 0.7}
	]}`

	overviewJSON = `{"overview": "A solid paper.", "claims": [{"text": "X works", "confidence": 0.85}]}`
)

// scriptedCompleter routes responses by matching a substring of the system
// prompt. Empty response means an error for that stage.
type scriptedCompleter struct {
	byStage map[string]string
}

func (s *scriptedCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	for marker, resp := range s.byStage {
		if strings.Contains(req.System, marker) {
			if resp == "" {
				return "", &llm.APIError{Provider: "openai", StatusCode: 400, Message: "bad request"}
			}
			return resp, nil
		}
	}
	return "", &llm.APIError{Provider: "openai", StatusCode: 400, Message: "unmatched stage"}
}

func (s *scriptedCompleter) Model() string { return "stub" }

func allStagesOK() *scriptedCompleter {
	return &scriptedCompleter{byStage: map[string]string{
		"summarize academic papers": summaryJSON,
		"generate questions":        questionsJSON,
		"answer questions":          answersJSON,
		"short overview":            overviewJSON,
	}}
}

func newTestEngine(c llm.Completer) *Engine {
	return New(c, Config{QuestionCount: 3}, zerolog.Nop())
}

func testPaper() domain.Paper {
	return domain.Paper{ArXivID: "2401.00001", Title: "T", Abstract: "A"}
}

func testContent() *domain.PaperContent {
	return &domain.PaperContent{Body: "we do X on benchmarks but it does not scale", Source: domain.ContentSourceHTML}
}

func TestAnalyze(t *testing.T) {
	t.Run("all stages succeed", func(t *testing.T) {
		result, err := newTestEngine(allStagesOK()).Analyze(context.Background(), testPaper(), testContent(), "interests")
		require.NoError(t, err)

		assert.False(t, result.Partial())
		assert.False(t, result.ContentAbsent)
		assert.Equal(t, "P", result.Summary.Problem)
		require.Len(t, result.Findings, 3)
		assert.Equal(t, "we do X", result.Findings[0].Quote)
		assert.False(t, result.Findings[0].Unverifiable)
		assert.Equal(t, "A solid paper.", result.Overview)
		require.Len(t, result.Claims, 1)
		assert.Equal(t, 0.85, result.Claims[0].Confidence)
	})

	t.Run("summary failure fails the paper", func(t *testing.T) {
		c := allStagesOK()
		c.byStage["summarize academic papers"] = ""

		_, err := newTestEngine(c).Analyze(context.Background(), testPaper(), testContent(), "interests")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrModelResponse)
	})

	t.Run("question failure degrades to partial", func(t *testing.T) {
		c := allStagesOK()
		c.byStage["generate questions"] = ""

		result, err := newTestEngine(c).Analyze(context.Background(), testPaper(), testContent(), "interests")
		require.NoError(t, err)

		assert.True(t, result.Partial())
		assert.Equal(t, domain.StageSkipped, result.QuestionsStage)
		assert.Equal(t, domain.StageSkipped, result.AnswersStage)
		assert.Empty(t, result.Findings)
		// Overview still runs on the summary alone.
		assert.Equal(t, domain.StageOK, result.OverviewStage)
		assert.Equal(t, "A solid paper.", result.Overview)
	})

	t.Run("answer failure keeps unanswered questions", func(t *testing.T) {
		c := allStagesOK()
		c.byStage["answer questions"] = ""

		result, err := newTestEngine(c).Analyze(context.Background(), testPaper(), testContent(), "interests")
		require.NoError(t, err)

		assert.True(t, result.Partial())
		assert.Equal(t, domain.StageSkipped, result.AnswersStage)
		require.Len(t, result.Findings, 3)
		for _, f := range result.Findings {
			assert.True(t, f.Unverifiable)
			assert.Empty(t, f.Answer)
		}
	})

	t.Run("overview failure degrades to partial", func(t *testing.T) {
		c := allStagesOK()
		c.byStage["short overview"] = ""

		result, err := newTestEngine(c).Analyze(context.Background(), testPaper(), testContent(), "interests")
		require.NoError(t, err)

		assert.True(t, result.Partial())
		assert.Equal(t, domain.StageSkipped, result.OverviewStage)
		assert.Empty(t, result.Overview)
	})

	t.Run("absent content forces unverifiable findings", func(t *testing.T) {
		result, err := newTestEngine(allStagesOK()).Analyze(context.Background(), testPaper(), nil, "interests")
		require.NoError(t, err)

		assert.True(t, result.ContentAbsent)
		require.Len(t, result.Findings, 3)
		for _, f := range result.Findings {
			assert.True(t, f.Unverifiable)
			assert.Empty(t, f.Quote)
		}
	})

	t.Run("answer without quote is unverifiable", func(t *testing.T) {
		c := allStagesOK()
		c.byStage["answer questions"] = `{"answers": [
			{"question": "q1", "answer": "a1", "quote": "", "unverifiable": false, "confidence": 0.9},
			{"question": "q2", "answer": "a2", "quote": "proof", "unverifiable": false, "confidence": 0.9},
			{"question": "q3", "answer": "a3", "quote": "more proof", "unverifiable": false, "confidence": 0.9}
		]}`

		result, err := newTestEngine(c).Analyze(context.Background(), testPaper(), testContent(), "interests")
		require.NoError(t, err)
		assert.True(t, result.Findings[0].Unverifiable)
		assert.False(t, result.Findings[1].Unverifiable)
	})

	t.Run("question count capped", func(t *testing.T) {
		c := allStagesOK()
		e := New(c, Config{QuestionCount: 2}, zerolog.Nop())

		result, err := e.Analyze(context.Background(), testPaper(), testContent(), "interests")
		require.NoError(t, err)
		assert.Len(t, result.Findings, 2)
	})
}
