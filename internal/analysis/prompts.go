package analysis

import (
	"fmt"
	"strings"

	"github.com/scholarstream/arxiv-radar/internal/domain"
)

const summarySystemPrompt = `You summarize academic papers for researchers.
Respond with a JSON object with exactly these string keys:
{"problem": ..., "solution": ..., "methodology": ..., "experiments": ..., "conclusion": ...}.
Each value is one to three sentences. If the provided material does not cover an aspect, say so briefly rather than inventing detail.`

const questionsSystemPrompt = `You generate questions a researcher would ask about a paper, guided by their stated interests.
Respond with a JSON object: {"questions": ["...", ...]}. Questions must be answerable from the paper itself, specific, and non-overlapping.`

const answersSystemPrompt = `You answer questions about a paper strictly from the provided text.
Respond with a JSON object:
{"answers": [{"question": ..., "answer": ..., "quote": ..., "unverifiable": <bool>, "confidence": <0.0-1.0>}, ...]}.
When full text is provided, every answer must include a short verbatim quote supporting it.
When only the abstract is provided, set "unverifiable": true, leave "quote" empty, and lower confidence accordingly.`

const overviewSystemPrompt = `You write a short overview of a paper for a research digest, synthesizing a summary and Q&A findings.
Respond with a JSON object:
{"overview": "<two or three paragraphs>", "claims": [{"text": ..., "confidence": <0.0-1.0>}, ...]}.
Claims are the major takeaways a reader would rely on; score each by how well the provided material supports it.`

// buildPaperHeader renders the metadata block shared by all stage prompts.
func buildPaperHeader(paper domain.Paper) string {
	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(paper.Title)
	if len(paper.Authors) > 0 {
		sb.WriteString("\nAuthors: ")
		sb.WriteString(paper.AuthorNames())
	}
	if len(paper.Categories) > 0 {
		sb.WriteString("\nCategories: ")
		sb.WriteString(strings.Join(paper.Categories, ", "))
	}
	sb.WriteString("\nAbstract:\n")
	sb.WriteString(paper.Abstract)
	return sb.String()
}

// buildSummaryPrompt assembles the stage (a) prompt. When content is nil the
// model works from the abstract alone.
func buildSummaryPrompt(paper domain.Paper, content *domain.PaperContent) string {
	var sb strings.Builder
	sb.WriteString(buildPaperHeader(paper))
	if content != nil {
		sb.WriteString("\n\nFull text:\n")
		sb.WriteString(content.Body)
	} else {
		sb.WriteString("\n\nNo full text is available; summarize from the abstract alone.")
	}
	return sb.String()
}

// buildQuestionsPrompt assembles the stage (b) prompt from the summary.
func buildQuestionsPrompt(paper domain.Paper, summary domain.Summary, interestPrompt string, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate exactly %d questions.\n\nResearcher interests:\n%s\n\n", count, interestPrompt)
	sb.WriteString(buildPaperHeader(paper))
	sb.WriteString("\n\nPaper summary:\n")
	sb.WriteString(renderSummary(summary))
	return sb.String()
}

// buildAnswersPrompt assembles the stage (c) prompt.
func buildAnswersPrompt(paper domain.Paper, content *domain.PaperContent, questions []string) string {
	var sb strings.Builder
	sb.WriteString(buildPaperHeader(paper))
	if content != nil {
		sb.WriteString("\n\nFull text:\n")
		sb.WriteString(content.Body)
	} else {
		sb.WriteString("\n\nNo full text is available; only the abstract above is provided.")
	}
	sb.WriteString("\n\nQuestions:\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	return sb.String()
}

// buildOverviewPrompt assembles the stage (d) prompt from prior stage output.
func buildOverviewPrompt(paper domain.Paper, summary domain.Summary, findings []domain.Finding) string {
	var sb strings.Builder
	sb.WriteString(buildPaperHeader(paper))
	sb.WriteString("\n\nPaper summary:\n")
	sb.WriteString(renderSummary(summary))
	if len(findings) > 0 {
		sb.WriteString("\n\nQ&A findings:\n")
		for _, f := range findings {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", f.Question, f.Answer)
			if f.Unverifiable {
				sb.WriteString("(unverified: no full text was available)\n")
			}
		}
	}
	return sb.String()
}

// renderSummary flattens a Summary into labeled lines for downstream prompts.
func renderSummary(s domain.Summary) string {
	return strings.Join([]string{
		"Problem: " + s.Problem,
		"Solution: " + s.Solution,
		"Methodology: " + s.Methodology,
		"Experiments: " + s.Experiments,
		"Conclusion: " + s.Conclusion,
	}, "\n")
}
