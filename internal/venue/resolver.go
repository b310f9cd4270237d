// Package venue resolves a paper's publication venue from its metadata:
// rule matching first, LLM extraction second, the "arXiv" default last.
package venue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/llm"
)

const extractSystemPrompt = `You extract a publication venue from an arXiv comment line.
Respond with a JSON object: {"venue": "<venue name with year if present, or empty string>"}.
Return an empty string unless the comment clearly names a conference, workshop, or journal.`

// genericAnswers are model outputs that name no real venue and are rejected.
var genericAnswers = map[string]struct{}{
	"arxiv": {}, "preprint": {}, "n/a": {}, "none": {}, "unknown": {},
	"not specified": {}, "no venue": {},
}

// Config holds resolver configuration.
type Config struct {
	// Model overrides the completer's default model. Extraction is a cheap
	// stage; this is normally the light model.
	Model string
}

// Resolver determines venues. Safe for concurrent use.
type Resolver struct {
	completer llm.Completer
	config    Config
	logger    zerolog.Logger
}

// New creates a venue resolver. The completer may be nil, in which case the
// LLM fallback step is skipped and unmatched comments fall through to the
// default.
func New(completer llm.Completer, cfg Config, logger zerolog.Logger) *Resolver {
	return &Resolver{
		completer: completer,
		config:    cfg,
		logger:    logger.With().Str("component", "venue").Logger(),
	}
}

// Resolve determines the venue for a paper. The steps terminate on first
// match: rule table against the comment field, LLM extraction when the
// comment is non-empty, then the literal "arXiv" default. Resolution never
// fails; LLM errors fall through to the default.
func (r *Resolver) Resolve(ctx context.Context, paper domain.Paper) domain.VenueInfo {
	comment := strings.TrimSpace(paper.Comment)

	if comment != "" {
		if v, ok := matchRules(comment); ok {
			return domain.VenueInfo{Venue: v, Source: domain.VenueSourceRule}
		}

		if r.completer != nil {
			if v, ok := r.extract(ctx, paper.ArXivID, comment); ok {
				return domain.VenueInfo{Venue: v, Source: domain.VenueSourceLLM}
			}
		}
	}

	return domain.VenueInfo{Venue: domain.DefaultVenue, Source: domain.VenueSourceDefault}
}

// extractPayload is the JSON shape of the extraction response.
type extractPayload struct {
	Venue string `json:"venue"`
}

// extract asks the model to pull a venue out of the comment. A non-empty,
// non-generic answer is accepted; anything else reports no match.
func (r *Resolver) extract(ctx context.Context, arxivID, comment string) (string, bool) {
	raw, err := r.completer.Complete(ctx, llm.Request{
		System:   extractSystemPrompt,
		User:     "Comment: " + comment,
		Model:    r.config.Model,
		JSONMode: true,
	})
	if err != nil {
		r.logger.Debug().Str("arxiv_id", arxivID).Err(err).Msg("venue extraction failed, using default")
		return "", false
	}

	var payload extractPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		r.logger.Debug().Str("arxiv_id", arxivID).Err(err).Msg("venue extraction unparseable, using default")
		return "", false
	}

	v := strings.TrimSpace(payload.Venue)
	if v == "" {
		return "", false
	}
	if _, generic := genericAnswers[strings.ToLower(v)]; generic {
		return "", false
	}
	return v, true
}
