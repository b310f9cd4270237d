// Package llm provides the chat-completion client used for relevance
// scoring, paper analysis, and venue resolution.
//
// The package defines a provider-neutral Completer interface and an
// OpenAI-compatible implementation. Callers build their own prompts; this
// package only handles transport, retries, and error classification.
package llm

import "context"

// Request describes a single chat completion.
type Request struct {
	// System is the system prompt. Optional.
	System string

	// User is the user prompt.
	User string

	// Model overrides the client's default model when set. Cheaper stages
	// (relevance scoring, venue resolution) pass the light model here.
	Model string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the client default.
	MaxTokens int

	// JSONMode requests a JSON object response from the provider.
	JSONMode bool
}

// Completer produces a chat completion for a request.
type Completer interface {
	// Complete returns the raw completion text. Transport and provider
	// failures are returned as *APIError.
	Complete(ctx context.Context, req Request) (string, error)

	// Model returns the default model identifier.
	Model() string
}
