package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the pipeline error taxonomy. Paper-level errors
// never propagate to topic level; topic-level errors never propagate to other
// topics. Only a configuration error at startup is globally fatal.
var (
	// ErrConfig indicates missing or invalid configuration. Fatal for the
	// affected topic (or the whole run when raised at startup).
	ErrConfig = errors.New("configuration error")

	// ErrSourceUnavailable indicates the feed or content source exhausted its
	// retries. The affected paper or topic is skipped; the run continues.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrModelResponse indicates an unparseable or empty model response. The
	// affected stage is marked partial or the paper skipped; never fatal for
	// the run.
	ErrModelResponse = errors.New("invalid model response")

	// ErrPublishConflict indicates a rejected push. Retried once, then fatal
	// for that topic's output only.
	ErrPublishConflict = errors.New("publish conflict")
)

// ConfigError reports an invalid or missing configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel for use with errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// SourceError reports an upstream source failure after retries were exhausted.
type SourceError struct {
	Source string
	Op     string
	Cause  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Cause)
}

func (e *SourceError) Unwrap() error {
	return ErrSourceUnavailable
}

// ModelResponseError reports an unusable LLM response for a pipeline stage.
type ModelResponseError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *ModelResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model response (%s): %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("model response (%s): %s", e.Stage, e.Message)
}

func (e *ModelResponseError) Unwrap() error {
	return ErrModelResponse
}

// PublishError reports a failed push to an output store. The cause keeps
// its own identity: only genuine commit conflicts carry ErrPublishConflict,
// auth and rate-limit failures unwrap to their own sentinels.
type PublishError struct {
	Store string
	Cause error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Store, e.Cause)
}

func (e *PublishError) Unwrap() error {
	return e.Cause
}
