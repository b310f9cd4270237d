// Package publish merges analysis results into the two output stores in the
// publishing repository: the quick table and the detailed report tree. Both
// merges are idempotent; republishing the same entries changes nothing.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/github"
)

// Defaults for the publisher.
const (
	DefaultBranch    = "updates"
	DefaultTablePath = "papers.md"
	DefaultReportDir = "reports"
)

// Repo is the slice of the GitHub client the publisher needs. Tests
// substitute an in-memory implementation.
type Repo interface {
	GetFile(ctx context.Context, branch, path string) (*github.File, error)
	PutFile(ctx context.Context, branch, path, message string, content []byte, sha string) error
	EnsureBranch(ctx context.Context, branch string) error
}

// Config holds publisher configuration.
type Config struct {
	// Branch is the branch both stores live on.
	Branch string

	// TablePath is the path of the quick-table file.
	TablePath string

	// ReportDir is the directory holding report units and their index.
	ReportDir string

	// DryRun reads and merges but never writes.
	DryRun bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.TablePath == "" {
		c.TablePath = DefaultTablePath
	}
	if c.ReportDir == "" {
		c.ReportDir = DefaultReportDir
	}
}

// Publisher pushes report entries to the publishing repository.
type Publisher struct {
	repo   Repo
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a publisher. A nil repo forces dry-run mode: merges run
// against empty store state and nothing is pushed.
func New(repo Repo, cfg Config, logger zerolog.Logger) *Publisher {
	cfg.applyDefaults()
	if repo == nil {
		cfg.DryRun = true
	}

	return &Publisher{
		repo:   repo,
		config: cfg,
		logger: logger.With().Str("component", "publish").Logger(),
		now:    time.Now,
	}
}

// Publish merges the entries into both stores. The stores are independent:
// a quick-table failure does not prevent the report-tree push, and the first
// failure of each is reported. Each push is retried once on a commit
// conflict by re-reading the remote head.
func (p *Publisher) Publish(ctx context.Context, topic string, entries []domain.ReportEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if !p.config.DryRun {
		if err := p.repo.EnsureBranch(ctx, p.config.Branch); err != nil {
			return &domain.PublishError{Store: "branch", Cause: err}
		}
	}

	var errs []error
	if err := p.publishTable(ctx, topic, entries); err != nil {
		errs = append(errs, &domain.PublishError{Store: "quick-table", Cause: err})
	}
	if err := p.publishReports(ctx, topic, entries); err != nil {
		errs = append(errs, &domain.PublishError{Store: "reports", Cause: err})
	}
	return errors.Join(errs...)
}

// publishTable merges entries into the quick-table file.
func (p *Publisher) publishTable(ctx context.Context, topic string, entries []domain.ReportEntry) error {
	message := fmt.Sprintf("Update paper table (%s, %d papers)", topic, len(entries))

	return p.mergeFile(ctx, p.config.TablePath, message, func(existing string) string {
		return mergeTableContent(existing, entries, p.now())
	})
}

// publishReports writes one report unit per entry, then merges the index.
func (p *Publisher) publishReports(ctx context.Context, topic string, entries []domain.ReportEntry) error {
	for _, e := range entries {
		path := p.config.ReportDir + "/" + reportFileName(e.ArXivID)
		message := fmt.Sprintf("Add report for %s (%s)", e.ArXivID, topic)
		body := renderReport(e)

		if err := p.mergeFile(ctx, path, message, func(string) string { return body }); err != nil {
			return fmt.Errorf("report %s: %w", e.ArXivID, err)
		}
	}

	indexPath := p.config.ReportDir + "/index.md"
	message := fmt.Sprintf("Update report index (%s)", topic)
	return p.mergeFile(ctx, indexPath, message, func(existing string) string {
		return mergeIndexContent(existing, entries)
	})
}

// mergeFile reads the remote file, applies merge to its content, and writes
// the result back. Writing is skipped when the merge is a no-op, and retried
// exactly once on a conflict with freshly read remote state.
func (p *Publisher) mergeFile(ctx context.Context, path, message string, merge func(existing string) string) error {
	for attempt := 0; attempt < 2; attempt++ {
		existing, sha := "", ""
		if p.repo != nil {
			f, err := p.repo.GetFile(ctx, p.config.Branch, path)
			switch {
			case err == nil:
				existing, sha = string(f.Content), f.SHA
			case errors.Is(err, github.ErrFileNotFound):
				// First publish initializes the file.
			default:
				return err
			}
		}

		rendered := merge(existing)
		if stripVolatile(rendered) == stripVolatile(existing) {
			p.logger.Debug().Str("path", path).Msg("store already up to date")
			return nil
		}

		if p.config.DryRun {
			p.logger.Info().Str("path", path).Int("bytes", len(rendered)).Msg("dry run, skipping push")
			return nil
		}

		err := p.repo.PutFile(ctx, p.config.Branch, path, message, []byte(rendered), sha)
		if err == nil {
			p.logger.Info().Str("path", path).Msg("pushed")
			return nil
		}
		if !errors.Is(err, github.ErrConflict) {
			return err
		}
		if attempt == 1 {
			return fmt.Errorf("%w: %w", domain.ErrPublishConflict, err)
		}
		p.logger.Warn().Str("path", path).Msg("push conflict, re-reading remote head")
	}
	return nil
}
