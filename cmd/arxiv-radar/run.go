package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scholarstream/arxiv-radar/internal/analysis"
	"github.com/scholarstream/arxiv-radar/internal/config"
	"github.com/scholarstream/arxiv-radar/internal/content"
	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/github"
	"github.com/scholarstream/arxiv-radar/internal/ledger"
	"github.com/scholarstream/arxiv-radar/internal/llm"
	"github.com/scholarstream/arxiv-radar/internal/notify"
	"github.com/scholarstream/arxiv-radar/internal/observability"
	"github.com/scholarstream/arxiv-radar/internal/pipeline"
	"github.com/scholarstream/arxiv-radar/internal/publish"
	"github.com/scholarstream/arxiv-radar/internal/relevance"
	"github.com/scholarstream/arxiv-radar/internal/source/arxiv"
	"github.com/scholarstream/arxiv-radar/internal/venue"
)

var (
	flagTopic  string
	flagSince  string
	flagUntil  string
	flagLimit  int
	flagDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline for all (or one) configured topics",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagTopic, "topic", "", "process only the named topic")
	runCmd.Flags().StringVar(&flagSince, "since", "", "discovery window start (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&flagUntil, "until", "", "discovery window end (YYYY-MM-DD)")
	runCmd.Flags().IntVar(&flagLimit, "limit", 0, "max papers per topic (0 = no limit)")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "run the full pipeline without pushing or ledger writes")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})

	from, to, err := parseWindow(flagSince, flagUntil)
	if err != nil {
		return err
	}
	if flagTopic != "" && !hasTopic(cfg.Topics, flagTopic) {
		return &domain.ConfigError{Field: "topic", Message: fmt.Sprintf("unknown topic %q", flagTopic)}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Pipeline.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancel()
	}

	completer := llm.NewClient(llm.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		RetryDelay: cfg.LLM.RetryDelay,
	})

	feed := arxiv.New(arxiv.Config{
		BaseURL:   cfg.Feed.BaseURL,
		Timeout:   cfg.Feed.Timeout,
		RateLimit: cfg.Feed.RateLimit,
		BurstSize: cfg.Feed.BurstSize,
		PageSize:  cfg.Feed.PageSize,
		MaxPages:  cfg.Feed.MaxPages,
	})

	fetcher := content.New(content.Config{
		MirrorBaseURL: cfg.Feed.MirrorBaseURL,
		Timeout:       cfg.Feed.Timeout,
		MaxChars:      cfg.Analysis.MaxContentChars,
	}, logger)

	scorer := relevance.New(completer, relevance.Config{
		Threshold:   cfg.Relevance.Threshold,
		Concurrency: cfg.Relevance.Concurrency,
		Model:       cfg.LLM.LightModel,
		Temperature: cfg.LLM.Temperature,
	}, logger)

	engine := analysis.New(completer, analysis.Config{
		QuestionCount: cfg.Analysis.QuestionCount,
		Temperature:   cfg.LLM.Temperature,
	}, logger)

	venues := venue.New(completer, venue.Config{Model: cfg.LLM.LightModel}, logger)

	store, err := ledger.OpenSQLite(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var ledgerStore ledger.Store = store
	if flagDryRun {
		ledgerStore = ledger.NewReadOnly(store)
	}

	var repo publish.Repo
	if cfg.Publish.Enabled {
		client, err := github.NewClient(github.Config{
			Token:      cfg.Publish.Token,
			APIBaseURL: cfg.Publish.APIBaseURL,
			Repo:       cfg.Publish.Repo,
		})
		if err != nil {
			return err
		}
		repo = client
	}
	publisher := publish.New(repo, publish.Config{
		Branch:    cfg.Publish.Branch,
		TablePath: cfg.Publish.TablePath,
		ReportDir: cfg.Publish.ReportDir,
		DryRun:    flagDryRun,
	}, logger)

	p := pipeline.New(feed, scorer, fetcher, engine, venues, publisher, ledgerStore, notify.NewLogNotifier(logger), logger)

	report, err := p.Run(ctx, pipeline.Options{
		Topics:      cfg.Topics,
		TopicFilter: flagTopic,
		WindowDays:  cfg.Feed.WindowDays,
		From:        from,
		To:          to,
		PaperLimit:  pickLimit(flagLimit, cfg.Pipeline.PaperLimit),
		Concurrency: cfg.Analysis.Concurrency,
	})
	if err != nil {
		return err
	}
	if report.Status == domain.RunFailed {
		return fmt.Errorf("run %s failed: no topic produced output", report.RunID)
	}
	return nil
}

// parseWindow parses the --since/--until override pair.
func parseWindow(since, until string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if since != "" {
		from, err = time.Parse("2006-01-02", since)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		to, err = time.Parse("2006-01-02", until)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--until is before --since")
	}
	return from, to, nil
}

// pickLimit prefers the flag over the configured limit.
func pickLimit(flag, configured int) int {
	if flag > 0 {
		return flag
	}
	return configured
}

// hasTopic reports whether the named topic is configured.
func hasTopic(topics []config.TopicConfig, name string) bool {
	for _, t := range topics {
		if t.Name == name {
			return true
		}
	}
	return false
}
