// Package config provides configuration management for arxiv-radar.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/scholarstream/arxiv-radar/internal/domain"
)

// Config holds all configuration for a pipeline run.
type Config struct {
	// Feed contains arXiv feed client settings.
	Feed FeedConfig `mapstructure:"feed"`
	// LLM contains LLM client settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Relevance contains relevance scoring settings.
	Relevance RelevanceConfig `mapstructure:"relevance"`
	// Analysis contains analysis engine settings.
	Analysis AnalysisConfig `mapstructure:"analysis"`
	// Ledger contains dedup ledger settings.
	Ledger LedgerConfig `mapstructure:"ledger"`
	// Publish contains output store settings.
	Publish PublishConfig `mapstructure:"publish"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Pipeline contains orchestration settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Topics is the list of research topics to process.
	Topics []TopicConfig `mapstructure:"topics" validate:"min=1,dive"`
}

// TopicConfig defines one user research interest.
type TopicConfig struct {
	// Name is the stable topic identifier (used as the ledger partition key).
	Name string `mapstructure:"name" validate:"required"`
	// Label is the human-readable topic title; defaults to Name.
	Label string `mapstructure:"label"`
	// Query defines the arXiv search criteria for the topic.
	Query QueryConfig `mapstructure:"query"`
	// InterestPrompt steers relevance scoring and question generation.
	InterestPrompt string `mapstructure:"interest_prompt" validate:"required"`
}

// QueryConfig defines the search criteria for a topic.
type QueryConfig struct {
	// Categories is the set of arXiv category codes (e.g. cs.SE). Required.
	Categories []string `mapstructure:"categories" validate:"min=1"`
	// Include keywords broaden the query.
	Include []string `mapstructure:"include"`
	// Exclude keywords always take precedence over includes.
	Exclude []string `mapstructure:"exclude"`
}

// FeedConfig holds arXiv feed client configuration.
type FeedConfig struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// PageSize is the number of results requested per page.
	PageSize int `mapstructure:"page_size"`
	// MaxPages bounds pagination per topic.
	MaxPages int `mapstructure:"max_pages"`
	// WindowDays is the default lookback window when no explicit window is given.
	WindowDays int `mapstructure:"window_days"`
	// MirrorBaseURL is the rendered-HTML mirror used by the content fetcher.
	MirrorBaseURL string `mapstructure:"mirror_base_url"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// APIKey is loaded exclusively from the environment (see loadSecrets).
	APIKey string `mapstructure:"-"`
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Model is the model used for analysis stages.
	Model string `mapstructure:"model"`
	// LightModel is the cheaper model used for scoring and venue extraction.
	LightModel string `mapstructure:"light_model"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// Timeout is the per-call timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the retry budget for transient API errors.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// RelevanceConfig holds relevance scoring configuration.
type RelevanceConfig struct {
	// Threshold is the minimum passing score on the 0-100 scale (inclusive).
	Threshold float64 `mapstructure:"threshold" validate:"gte=0,lte=100"`
	// Concurrency bounds parallel scoring calls.
	Concurrency int `mapstructure:"concurrency" validate:"gte=1"`
}

// AnalysisConfig holds analysis engine configuration.
type AnalysisConfig struct {
	// QuestionCount is the number of interest-aligned questions to generate.
	QuestionCount int `mapstructure:"question_count" validate:"gte=1"`
	// Concurrency bounds parallel per-paper analyses.
	Concurrency int `mapstructure:"concurrency" validate:"gte=1"`
	// MaxContentChars truncates paper bodies sent to the model.
	MaxContentChars int `mapstructure:"max_content_chars"`
}

// LedgerConfig holds dedup ledger configuration.
type LedgerConfig struct {
	// Path is the sqlite database file path.
	Path string `mapstructure:"path"`
}

// PublishConfig holds output store configuration.
type PublishConfig struct {
	// Token is loaded exclusively from the environment (see loadSecrets).
	Token string `mapstructure:"-"`
	// APIBaseURL is the GitHub API base URL.
	APIBaseURL string `mapstructure:"api_base_url"`
	// Repo is the "owner/name" target repository.
	Repo string `mapstructure:"repo"`
	// Branch is the target branch for both stores.
	Branch string `mapstructure:"branch"`
	// TablePath is the quick-table file path within the repository.
	TablePath string `mapstructure:"table_path"`
	// ReportDir is the detailed-report directory within the repository.
	ReportDir string `mapstructure:"report_dir"`
	// Enabled toggles publishing; disabled runs still analyze (dry-run).
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PipelineConfig holds orchestration configuration.
type PipelineConfig struct {
	// RunTimeout bounds the whole run; zero means no run-level timeout.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	// PaperLimit caps papers analyzed per topic; zero means unlimited.
	PaperLimit int `mapstructure:"paper_limit"`
}

// Load loads configuration from the given file (empty means search defaults),
// environment variables and built-in defaults.
func Load(path string) (*Config, error) {
	// Seed the environment from a .env file when present; real environment
	// variables win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARXRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			// No config file is fine; env vars and defaults apply.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	loadSecrets(&cfg)

	for i := range cfg.Topics {
		if cfg.Topics[i].Label == "" {
			cfg.Topics[i].Label = cfg.Topics[i].Name
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields use mapstructure:"-" to keep them out of config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	if k := os.Getenv("ARXRADAR_LLM_API_KEY"); k != "" {
		cfg.LLM.APIKey = k
	}
	cfg.Publish.Token = os.Getenv("GITHUB_TOKEN")
	if t := os.Getenv("ARXRADAR_PUBLISH_TOKEN"); t != "" {
		cfg.Publish.Token = t
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.base_url", "https://export.arxiv.org/api")
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.rate_limit", 3.0)
	v.SetDefault("feed.burst_size", 3)
	v.SetDefault("feed.page_size", 100)
	v.SetDefault("feed.max_pages", 5)
	v.SetDefault("feed.window_days", 7)
	v.SetDefault("feed.mirror_base_url", "https://ar5iv.labs.arxiv.org")

	// LLM defaults; the API key comes from the environment only.
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.light_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")

	// Relevance defaults
	v.SetDefault("relevance.threshold", 60.0)
	v.SetDefault("relevance.concurrency", 4)

	// Analysis defaults
	v.SetDefault("analysis.question_count", 3)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.max_content_chars", 60000)

	// Ledger defaults
	v.SetDefault("ledger.path", "arxradar.db")

	// Publish defaults
	v.SetDefault("publish.api_base_url", "https://api.github.com")
	v.SetDefault("publish.branch", "updates")
	v.SetDefault("publish.table_path", "papers.md")
	v.SetDefault("publish.report_dir", "reports")
	v.SetDefault("publish.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Pipeline defaults
	v.SetDefault("pipeline.run_timeout", "30m")
	v.SetDefault("pipeline.paper_limit", 0)
}

// Validate checks the configuration and returns a domain.ConfigError for the
// first violated constraint.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return &domain.ConfigError{
				Field:   f.Namespace(),
				Message: fmt.Sprintf("failed %q constraint", f.Tag()),
			}
		}
		return fmt.Errorf("config validation: %w", err)
	}

	// Constraints the struct tags cannot express.
	seen := make(map[string]struct{}, len(c.Topics))
	for _, t := range c.Topics {
		if _, dup := seen[t.Name]; dup {
			return &domain.ConfigError{Field: "topics", Message: fmt.Sprintf("duplicate topic name %q", t.Name)}
		}
		seen[t.Name] = struct{}{}
	}

	if c.Publish.Enabled {
		if c.Publish.Repo == "" {
			return &domain.ConfigError{Field: "publish.repo", Message: "required when publishing is enabled"}
		}
		if !strings.Contains(c.Publish.Repo, "/") {
			return &domain.ConfigError{Field: "publish.repo", Message: `must be "owner/name"`}
		}
		if c.Publish.Token == "" {
			return &domain.ConfigError{Field: "publish.token", Message: "GITHUB_TOKEN must be set when publishing is enabled"}
		}
	}

	if c.LLM.APIKey == "" {
		return &domain.ConfigError{Field: "llm.api_key", Message: "OPENAI_API_KEY must be set"}
	}

	return nil
}
