package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	anthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
	openaiAPIKeyEnv    = "OPENAI_API_KEY"
	smtpPasswordEnv    = "SMTP_PASSWORD"
	historyDSNEnv      = "HISTORY_DATABASE_DSN"
	recipientEnv       = "DIGEST_RECIPIENT"
)

// Config holds all settings required across the application. Loaded once at
// startup; read-only during a pipeline run.
type Config struct {
	Topics           map[string]TopicConfig `yaml:"topics"`
	Sources          SourcesConfig          `yaml:"sources"`
	Summarization    SummarizationConfig    `yaml:"summarization"`
	Quality          QualityConfig          `yaml:"quality"`
	Providers        []ProviderConfig       `yaml:"providers"`
	ProviderStrategy string                 `yaml:"provider_strategy"`
	Email            EmailConfig            `yaml:"email"`
	History          HistoryConfig          `yaml:"history"`
	Scheduler        SchedulerConfig        `yaml:"scheduler"`
	Concurrency      ConcurrencyConfig      `yaml:"concurrency"`
	Logging          LoggingConfig          `yaml:"logging"`

	ExecutionHistoryFile string `yaml:"execution_history_file"`
}

// TopicConfig drives ranking and summarization for a single topic.
type TopicConfig struct {
	AudienceLevel     string   `yaml:"audience_level"`
	IncludeContext    bool     `yaml:"include_context"`
	ContextText       string   `yaml:"context_text"`
	MinQualityScore   float64  `yaml:"min_quality_score"`
	MaxArticlesPerDay int      `yaml:"max_articles_per_day"`
	TrustedSources    []string `yaml:"trusted_sources"`
}

// SourcesConfig groups per-source fetch settings.
type SourcesConfig struct {
	RSS                 map[string][]FeedConfig `yaml:"rss"`
	Arxiv               ArxivConfig             `yaml:"arxiv"`
	HackerNews          HackerNewsConfig        `yaml:"hacker_news"`
	Scraper             ScraperConfig           `yaml:"scraper"`
	MaxArticlesPerTopic int                     `yaml:"max_articles_per_topic"`
}

// FeedConfig describes a single RSS feed within a topic.
type FeedConfig struct {
	URL      string `yaml:"url"`
	Priority string `yaml:"priority"`
	Enabled  *bool  `yaml:"enabled"`
}

// IsEnabled treats an unset flag as enabled.
func (f FeedConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// ArxivConfig controls the arXiv API fetcher.
type ArxivConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Categories     []string `yaml:"categories"`
	MaxPerCategory int      `yaml:"max_per_category"`
}

// HackerNewsConfig controls the Hacker News fetcher.
type HackerNewsConfig struct {
	Enabled     bool     `yaml:"enabled"`
	MinScore    int      `yaml:"min_score"`
	MaxAgeHours int      `yaml:"max_age_hours"`
	Keywords    []string `yaml:"keywords"`
}

// ScraperConfig lists non-RSS pages to scrape directly.
type ScraperConfig struct {
	Enabled bool          `yaml:"enabled"`
	Pages   []ScraperPage `yaml:"pages"`
}

// ScraperPage points the scraper at one page and labels its output.
type ScraperPage struct {
	URL    string `yaml:"url"`
	Topic  string `yaml:"topic"`
	Source string `yaml:"source"`
}

// SummarizationConfig holds prompt template locations and generation knobs.
type SummarizationConfig struct {
	BeginnerPromptPath  string  `yaml:"beginner_prompt_path"`
	CSStudentPromptPath string  `yaml:"cs_student_prompt_path"`
	MaxTokens           int     `yaml:"max_tokens"`
	Temperature         float64 `yaml:"temperature"`
}

// QualityConfig holds deduplication and content-quality thresholds.
type QualityConfig struct {
	MinContentLength    int     `yaml:"min_content_length"`
	DedupTitleThreshold float64 `yaml:"dedup_title_threshold"`
	HistoryDays         int     `yaml:"history_days"`
}

// TitleSimilarityThreshold maps the configured 0-1 ratio onto the 0-100 scale
// used by the deduplicator.
func (q QualityConfig) TitleSimilarityThreshold() int {
	return int(q.DedupTitleThreshold * 100)
}

// ProviderConfig describes one AI backend instance.
type ProviderConfig struct {
	ProviderID            string  `yaml:"provider_id"`
	ProviderType          string  `yaml:"provider_type"`
	APIKey                string  `yaml:"api_key"`
	Model                 string  `yaml:"model"`
	Enabled               *bool   `yaml:"enabled"`
	Priority              int     `yaml:"priority"`
	BaseURL               string  `yaml:"base_url"`
	TimeoutSeconds        int     `yaml:"timeout"`
	MaxTokens             int     `yaml:"max_tokens"`
	Temperature           float64 `yaml:"temperature"`
	InputCostPer1MTokens  float64 `yaml:"input_cost_per_1m_tokens"`
	OutputCostPer1MTokens float64 `yaml:"output_cost_per_1m_tokens"`
}

// IsEnabled treats an unset flag as enabled.
func (c ProviderConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Timeout resolves the per-provider request timeout.
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Reference token counts for the static cost proxy used by the "cost"
// selection strategy.
const (
	costRefInputTokens  = 1500
	costRefOutputTokens = 200
)

// EstimatedCostPerRequest is a static cost proxy based on reference token
// counts, not live usage.
func (c ProviderConfig) EstimatedCostPerRequest() float64 {
	inputCost := float64(costRefInputTokens) / 1_000_000 * c.InputCostPer1MTokens
	outputCost := float64(costRefOutputTokens) / 1_000_000 * c.OutputCostPer1MTokens
	return inputCost + outputCost
}

// EmailConfig wires SMTP delivery of the digest.
type EmailConfig struct {
	SMTP        SMTPConfig `yaml:"smtp"`
	Recipient   string     `yaml:"recipient"`
	FallbackDir string     `yaml:"fallback_dir"`
}

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email"`
	UseTLS    *bool  `yaml:"use_tls"`
}

// UseSTARTTLS treats an unset flag as STARTTLS (port 587 style).
func (s SMTPConfig) UseSTARTTLS() bool {
	return s.UseTLS == nil || *s.UseTLS
}

// HistoryConfig selects the sent-article storage backend. When PostgresDSN is
// set the Postgres store is used, otherwise the JSON file.
type HistoryConfig struct {
	File        string `yaml:"file"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SchedulerConfig defines when the pipeline runs.
type SchedulerConfig struct {
	CronExpression string `yaml:"cron"`
	Timezone       string `yaml:"timezone"`
}

// Location resolves the scheduler timezone, falling back to UTC.
func (s SchedulerConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConcurrencyConfig bounds outbound request parallelism. These protect
// upstream rate limits, they are not correctness requirements.
type ConcurrencyConfig struct {
	FetchLimit     int `yaml:"fetch_limit"`
	SummarizeLimit int `yaml:"summarize_limit"`
}

// LoggingConfig selects log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration, applies environment overrides and defaults,
// and validates. Any returned error is fatal: the pipeline must not start
// with broken configuration.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	for i := range c.Providers {
		if c.Providers[i].APIKey != "" {
			continue
		}
		switch c.Providers[i].ProviderType {
		case "anthropic":
			c.Providers[i].APIKey = os.Getenv(anthropicAPIKeyEnv)
		case "openai":
			c.Providers[i].APIKey = os.Getenv(openaiAPIKeyEnv)
		}
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv(historyDSNEnv); v != "" {
		c.History.PostgresDSN = v
	}
	if v := os.Getenv(recipientEnv); v != "" {
		c.Email.Recipient = v
	}
}

func (c *Config) applyDefaults() {
	if c.ProviderStrategy == "" {
		c.ProviderStrategy = "priority"
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Priority == 0 {
			p.Priority = 10
		}
		if p.TimeoutSeconds == 0 {
			p.TimeoutSeconds = 30
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 500
		}
		if p.Temperature == 0 {
			p.Temperature = 0.3
		}
	}

	if c.Summarization.MaxTokens == 0 {
		c.Summarization.MaxTokens = 500
	}
	if c.Summarization.Temperature == 0 {
		c.Summarization.Temperature = 0.3
	}

	if c.Quality.MinContentLength == 0 {
		c.Quality.MinContentLength = 100
	}
	if c.Quality.DedupTitleThreshold == 0 {
		c.Quality.DedupTitleThreshold = 0.85
	}
	if c.Quality.HistoryDays == 0 {
		c.Quality.HistoryDays = 30
	}

	if c.Sources.MaxArticlesPerTopic == 0 {
		c.Sources.MaxArticlesPerTopic = 15
	}
	if c.Sources.Arxiv.MaxPerCategory == 0 {
		c.Sources.Arxiv.MaxPerCategory = 5
	}
	if c.Sources.HackerNews.MinScore == 0 {
		c.Sources.HackerNews.MinScore = 50
	}
	if c.Sources.HackerNews.MaxAgeHours == 0 {
		c.Sources.HackerNews.MaxAgeHours = 48
	}

	if c.Concurrency.FetchLimit == 0 {
		c.Concurrency.FetchLimit = 5
	}
	if c.Concurrency.SummarizeLimit == 0 {
		c.Concurrency.SummarizeLimit = 5
	}

	if c.History.File == "" {
		c.History.File = "data/sent_articles.json"
	}
	if c.ExecutionHistoryFile == "" {
		c.ExecutionHistoryFile = "data/execution_history.json"
	}
	if c.Email.FallbackDir == "" {
		c.Email.FallbackDir = "data/unsent"
	}
	if c.Scheduler.CronExpression == "" {
		c.Scheduler.CronExpression = "0 8 * * *"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations that cannot produce a working pipeline.
func (c *Config) Validate() error {
	if len(c.Topics) == 0 {
		return fmt.Errorf("config: no topics configured")
	}
	for name, topic := range c.Topics {
		if topic.MinQualityScore < 0 || topic.MinQualityScore > 1 {
			return fmt.Errorf("config: topic %s: min_quality_score %v outside [0,1]", name, topic.MinQualityScore)
		}
		if topic.MaxArticlesPerDay <= 0 {
			return fmt.Errorf("config: topic %s: max_articles_per_day must be positive", name)
		}
	}

	enabled := 0
	seen := map[string]bool{}
	for _, p := range c.Providers {
		if p.ProviderID == "" {
			return fmt.Errorf("config: provider with empty provider_id")
		}
		if seen[p.ProviderID] {
			return fmt.Errorf("config: duplicate provider_id %s", p.ProviderID)
		}
		seen[p.ProviderID] = true

		if !p.IsEnabled() {
			continue
		}
		enabled++
		if p.ProviderType != "anthropic" && p.ProviderType != "openai" {
			return fmt.Errorf("config: provider %s: unknown provider_type %q", p.ProviderID, p.ProviderType)
		}
		if p.APIKey == "" {
			return fmt.Errorf("config: provider %s: missing API key", p.ProviderID)
		}
		if p.Model == "" {
			return fmt.Errorf("config: provider %s: missing model", p.ProviderID)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config: no enabled providers")
	}

	if c.Email.Recipient == "" {
		return fmt.Errorf("config: email recipient not configured")
	}
	if c.Email.SMTP.Host == "" {
		return fmt.Errorf("config: smtp host not configured")
	}

	return nil
}
