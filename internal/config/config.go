// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mapleads/mapleads/internal/scrape"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Queries  QueriesConfig  `mapstructure:"queries"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Stage    StageConfig    `mapstructure:"stage"`
	Search   SearchConfig   `mapstructure:"search"`
	Detail   DetailConfig   `mapstructure:"detail"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig controls orchestration across stages.
type PipelineConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	StageRetries int    `mapstructure:"stage_retries"`
}

// QueriesConfig names the word-list inputs for query generation.
type QueriesConfig struct {
	BrandsFile     string `mapstructure:"brands_file"`
	CategoriesFile string `mapstructure:"categories_file"`
	LocationsFile  string `mapstructure:"locations_file"`
}

// BrowserConfig controls the headless Chrome session.
type BrowserConfig struct {
	Headless     bool   `mapstructure:"headless"`
	UserAgent    string `mapstructure:"user_agent"`
	WindowWidth  int    `mapstructure:"window_width"`
	WindowHeight int    `mapstructure:"window_height"`
	Lang         string `mapstructure:"lang"`
	RestartEvery int    `mapstructure:"restart_every"`
}

// StageConfig bounds per-item work within every stage.
type StageConfig struct {
	ItemTimeout   time.Duration `mapstructure:"item_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// SearchConfig tunes the result-feed scroll loop.
type SearchConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	ScrollDelay     time.Duration `mapstructure:"scroll_delay"`
	MaxStaleScrolls int           `mapstructure:"max_stale_scrolls"`
	MaxScrolls      int           `mapstructure:"max_scrolls"`
}

// DetailConfig tunes place page parsing.
type DetailConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// EnrichConfig tunes website contact extraction.
type EnrichConfig struct {
	ContactPaths     []string      `mapstructure:"contact_paths"`
	SiteBudget       time.Duration `mapstructure:"site_budget"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	PerDomainQPS     float64       `mapstructure:"per_domain_qps"`
	DetectorMinBytes int           `mapstructure:"detector_min_bytes"`
}

// ScoringConfig controls email candidate selection.
type ScoringConfig struct {
	MinScore int `mapstructure:"min_score"`
}

// APIConfig controls the status HTTP server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	APIKey  string `mapstructure:"api_key"`
}

// DatabaseConfig controls the optional run-history store.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// TelegramConfig holds Bot API notification credentials.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Silent   bool   `mapstructure:"silent"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ArchiveConfig controls end-of-run artifact archival.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAPLEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, scrape.NewConfigError("read config: %v", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, scrape.NewConfigError("unmarshal config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.data_dir", "data")
	v.SetDefault("pipeline.stage_retries", 2)

	v.SetDefault("queries.brands_file", "brands.txt")
	v.SetDefault("queries.categories_file", "categories.txt")
	v.SetDefault("queries.locations_file", "locations.txt")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 1000)
	v.SetDefault("browser.lang", "en")
	v.SetDefault("browser.restart_every", 100)

	v.SetDefault("stage.item_timeout", "30s")
	v.SetDefault("stage.retry_attempts", 3)
	v.SetDefault("stage.retry_delay", "2s")

	v.SetDefault("search.base_url", "https://www.google.com/maps")
	v.SetDefault("search.settle_delay", "5s")
	v.SetDefault("search.scroll_delay", "3s")
	v.SetDefault("search.max_stale_scrolls", 2)
	v.SetDefault("search.max_scrolls", 30)

	v.SetDefault("detail.settle_delay", "3s")

	v.SetDefault("enrich.contact_paths", []string{
		"", "contact", "kontakt", "contact-us", "about", "impressum", "kontak", "get-in-touch",
	})
	v.SetDefault("enrich.site_budget", "25s")
	v.SetDefault("enrich.fetch_timeout", "10s")
	v.SetDefault("enrich.per_domain_qps", 2.0)
	v.SetDefault("enrich.detector_min_bytes", 2048)

	v.SetDefault("scoring.min_score", 0)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", ":8080")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")
}

// Validate rejects configurations the pipeline cannot run with. These are
// reported as configuration errors, which the orchestrator never retries.
func (c Config) Validate() error {
	if c.Pipeline.DataDir == "" {
		return scrape.NewConfigError("pipeline.data_dir is required")
	}
	if c.Stage.ItemTimeout <= 0 {
		return scrape.NewConfigError("stage.item_timeout must be positive")
	}
	if c.Stage.RetryAttempts < 1 {
		return scrape.NewConfigError("stage.retry_attempts must be at least 1")
	}
	if c.Search.MaxStaleScrolls < 1 {
		return scrape.NewConfigError("search.max_stale_scrolls must be at least 1")
	}
	if c.Search.MaxScrolls < 1 {
		return scrape.NewConfigError("search.max_scrolls must be at least 1")
	}
	if c.Enrich.SiteBudget <= 0 {
		return scrape.NewConfigError("enrich.site_budget must be positive")
	}
	if c.API.Enabled && c.API.Addr == "" {
		return scrape.NewConfigError("api.addr is required when api.enabled is set")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return scrape.NewConfigError("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Archive.Enabled && c.Archive.GCSBucket == "" && c.Archive.LocalDir == "" {
		return scrape.NewConfigError("archive requires archive.gcs_bucket or archive.local_dir")
	}
	return nil
}
