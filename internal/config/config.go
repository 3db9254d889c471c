// Package config defines the top-level configuration for polyseek and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from an
// optional TOML file and then overridden by POLYSEEK_* environment variables.
type Config struct {
	LLM           LLMConfig           `toml:"llm"`
	Polymarket    PolymarketConfig    `toml:"polymarket"`
	Kalshi        KalshiConfig        `toml:"kalshi"`
	Scrape        ScrapeConfig        `toml:"scrape"`
	Signals       SignalsConfig       `toml:"signals"`
	Server        ServerConfig        `toml:"server"`
	Redis         RedisConfig         `toml:"redis"`
	Postgres      PostgresConfig      `toml:"postgres"`
	S3            S3Config            `toml:"s3"`
	Kafka         KafkaConfig         `toml:"kafka"`
	Elasticsearch ElasticsearchConfig `toml:"elasticsearch"`
	Notify        NotifyConfig        `toml:"notify"`
	Offline       bool                `toml:"offline"`
	LogLevel      string              `toml:"log_level"`
}

// LLMConfig holds the text-generation backend settings.
type LLMConfig struct {
	APIKey      string        `toml:"api_key"`
	BaseURL     string        `toml:"base_url"`
	Model       string        `toml:"model"`
	Temperature float64       `toml:"temperature"`
	MaxTokens   int           `toml:"max_tokens"`
	Timeout     duration      `toml:"timeout"`
	Referer     string        `toml:"referer"`
	Title       string        `toml:"title"`
	Stub        bool          `toml:"stub"`
	Breaker     BreakerConfig `toml:"breaker"`
}

// BreakerConfig tunes the completion circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint     `toml:"failure_threshold"`
	FailureWindow    uint     `toml:"failure_window"`
	Delay            duration `toml:"delay"`
	SuccessThreshold uint     `toml:"success_threshold"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string   `toml:"gamma_host"`
	Timeout   duration `toml:"timeout"`
}

// KalshiConfig holds Kalshi exchange API settings.
type KalshiConfig struct {
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	RSAPrivateKeyPath string   `toml:"rsa_private_key_path"`
	Timeout           duration `toml:"timeout"`
}

// ScrapeConfig holds market page scraping limits.
type ScrapeConfig struct {
	Timeout         duration `toml:"timeout"`
	MaxComments     int      `toml:"max_comments"`
	MaxCommentChars int      `toml:"max_comment_chars"`
	UserAgent       string   `toml:"user_agent"`
}

// SignalsConfig holds external signal provider settings.
type SignalsConfig struct {
	NewsAPIKey     string `toml:"news_api_key"`
	NewsAPIBase    string `toml:"news_api_base"`
	NewsWindowDays int    `toml:"news_window_days"`
	NewsMaxResults int    `toml:"news_max_results"`
	XBearerToken   string `toml:"x_bearer_token"`
	XAPIBase       string `toml:"x_api_base"`
	XMaxResults    int    `toml:"x_max_results"`
	RSSEnabled     bool   `toml:"rss_enabled"`
	RSSFeedURL     string `toml:"rss_feed_url"`
	RSSMaxResults  int    `toml:"rss_max_results"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	APIKey             string   `toml:"api_key"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	TrustProxy         bool     `toml:"trust_proxy"`
	AnalyzeTimeout     duration `toml:"analyze_timeout"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// KafkaConfig holds the event stream producer settings.
type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// ElasticsearchConfig holds the search index settings.
type ElasticsearchConfig struct {
	Enabled   bool     `toml:"enabled"`
	Addresses []string `toml:"addresses"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	APIKey    string   `toml:"api_key"`
	Index     string   `toml:"index"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	Enabled           bool     `toml:"enabled"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. Every
// optional backend is disabled.
func Defaults() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "openrouter/google/gemini-2.0-flash-001",
			Temperature: 0.2,
			MaxTokens:   8192,
			Timeout:     duration{120 * time.Second},
			Title:       "Polyseek",
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				FailureWindow:    5,
				Delay:            duration{30 * time.Second},
				SuccessThreshold: 1,
			},
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			Timeout:   duration{10 * time.Second},
		},
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
			Timeout: duration{10 * time.Second},
		},
		Scrape: ScrapeConfig{
			Timeout:         duration{8 * time.Second},
			MaxComments:     20,
			MaxCommentChars: 500,
			UserAgent:       "Mozilla/5.0 (compatible; polyseek/1.0)",
		},
		Signals: SignalsConfig{
			NewsAPIBase:    "https://newsapi.org",
			NewsWindowDays: 30,
			NewsMaxResults: 5,
			XAPIBase:       "https://api.twitter.com",
			XMaxResults:    10,
			RSSEnabled:     true,
			RSSFeedURL:     "https://news.google.com/rss/search?q=%s&hl=en&gl=US&ceid=US:en",
			RSSMaxResults:  10,
		},
		Server: ServerConfig{
			Port:               8000,
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 30,
			AnalyzeTimeout:     duration{5 * time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyseek",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region: "us-east-1",
			Bucket: "polyseek-reports",
			UseSSL: true,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "polyseek.analysis",
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: []string{"http://localhost:9200"},
			Index:     "polyseek-reports",
		},
		Notify: NotifyConfig{
			Events: []string{"analysis.completed"},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for logical errors and returns a combined
// error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// LLM
	if c.LLM.BaseURL == "" {
		errs = append(errs, "llm: base_url must not be empty")
	}
	if c.LLM.Model == "" {
		errs = append(errs, "llm: model must not be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("llm: temperature must be 0-2, got %g", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "llm: max_tokens must be >= 1")
	}
	if c.LLM.Timeout.Duration <= 0 {
		errs = append(errs, "llm: timeout must be > 0")
	}
	if c.LLM.Breaker.FailureWindow > 0 && c.LLM.Breaker.FailureThreshold > c.LLM.Breaker.FailureWindow {
		errs = append(errs, "llm: breaker failure_threshold must not exceed failure_window")
	}

	// Venues
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}

	// Scrape
	if c.Scrape.MaxComments < 0 {
		errs = append(errs, "scrape: max_comments must be >= 0")
	}
	if c.Scrape.MaxCommentChars < 1 {
		errs = append(errs, "scrape: max_comment_chars must be >= 1")
	}

	// Signals
	if c.Signals.RSSEnabled && strings.Count(c.Signals.RSSFeedURL, "%s") != 1 {
		errs = append(errs, "signals: rss_feed_url must contain exactly one %s placeholder")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server: rate_limit_per_minute must be >= 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka: brokers must not be empty")
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, "kafka: topic must not be empty")
		}
	}

	if c.Elasticsearch.Enabled {
		if len(c.Elasticsearch.Addresses) == 0 {
			errs = append(errs, "elasticsearch: addresses must not be empty")
		}
		if c.Elasticsearch.Index == "" {
			errs = append(errs, "elasticsearch: index must not be empty")
		}
	}

	if c.Notify.Enabled && c.Notify.DiscordWebhookURL == "" && c.Notify.TelegramToken == "" {
		errs = append(errs, "notify: discord_webhook_url or telegram_token is required when enabled")
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required with telegram_token")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
