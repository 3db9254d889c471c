package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSEEK_* environment variable overrides, and
// returns the final Config. A missing file (or an empty path) leaves the
// defaults in place. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set. Unprefixed
// compatibility aliases are applied first so the POLYSEEK_* form wins.
func applyEnvOverrides(cfg *Config) {
	// ── Compatibility aliases ──
	setStr(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setStr(&cfg.LLM.APIKey, "OPENROUTER_API_KEY")
	setStr(&cfg.LLM.Model, "LITELLM_MODEL_ID")
	setFloat64(&cfg.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setStr(&cfg.Signals.NewsAPIKey, "NEWS_API_KEY")
	setStr(&cfg.Signals.XBearerToken, "X_BEARER_TOKEN")
	setSeconds(&cfg.Scrape.Timeout, "SCRAPE_TIMEOUT")
	setInt(&cfg.Scrape.MaxComments, "SCRAPE_MAX_COMMENTS")
	setInt(&cfg.Scrape.MaxCommentChars, "SCRAPE_MAX_COMMENT_CHARS")
	setStr(&cfg.Polymarket.GammaHost, "POLYMARKET_API_BASE")
	setStr(&cfg.Kalshi.BaseURL, "KALSHI_API_BASE")
	setStringSlice(&cfg.Server.CORSOrigins, "CORS_ORIGINS")

	// ── LLM ──
	setStr(&cfg.LLM.APIKey, "POLYSEEK_LLM_API_KEY")
	setStr(&cfg.LLM.BaseURL, "POLYSEEK_LLM_BASE_URL")
	setStr(&cfg.LLM.Model, "POLYSEEK_LLM_MODEL")
	setFloat64(&cfg.LLM.Temperature, "POLYSEEK_LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "POLYSEEK_LLM_MAX_TOKENS")
	setDuration(&cfg.LLM.Timeout, "POLYSEEK_LLM_TIMEOUT")
	setBool(&cfg.LLM.Stub, "POLYSEEK_LLM_STUB")
	setUint(&cfg.LLM.Breaker.FailureThreshold, "POLYSEEK_LLM_BREAKER_FAILURE_THRESHOLD")
	setUint(&cfg.LLM.Breaker.FailureWindow, "POLYSEEK_LLM_BREAKER_FAILURE_WINDOW")
	setDuration(&cfg.LLM.Breaker.Delay, "POLYSEEK_LLM_BREAKER_DELAY")

	// ── Venues ──
	setStr(&cfg.Polymarket.GammaHost, "POLYSEEK_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Kalshi.BaseURL, "POLYSEEK_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.APIKey, "POLYSEEK_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RSAPrivateKeyPath, "POLYSEEK_KALSHI_RSA_PRIVATE_KEY_PATH")

	// ── Scrape ──
	setDuration(&cfg.Scrape.Timeout, "POLYSEEK_SCRAPE_TIMEOUT")
	setInt(&cfg.Scrape.MaxComments, "POLYSEEK_SCRAPE_MAX_COMMENTS")
	setInt(&cfg.Scrape.MaxCommentChars, "POLYSEEK_SCRAPE_MAX_COMMENT_CHARS")
	setStr(&cfg.Scrape.UserAgent, "POLYSEEK_SCRAPE_USER_AGENT")

	// ── Signals ──
	setStr(&cfg.Signals.NewsAPIKey, "POLYSEEK_SIGNALS_NEWS_API_KEY")
	setInt(&cfg.Signals.NewsWindowDays, "POLYSEEK_SIGNALS_NEWS_WINDOW_DAYS")
	setInt(&cfg.Signals.NewsMaxResults, "POLYSEEK_SIGNALS_NEWS_MAX_RESULTS")
	setStr(&cfg.Signals.XBearerToken, "POLYSEEK_SIGNALS_X_BEARER_TOKEN")
	setInt(&cfg.Signals.XMaxResults, "POLYSEEK_SIGNALS_X_MAX_RESULTS")
	setBool(&cfg.Signals.RSSEnabled, "POLYSEEK_SIGNALS_RSS_ENABLED")
	setInt(&cfg.Signals.RSSMaxResults, "POLYSEEK_SIGNALS_RSS_MAX_RESULTS")

	// ── Server ──
	setInt(&cfg.Server.Port, "POLYSEEK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYSEEK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYSEEK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "POLYSEEK_SERVER_RATE_LIMIT_PER_MINUTE")
	setBool(&cfg.Server.TrustProxy, "POLYSEEK_SERVER_TRUST_PROXY")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYSEEK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYSEEK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSEEK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSEEK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSEEK_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POLYSEEK_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POLYSEEK_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYSEEK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYSEEK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYSEEK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYSEEK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYSEEK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYSEEK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYSEEK_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "POLYSEEK_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYSEEK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYSEEK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSEEK_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSEEK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSEEK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYSEEK_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "POLYSEEK_S3_FORCE_PATH_STYLE")

	// ── Kafka ──
	setBool(&cfg.Kafka.Enabled, "POLYSEEK_KAFKA_ENABLED")
	setStringSlice(&cfg.Kafka.Brokers, "POLYSEEK_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "POLYSEEK_KAFKA_TOPIC")

	// ── Elasticsearch ──
	setBool(&cfg.Elasticsearch.Enabled, "POLYSEEK_ELASTICSEARCH_ENABLED")
	setStringSlice(&cfg.Elasticsearch.Addresses, "POLYSEEK_ELASTICSEARCH_ADDRESSES")
	setStr(&cfg.Elasticsearch.Username, "POLYSEEK_ELASTICSEARCH_USERNAME")
	setStr(&cfg.Elasticsearch.Password, "POLYSEEK_ELASTICSEARCH_PASSWORD")
	setStr(&cfg.Elasticsearch.APIKey, "POLYSEEK_ELASTICSEARCH_API_KEY")
	setStr(&cfg.Elasticsearch.Index, "POLYSEEK_ELASTICSEARCH_INDEX")

	// ── Notify ──
	setBool(&cfg.Notify.Enabled, "POLYSEEK_NOTIFY_ENABLED")
	setStr(&cfg.Notify.TelegramToken, "POLYSEEK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYSEEK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYSEEK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYSEEK_NOTIFY_EVENTS")

	// ── Top-level ──
	setBool(&cfg.Offline, "POLYSEEK_OFFLINE")
	setStr(&cfg.LogLevel, "POLYSEEK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint(dst *uint, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 0); err == nil {
			*dst = uint(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// setSeconds accepts a bare number of seconds, or a Go duration string.
func setSeconds(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			dst.Duration = time.Duration(f * float64(time.Second))
			return
		}
		setDuration(dst, key)
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
