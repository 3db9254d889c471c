package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alanyoungcy/polyseek/internal/analysis"
	s3blob "github.com/alanyoungcy/polyseek/internal/blob/s3"
	"github.com/alanyoungcy/polyseek/internal/cache/redis"
	"github.com/alanyoungcy/polyseek/internal/config"
	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/llm"
	"github.com/alanyoungcy/polyseek/internal/market"
	"github.com/alanyoungcy/polyseek/internal/metrics"
	"github.com/alanyoungcy/polyseek/internal/notify"
	"github.com/alanyoungcy/polyseek/internal/platform/kalshi"
	"github.com/alanyoungcy/polyseek/internal/platform/polymarket"
	"github.com/alanyoungcy/polyseek/internal/scrape"
	"github.com/alanyoungcy/polyseek/internal/search/elasticsearch"
	"github.com/alanyoungcy/polyseek/internal/service"
	"github.com/alanyoungcy/polyseek/internal/signals"
	"github.com/alanyoungcy/polyseek/internal/store/postgres"
	kafkastream "github.com/alanyoungcy/polyseek/internal/stream/kafka"
)

// Dependencies bundles everything the CLI and the server need. Optional
// backends are nil when disabled.
type Dependencies struct {
	Analyzer *service.Analyzer
	Metrics  *metrics.Collector

	// Optional infrastructure
	ReportStore domain.ReportStore
	Search      *elasticsearch.Client
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Sinks lists every report sink in registration order.
	Sinks []domain.ReportSink
}

// Wire constructs every dependency from cfg and returns a cleanup function
// that releases them in reverse order. A backend that is enabled but
// unreachable is a startup error.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Metrics: metrics.New(Version)}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		store := postgres.NewReportStore(pgClient.Pool())
		deps.ReportStore = store
		deps.Sinks = append(deps.Sinks, service.NewStoreSink(store))
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		bus := redis.NewSignalBus(redisClient)
		deps.SignalBus = bus
		deps.Sinks = append(deps.Sinks, service.NewBusSink(bus))
	}

	// --- S3 report archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket not reachable; archive uploads may fail",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}
		deps.Sinks = append(deps.Sinks, s3blob.NewReportArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix))
	}

	// --- Kafka ---
	if cfg.Kafka.Enabled {
		producer := kafkastream.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		closers = append(closers, func() { _ = producer.Close() })
		deps.Sinks = append(deps.Sinks, producer)
	}

	// --- Elasticsearch ---
	if cfg.Elasticsearch.Enabled {
		es, err := elasticsearch.New(elasticsearch.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
			APIKey:    cfg.Elasticsearch.APIKey,
			Index:     cfg.Elasticsearch.Index,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: elasticsearch: %w", err))
		}
		if err := es.Ping(ctx); err != nil {
			return fail(fmt.Errorf("wire: elasticsearch: %w", err))
		}
		deps.Search = es
		deps.Sinks = append(deps.Sinks, es)
	}

	// --- Notifications ---
	if cfg.Notify.Enabled {
		var senders []notify.Sender
		if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
			senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
		}
		if cfg.Notify.DiscordWebhookURL != "" {
			senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
		}
		if len(senders) > 0 {
			deps.Sinks = append(deps.Sinks, notify.NewNotifier(senders, cfg.Notify.Events, logger))
		}
	}

	// --- Analysis pipeline ---
	markets, contexts, sigs, err := buildSources(cfg, logger)
	if err != nil {
		return fail(err)
	}

	orchOpts := []analysis.Option{
		analysis.WithRecorder(deps.Metrics),
		analysis.WithLogger(logger),
	}
	if cfg.Offline && !cfg.LLM.Stub {
		orchOpts = append(orchOpts, analysis.WithOffline(true))
	}
	orchestrator := analysis.NewOrchestrator(
		buildCompletion(cfg, logger),
		analysis.Settings{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		orchOpts...,
	)

	deps.Analyzer = service.NewAnalyzer(markets, contexts, sigs, orchestrator, logger,
		service.WithSinks(deps.Sinks...),
		service.WithObserver(deps.Metrics),
	)
	closers = append(closers, deps.Analyzer.Wait)

	return deps, cleanup, nil
}

// buildCompletion picks the completion backend once: the canned stub when
// configured (also in offline mode), nil (offline result) when offline or no
// API key is set, otherwise the live client.
func buildCompletion(cfg *config.Config, logger *slog.Logger) domain.CompletionService {
	switch {
	case cfg.LLM.Stub:
		return llm.NewStub()
	case cfg.Offline || cfg.LLM.APIKey == "":
		return nil
	default:
		return llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Referer: cfg.LLM.Referer,
			Title:   cfg.LLM.Title,
			Timeout: cfg.LLM.Timeout.Duration,
			Breaker: llm.BreakerConfig{
				FailureThreshold: cfg.LLM.Breaker.FailureThreshold,
				FailureWindow:    cfg.LLM.Breaker.FailureWindow,
				Delay:            cfg.LLM.Breaker.Delay.Duration,
				SuccessThreshold: cfg.LLM.Breaker.SuccessThreshold,
			},
		}, logger)
	}
}

// buildSources creates the market, context and signal collaborators, or
// their offline stand-ins.
func buildSources(cfg *config.Config, logger *slog.Logger) (domain.MarketSource, domain.ContextSource, domain.SignalSource, error) {
	pm := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, cfg.Polymarket.Timeout.Duration)
	ks := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.APIKey, cfg.Kalshi.Timeout.Duration)
	if path := cfg.Kalshi.RSAPrivateKeyPath; path != "" {
		pemBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("wire: read kalshi key: %w", err)
		}
		if err := ks.SetRSAPrivateKey(pemBytes); err != nil {
			return nil, nil, nil, fmt.Errorf("wire: kalshi key: %w", err)
		}
	}
	markets := market.NewRouter(pm, ks, cfg.Offline, logger)

	if cfg.Offline {
		return markets, scrape.Offline{}, signals.Offline{}, nil
	}

	contexts := scrape.New(scrape.Config{
		Timeout:         cfg.Scrape.Timeout.Duration,
		UserAgent:       cfg.Scrape.UserAgent,
		MaxComments:     cfg.Scrape.MaxComments,
		MaxCommentChars: cfg.Scrape.MaxCommentChars,
	}, logger)

	var providers []signals.Provider
	if cfg.Signals.NewsAPIKey != "" {
		providers = append(providers, signals.NewNewsAPI(
			cfg.Signals.NewsAPIBase, cfg.Signals.NewsAPIKey,
			cfg.Signals.NewsWindowDays, cfg.Signals.NewsMaxResults,
		))
	}
	if cfg.Signals.XBearerToken != "" {
		providers = append(providers, signals.NewX(cfg.Signals.XAPIBase, cfg.Signals.XBearerToken, cfg.Signals.XMaxResults))
	}
	if cfg.Signals.RSSEnabled {
		providers = append(providers, signals.NewRSS(cfg.Signals.RSSFeedURL, cfg.Signals.RSSMaxResults))
	}

	return markets, contexts, signals.NewAggregator(logger, providers...), nil
}
