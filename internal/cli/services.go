/**
 * @description
 * Dependency wiring shared by the gstreport commands.
 */
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
	"github.com/pplcallmesatz/gst-auditor-report/internal/config"
	"github.com/pplcallmesatz/gst-auditor-report/internal/observability"
	"github.com/pplcallmesatz/gst-auditor-report/internal/store"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/geoclient"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/mailer"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/rabbitmq"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/xlsxwriter"
)

type services struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	pool  *pgxpool.Pool
	repo  *store.Repository
	redis *redis.Client

	events  rabbitmq.Publisher
	limiter *app.RedisRateLimiter
	writer  *xlsxwriter.Writer
	builder *app.Aggregator
	waker   *app.WakeTimer
	arbiter *app.Arbiter
	keys    *app.AccessKeys
	audit   *app.AccessLogger
	codes   *app.ClassificationCodes
}

// unconfiguredMailer fails every send so attempts are retried once SMTP is set up.
type unconfiguredMailer struct {
	reason error
}

func (m unconfiguredMailer) Send(ctx context.Context, mail mailer.Mail) error {
	return fmt.Errorf("mail delivery unavailable: %w", m.reason)
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := observability.NewLogger(cfg.LogFile)
	return cfg, logger, nil
}

// openStore connects to Postgres. Callers own the returned pool.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, *store.Repository, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil, errors.New("DATABASE_URL is not set")
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database connection established")
	return pool, store.NewRepository(pool), nil
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		logger.Warn("redis url missing; webhook rate limiting and shared tax cache disabled", "env", "REDIS_URL")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis url parse failed; webhook rate limiting and shared tax cache disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; webhook rate limiting and shared tax cache disabled", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

func newMailer(cfg *config.Config, logger *slog.Logger) app.Mailer {
	m, err := mailer.NewSMTPMailer(mailer.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		FromAddress: cfg.MailFromAddress,
		FromName:    cfg.MailFromName,
	})
	if err != nil {
		logger.Warn("smtp mailer not configured; report sends will fail until it is", "error", err)
		return unconfiguredMailer{reason: err}
	}
	return m
}

// buildServices wires the full application graph on top of Postgres.
func buildServices(ctx context.Context) (*services, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	pool, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &services{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		pool:    pool,
		repo:    repo,
		redis:   connectRedis(ctx, cfg, logger),
		events:  rabbitmq.NewPublisher(cfg.RabbitMQURL, logger),
		writer:  xlsxwriter.NewWriter(cfg.ArtifactDir),
		waker:   app.NewWakeTimer(),
	}
	loc := cfg.Location()

	var cacheBackend app.TaxSchemaBackend
	if s.redis != nil {
		s.limiter = app.NewRedisRateLimiter(s.redis, cfg.RedisKeyPrefix)
		cacheBackend = app.NewRedisTaxSchemaBackend(s.redis, cfg.RedisKeyPrefix)
	}
	taxes := app.NewTaxSchemaCache(repo, cacheBackend, cfg.TaxSchemaCacheTTL(), s.metrics, logger)
	resolver := app.NewPriorityCodeResolver(repo, cfg.ClassificationPriority == config.PriorityVariantFirst)
	s.builder = app.NewAggregator(repo, taxes, resolver, cfg.OrderStatuses(), loc, logger)

	dispatcher := app.NewDispatcher(s.writer, newMailer(cfg, logger), s.metrics, logger, loc)
	s.arbiter = app.NewArbiter(repo, s.builder, dispatcher, s.waker, s.events, s.metrics, logger, loc, cfg.AttemptTimeout())
	s.keys = app.NewAccessKeys(repo, s.events, logger)
	s.audit = app.NewAccessLogger(repo, geoclient.NewClient(cfg.GeolocationURL), logger)
	s.codes = app.NewClassificationCodes(repo)

	return s, nil
}

func (s *services) Close() {
	s.waker.Disarm()
	if s.events != nil {
		s.events.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
