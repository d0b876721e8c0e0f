package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pplcallmesatz/gst-auditor-report/internal/api"
	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
)

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service, wake-up timer and health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.logger

	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if err := s.repo.Migrate(ctx); err != nil {
		return err
	}
	if _, err := s.keys.CurrentKey(ctx); err != nil {
		logger.Warn("failed to bootstrap webhook access key", "error", err)
	}

	jobs := app.NewJobs(s.arbiter, logger)
	scheduler := app.NewScheduler(jobs, s.waker, logger, *s.cfg)
	scheduler.Start()
	logger.Info("scheduler started")

	handler := api.NewHandler(api.Deps{
		Reports:       s.arbiter,
		Builder:       s.builder,
		Writer:        s.writer,
		Keys:          s.keys,
		Audit:         s.audit,
		Codes:         s.codes,
		Limiter:       rateLimiter(s),
		Metrics:       s.metrics,
		Logger:        logger,
		PublicBaseURL: s.cfg.PublicBaseURL,
		RatePerMinute: s.cfg.WebhookRateLimitPerMinute,
	})
	router := api.NewRouter(handler, s.cfg.InternalAPIKey)

	server := &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", s.cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("server stopped unexpectedly: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("scheduler stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown deadline")
	}
	return runErr
}

// rateLimiter keeps a nil limiter an untyped nil interface.
func rateLimiter(s *services) api.RateLimiter {
	if s.limiter == nil {
		return nil
	}
	return s.limiter
}
