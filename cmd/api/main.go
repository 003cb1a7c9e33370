package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nycadventuretours/whatsapp-concierge/internal/api/router"
	"github.com/nycadventuretours/whatsapp-concierge/internal/chat"
	appconfig "github.com/nycadventuretours/whatsapp-concierge/internal/config"
	"github.com/nycadventuretours/whatsapp-concierge/internal/events"
	"github.com/nycadventuretours/whatsapp-concierge/internal/extraction"
	"github.com/nycadventuretours/whatsapp-concierge/internal/http/handlers"
	"github.com/nycadventuretours/whatsapp-concierge/internal/observability/metrics"
	"github.com/nycadventuretours/whatsapp-concierge/internal/responder"
	"github.com/nycadventuretours/whatsapp-concierge/internal/tours"
	"github.com/nycadventuretours/whatsapp-concierge/internal/whatsapp"
	"github.com/nycadventuretours/whatsapp-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres: pgx pool for the pipeline stores, database/sql for the
	// read-only admin dashboard.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open admin db handle", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Redis is optional: without it the dedupe guard soft-disables.
	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, webhook dedupe disabled", "error", err)
			client.Close()
		} else {
			redisClient = client
			defer client.Close()
		}
	}
	processedStore := events.NewProcessedStore(redisClient, cfg.ProcessedTTL)

	pipelineMetrics := metrics.NewPipelineMetrics(nil)

	chatStore := chat.NewStore(pool)
	tourStore := tours.NewStore(pool)
	logStore := responder.NewLogStore(pool)

	extractor, err := extraction.New(ctx, extraction.Config{
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
		Logger:  logger.Named("extraction").Logger,
	})
	if err != nil {
		logger.Error("failed to create extraction client", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()
	sender := whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsAppBaseURL,
		APIToken:      cfg.WhatsAppAPIToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		Timeout:       cfg.WhatsAppSendTimeout,
		Logger:        logger.Named("whatsapp").Logger,
	})
	matcher := tours.NewMatcher(tourStore, logger.Named("tours").Logger)

	pipeline := responder.NewPipeline(responder.Config{
		Contacts:    chatStore,
		Extractor:   extractor,
		Matcher:     matcher,
		Sender:      sender,
		Audit:       logStore,
		Metrics:     pipelineMetrics,
		Logger:      logger.Named("responder").Logger,
		CompanyName: cfg.CompanyName,
	})

	webhookHandler := handlers.NewWhatsAppWebhookHandler(
		pipeline, processedStore, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, logger)
	adminHandler := handlers.NewAdminHandler(sqlDB, chatStore, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Webhook:            webhookHandler,
		Admin:              adminHandler,
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
