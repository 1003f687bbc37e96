// Package main is the entry point for the conversational memory service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/easeaico/convo-memory/internal/config"
	"github.com/easeaico/convo-memory/internal/lease"
	"github.com/easeaico/convo-memory/internal/llm"
	"github.com/easeaico/convo-memory/internal/memory"
	"github.com/easeaico/convo-memory/internal/service"
	v1 "github.com/easeaico/convo-memory/internal/transport/http/v1"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(cfg)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator, cleanup, err := initializeService(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize service: %v", err)
	}
	defer cleanup()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(orchestrator).RegisterRoutes(e)

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()
	logrus.WithField("addr", cfg.HTTPAddr).Info("Memory service started")

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Failed to shutdown server gracefully")
	}
}

func setupLogging(cfg config.Config) {
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// initializeService creates and wires all components.
func initializeService(ctx context.Context, cfg config.Config) (*service.Orchestrator, func(), error) {
	store, err := memory.Open(ctx, cfg.StoreBackend, cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	baseURL := cfg.OllamaBaseURL
	apiKey := cfg.GoogleAPIKey
	if cfg.LLMProvider == llm.ProviderOpenAI {
		baseURL, apiKey = cfg.OpenAIBaseURL, cfg.OpenAIAPIKey
	}
	client, err := llm.New(ctx, llm.Options{
		Provider:   cfg.LLMProvider,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		ChatModel:  cfg.ChatModel,
		EmbedModel: cfg.EmbedModel,
		Timeout:    cfg.LLMTimeout,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	locker, closeLocker := newLocker(cfg)

	orchestrator := service.New(memory.WithTimeout(store, cfg.StoreTimeout), client, locker, service.Options{
		ShortTermN:             cfg.ShortTermN,
		EpisodicTopK:           cfg.EpisodicTopK,
		EpisodicOwnerScope:     cfg.EpisodicScope == "owner",
		SummarizeEvery:         cfg.SummarizeEvery,
		LifetimeEvery:          cfg.LifetimeEvery,
		LifetimeSessionCounter: cfg.LifetimeCounter == "session",
	})

	cleanup := func() {
		closeLocker()
		if err := store.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close store")
		}
	}

	logrus.WithFields(logrus.Fields{
		"store":    cfg.StoreBackend,
		"provider": cfg.LLMProvider,
		"lease":    cfg.LeaseBackend,
	}).Info("Memory service initialized")
	return orchestrator, cleanup, nil
}

func newLocker(cfg config.Config) (lease.Locker, func()) {
	switch cfg.LeaseBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		return lease.NewRedisLocker(rdb, "convo-memory:lease:", cfg.LeaseTTL), func() { _ = rdb.Close() }
	case "none":
		return lease.NopLocker{}, func() {}
	default:
		return lease.NewLocalLocker(), func() {}
	}
}
