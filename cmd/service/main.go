// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"career-timeline-api/internal/ai"
	"career-timeline-api/internal/api"
	"career-timeline-api/internal/clustering"
	"career-timeline-api/internal/config"
	"career-timeline-api/internal/github"
	"career-timeline-api/internal/model"
	"career-timeline-api/internal/significance"
	"career-timeline-api/internal/store"
	"career-timeline-api/internal/syncer"
	"career-timeline-api/internal/timeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	db := store.New(dbpool, logger)
	oauth := github.NewOAuth(cfg.GithubClientID, cfg.GithubClientSecret, logger)
	states := github.NewStateStore(10 * time.Minute)

	clientFactory := func(token string) syncer.GithubAPI {
		return github.NewClient(token, cfg.GithubPerPage, logger)
	}
	orchestrator := syncer.NewOrchestrator(db, db, significance.NewAnalyzer(), oauth,
		clientFactory, cfg.SyncConcurrency, logger)

	analyzer, err := ai.NewFromConfig(ai.Config{
		Provider:     cfg.AIProvider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		OllamaURL:    cfg.OllamaURL,
		OllamaModel:  cfg.OllamaModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

	clusterer := clustering.New(cfg.ClusterWindowDays, cfg.ClusterShallowThreshold)
	timelineService := timeline.NewService(db, clusterer, analyzer, logger)

	router := api.NewRouter(api.Deps{
		Profiles:   db,
		GithubData: db,
		OAuth:      oauth,
		States:     states,
		Syncer:     orchestrator,
		Timelines:  timelineService,
		LookupUser: func(ctx context.Context, token string) (*model.ExternalUser, error) {
			return github.NewClient(token, cfg.GithubPerPage, logger).GetAuthenticatedUser(ctx)
		},
		Logger: logger,
	})

	// 6. Start the HTTP server
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 7. Wait for shutdown signal or server failure
	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received. Exiting.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
