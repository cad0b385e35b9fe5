package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedvault/app/api"
	"feedvault/app/cfg"
	"feedvault/app/config"
	"feedvault/app/database"
	"feedvault/app/events"
	"feedvault/app/pipeline"
	"feedvault/app/queue"
	"feedvault/app/safety"
	"feedvault/app/scheduler"
	"feedvault/app/search"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting FeedVault server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	ctx := context.Background()

	rdb, err := queue.NewClient(ctx, appCfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)
	vectorIndex := database.NewVectorRepository(db)
	jobQueue := queue.New(rdb, queue.DefaultMaxAttempts)

	registerSeedFeeds(ctx, appCfg.FeedsDir, feedRepo)

	var embedder search.Embedder
	if appCfg.EmbeddingURL != "" {
		embedder = search.NewHTTPEmbedder(appCfg.EmbeddingURL, appCfg.EmbeddingAPIKey,
			appCfg.EmbeddingModel, appCfg.EmbeddingDimensions)
		slog.Info("Semantic indexing enabled", "model", appCfg.EmbeddingModel, "dimensions", appCfg.EmbeddingDimensions)
	} else {
		slog.Info("Semantic indexing disabled (EMBEDDING_URL not set)")
	}

	emitter := events.NewEmitter(256)
	defer emitter.Close()

	fetcher := pipeline.NewFetcher(&http.Client{}, appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second)
	processor := pipeline.NewProcessor(fetcher, feedRepo, entryRepo, vectorIndex, embedder,
		emitter, appCfg.SummaryMaxLen, appCfg.EmbedMaxChars, appCfg.FailureThreshold)

	workers := pipeline.NewWorkers(jobQueue, processor, emitter, appCfg.WorkerCount)
	workers.Start()
	defer workers.Stop()

	sched := scheduler.New(feedRepo, entryRepo, vectorIndex, jobQueue,
		time.Duration(appCfg.SchedulerInterval)*time.Second,
		appCfg.RecoveryLimit, appCfg.RetentionDays)
	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	searcher := search.NewSearcher(entryRepo, vectorIndex, embedder,
		appCfg.SearchMaxWords, appCfg.SearchTopK, appCfg.SearchMinScore)
	reindexer := search.NewReindexer(entryRepo, vectorIndex, embedder,
		appCfg.EmbedMaxChars, time.Duration(appCfg.ReindexCooldown)*time.Second)

	handler := api.NewHandler(feedRepo, entryRepo, vectorIndex, jobQueue,
		searcher, reindexer, safety.NewValidator(), appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Workers, scheduler and emitter are stopped via defers.
	slog.Info("Shutdown complete")
}

// registerSeedFeeds loads the YAML seed directory and upserts every
// declared feed. Failures are logged per feed; a bad seed never prevents
// startup.
func registerSeedFeeds(ctx context.Context, feedsDir string, feedRepo database.FeedRepository) {
	seeds, err := config.NewLoader(feedsDir).LoadAll()
	if err != nil {
		slog.Error("Failed to load seed feeds", "dir", feedsDir, "error", err)
		return
	}
	if len(seeds) == 0 {
		return
	}

	validator := safety.NewValidator()
	registered := 0
	for _, seed := range seeds {
		if err := validator.Validate(seed.URL); err != nil {
			slog.Warn("Skipping unsafe seed feed", "url", seed.URL, "error", err)
			continue
		}

		id, created, err := feedRepo.RegisterFeed(ctx, seed.URL, seed.Title, seed.ExtractContent)
		if err != nil {
			slog.Warn("Failed to register seed feed", "url", seed.URL, "error", err)
			continue
		}
		registered++
		if created {
			slog.Info("Registered seed feed", "feed_id", id, "url", seed.URL)
		}
	}
	slog.Info("Seed feeds registered", "registered", registered, "total", len(seeds))
}
