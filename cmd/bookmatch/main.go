package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bookmatch-gateway/internal/cache"
	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/concierge"
	"bookmatch-gateway/internal/googlebooks"
	"bookmatch-gateway/internal/handlers"
	"bookmatch-gateway/internal/httpserver"
	"bookmatch-gateway/internal/llm"
	"bookmatch-gateway/internal/metrics"
	"bookmatch-gateway/internal/preferences"
	"bookmatch-gateway/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("bookmatch exited with error: %v", err)
	}
}

func run() error {
	if err := loadDotEnv(); err != nil {
		return err
	}

	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer func() { _ = logger.Sync() }()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Bool("gemini_enabled", cfg.GeminiEnabled),
		zap.Bool("gemini_key_set", cfg.GeminiAPIKey != ""),
		zap.String("gemini_model", cfg.GeminiModel),
		zap.String("gemini_api_version", cfg.GeminiAPIVersion),
		zap.Strings("cors_origins", cfg.AllowedOrigins),
	)

	// ----- Redis client (only if needed) -----
	var redisClient redis.Cmdable
	if cfg.CacheBackend == "redis" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rc.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rc.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// Serve with the memory cache rather than refusing to start.
			logger.Warn("redis unavailable, using memory cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
			redisClient = rc
		}
	}

	// ----- Cache for external-call responses -----
	cacheBackend := cache.ResolveBackend(cfg.CacheBackend, redisClient)
	logger.Info("response cache ready", zap.String("backend", cacheBackend))

	exactCache := cache.NewExactCache(cache.Config{
		Backend: cacheBackend,
		TTL:     cfg.CacheTTL,
		Prefix:  cfg.CachePrefix,
	}, redisClient)
	exactCache = cache.NewLoggingExactCache(exactCache)

	// ----- External text-understanding client -----
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:            cfg.GeminiBaseURL,
		APIKey:             cfg.GeminiAPIKey,
		DefaultModel:       cfg.GeminiModel,
		APIVersion:         cfg.GeminiAPIVersion,
		FallbackAPIVersion: cfg.GeminiFallbackVersion,
		Timeout:            cfg.GeminiTimeout,
		Cache:              exactCache,
		CacheTTL:           cfg.CacheTTL,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Domain services -----
	store := catalog.NewMemoryStore()
	extractor := preferences.NewExtractor(llmClient, cfg.GeminiEnabled, logger)
	con := concierge.New(llmClient, cfg.GeminiEnabled, logger)
	lookup := googlebooks.New(googlebooks.Config{APIKey: cfg.GoogleBooksAPIKey}, logger)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RatePerMinute:  cfg.RatePerMinute,
	}, httpserver.Handlers{
		Preferences:  handlers.NewPreferenceHandler(extractor, store, con),
		Books:        handlers.NewBookHandler(store, lookup, con),
		Requests:     handlers.NewRequestHandler(store),
		ConfigStatus: cfg.Status(cacheBackend, extractor.Enabled()),
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting bookmatch", zap.String("addr", srv.Addr))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	case <-stop:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
