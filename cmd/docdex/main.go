package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vanban-cloud/docdex/internal/config"
	"github.com/vanban-cloud/docdex/internal/engine"
	"github.com/vanban-cloud/docdex/internal/index"
	logpkg "github.com/vanban-cloud/docdex/internal/logger"
	"github.com/vanban-cloud/docdex/internal/metrics"
	analyticsrepo "github.com/vanban-cloud/docdex/internal/repository/analytics"
	chiTransport "github.com/vanban-cloud/docdex/internal/transport/chi"
	openaiTransport "github.com/vanban-cloud/docdex/internal/transport/openai"
	"github.com/vanban-cloud/docdex/internal/usecase/document"
	healthuc "github.com/vanban-cloud/docdex/internal/usecase/health"
	searchuc "github.com/vanban-cloud/docdex/internal/usecase/search"
	"github.com/vanban-cloud/docdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("shards", cfg.Engine.Shards),
		zap.Bool("analytics", cfg.Analytics.Enabled),
		zap.Bool("semantic", cfg.Semantic.Enabled),
	)

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	// In-memory index store
	store := index.NewStore(index.Config{
		Shards:        cfg.Engine.Shards,
		NearThreshold: cfg.Engine.NearDuplicateThreshold,
	})

	// Analytics sink is optional; search degrades gracefully without it.
	// Pass nil interface (not typed nil pointer!) when not configured.
	var analyticsSink searchuc.AnalyticsSink
	var analyticsPinger healthuc.AnalyticsPinger
	if cfg.Analytics.Enabled {
		sink, err := analyticsrepo.New(analyticsrepo.Config{
			Addrs:    cfg.Analytics.Addrs,
			Username: cfg.Analytics.Username,
			Password: cfg.Analytics.Password,
			DB:       cfg.Analytics.DB,
			Stream:   cfg.Analytics.Stream,
			MaxLen:   cfg.Analytics.MaxLen,
		})
		if err != nil {
			logger.Fatal("Failed to create analytics sink", zap.Error(err))
		}
		defer sink.Close()
		analyticsSink = sink
		analyticsPinger = sink
		logger.Info("Analytics sink created", zap.String("stream", cfg.Analytics.Stream))
	}

	// Semantic collaborator is optional.
	var semanticRanker searchuc.SemanticRanker
	if cfg.Semantic.Enabled {
		ranker := openaiTransport.NewRanker(&openaiTransport.Config{
			APIKey:            cfg.Semantic.APIKey,
			BaseURL:           cfg.Semantic.BaseURL,
			Model:             cfg.Semantic.Model,
			Dimensions:        cfg.Semantic.Dimensions,
			RequestsPerSecond: cfg.Semantic.RequestsPerSecond,
			Burst:             cfg.Semantic.Burst,
		}, store, logger)
		semanticRanker = ranker
		logger.Info("Semantic ranker created", zap.String("model", cfg.Semantic.Model))
	}

	// Engine
	executor := engine.NewExecutor(store, engine.Config{ExpansionCap: cfg.Engine.ExpansionCap})
	weights := engine.DefaultWeights()
	if len(cfg.Engine.FieldWeights) > 0 {
		weights = engine.Weights(cfg.Engine.FieldWeights)
	}
	scorer := engine.NewScorer(weights)
	highlighter := engine.NewHighlighter(cfg.Engine.SnippetWindowTokens, cfg.Engine.SnippetsPerField)

	// Use case services
	searchSvc := searchuc.New(
		executor, store, scorer, highlighter, semanticRanker, analyticsSink, logger,
		searchuc.Config{
			QueryTimeout:    time.Duration(cfg.Engine.QueryTimeoutMs) * time.Millisecond,
			CursorThreshold: cfg.Engine.CursorOffsetThreshold,
			SemanticTopK:    cfg.Semantic.TopK,
		},
	)
	docSvc := document.New(store, logger)
	healthSvc := healthuc.New(store, analyticsPinger)

	// Chi server
	server := chiTransport.NewServer(docSvc, searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
