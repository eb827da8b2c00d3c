// Command sheetrag runs the Sheet RAG engine behind an HTTP facade: a
// multi-granularity retrieval-augmented generation service for research
// papers, backed by SQLite+sqlite-vec, Ollama, and an optional Redis cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/garry00107/sheetrag/internal/cache"
	"github.com/garry00107/sheetrag/internal/chunk"
	"github.com/garry00107/sheetrag/internal/config"
	"github.com/garry00107/sheetrag/internal/embed"
	"github.com/garry00107/sheetrag/internal/engine"
	"github.com/garry00107/sheetrag/internal/httpapi"
	"github.com/garry00107/sheetrag/internal/llm"
	"github.com/garry00107/sheetrag/internal/logging"
	"github.com/garry00107/sheetrag/internal/store"
	"github.com/garry00107/sheetrag/internal/validate"
)

func main() {
	configPath := flag.String("config", ".", "Directory containing config.yaml")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nSheet RAG engine — research-paper question answering service.\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("sheetrag v1.0.0")
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}
	defer eng.Close()

	router := httpapi.NewRouter(eng, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("sheetrag listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildEngine(cfg *config.Config, logger *zap.Logger) (*engine.Engine, error) {
	sqliteStore, err := store.NewSQLite(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	embedder, err := embed.NewOllamaEmbedder(cfg.Embedding.Host, cfg.Embedding.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	llmClient, err := llm.NewOllamaClient(cfg.LLM.Host, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	cacheImpl := buildCache(cfg, logger)
	cachingEmbedder := embed.NewCachingEmbedder(embedder, cacheImpl, cfg.Embedding.BatchSize)

	validator := validate.New(nil, 0, 0)
	chunker := chunk.New(chunk.DefaultConfig())

	eng := engine.New(
		chunker,
		cachingEmbedder,
		cacheImpl,
		sqliteStore,
		validator,
		llmClient,
		logger,
		engine.Config{
			BatchSize:  cfg.Embedding.BatchSize,
			PersistDir: cfg.Storage.DBPath,
		},
	)
	return eng, nil
}

func buildCache(cfg *config.Config, logger *zap.Logger) cache.Cache {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemory()
	}
	return cache.NewRedis(cache.RedisOptions{
		Addr: cfg.Cache.RedisAddr,
		DB:   cfg.Cache.RedisDB,
	}, logger)
}
