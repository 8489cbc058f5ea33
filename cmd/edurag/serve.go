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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/config"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
	"github.com/kailas-cloud/edurag/internal/metrics"
	materialrepo "github.com/kailas-cloud/edurag/internal/repository/material"
	chiTransport "github.com/kailas-cloud/edurag/internal/transport/chi"
	answeruc "github.com/kailas-cloud/edurag/internal/usecase/answer"
	generationuc "github.com/kailas-cloud/edurag/internal/usecase/generation"
	"github.com/kailas-cloud/edurag/internal/usecase/grounding"
	healthuc "github.com/kailas-cloud/edurag/internal/usecase/health"
	materialuc "github.com/kailas-cloud/edurag/internal/usecase/material"
	retrievaluc "github.com/kailas-cloud/edurag/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/edurag/internal/usecase/search"
	usageuc "github.com/kailas-cloud/edurag/internal/usecase/usage"
	validationuc "github.com/kailas-cloud/edurag/internal/usecase/validation"
	"github.com/kailas-cloud/edurag/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

//nolint:funlen // composition root
func runServe(cmd *cobra.Command, opts *rootOptions) error {
	env, cfg, logger, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting edurag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pg, err := openPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()

	metrics.RegisterHTTPMetrics()
	metrics.RegisterPipelineMetrics()

	chunks := newChunkRepo(store, cfg, logger)
	if created, err := chunks.EnsureIndex(ctx); err != nil {
		// The scan path still serves queries without the index.
		logger.Warn("Chunk index unavailable", zap.Error(err))
	} else if created {
		logger.Info("Chunk index created")
	}
	vectors := newVectorStore(chunks, cfg, logger)
	emb := newEmbedders(ctx, cfg, store, logger)
	model := newChatModel(cfg.LLM, logger)
	materials := materialrepo.New(pg, logger)
	policy := grounding.Policy{MinChunks: cfg.Grounding.MinChunks, MinScore: cfg.Grounding.MinScore}

	retriever := retrievaluc.New(vectors, emb.query, retrievaluc.Config{
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
		RerankChars:     cfg.Retrieval.RerankContentChars,
		DefaultTopK:     cfg.Retrieval.DefaultTopK,
	}, logger)

	var enricher generationuc.Enricher
	if e := newEnricher(cfg.Enrichment, store, cfg.Redis.KeyPrefix, logger); e != nil {
		enricher = e
	}
	generator := generationuc.New(retriever, enricher, model, materials, emb.document, vectors, generationuc.Config{
		TopK:   cfg.Retrieval.DefaultTopK,
		Policy: policy,
		Sampling: map[dommat.Category]generationuc.Sampling{
			dommat.CategoryTheory: {Temperature: cfg.LLM.TheoryTemperature, MaxTokens: cfg.LLM.TheoryMaxTokens},
			dommat.CategoryLab:    {Temperature: cfg.LLM.LabTemperature, MaxTokens: cfg.LLM.LabMaxTokens},
		},
	}, logger)

	answerer := answeruc.New(retriever, vectors, emb.query, model, answeruc.Config{
		Temperature:     cfg.LLM.AnswerTemperature,
		MaxTokens:       cfg.LLM.AnswerMaxTokens,
		DefaultTopK:     cfg.Retrieval.DefaultTopK,
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
	}, logger)

	images := searchuc.New(vectors, emb.query, searchuc.Config{
		OverfetchFactor: cfg.ImageSearch.OverfetchFactor,
	})

	var budgetReader usageuc.BudgetReader
	if emb.budget != nil {
		budgetReader = emb.budget
	}

	health := healthuc.New(store, pg, healthuc.CheckerFunc(func(ctx context.Context) error {
		return embeddingHealth(ctx, emb.document)
	}))

	server := chiTransport.NewServer(chiTransport.Services{
		Retriever: retriever,
		Generator: generator,
		Materials: materialuc.New(materials, vectors, logger),
		Validator: validationuc.New(materials, model, logger),
		Answerer:  answerer,
		Images:    images,
		Ingester:  newIngester(vectors, emb.document, cfg, logger),
		Health:    health,
		Usage:     usageuc.New(budgetReader),
	}, chiTransport.Config{
		Policy:               policy,
		DefaultMinSimilarity: cfg.ImageSearch.DefaultMinSimilarity,
		Version:              version.Version,
	}, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      newRouter(server, cfg, logger),
		ReadTimeout:  seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: seconds(cfg.HTTP.WriteTimeoutSec),
	}
	return listenAndShutdown(srv, seconds(cfg.HTTP.ShutdownSec), logger)
}

func newRouter(server *chiTransport.Server, cfg config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	if len(cfg.HTTP.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.HTTP.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Location", "X-Request-ID", chiTransport.HeaderEmbeddingTokens, chiTransport.HeaderCompletionTokens},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware("/metrics", "/health", "/health/ready"))
	server.Register(r)
	return r
}

func listenAndShutdown(srv *http.Server, timeout time.Duration, logger *zap.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
