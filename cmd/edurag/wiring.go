package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/config"
	"github.com/kailas-cloud/edurag/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/edurag/internal/db/redis"
	"github.com/kailas-cloud/edurag/internal/domain"
	"github.com/kailas-cloud/edurag/internal/metrics"
	budgetrepo "github.com/kailas-cloud/edurag/internal/repository/budget"
	chunkrepo "github.com/kailas-cloud/edurag/internal/repository/chunk"
	"github.com/kailas-cloud/edurag/internal/repository/embcache"
	"github.com/kailas-cloud/edurag/internal/repository/refcache"
	openaiTransport "github.com/kailas-cloud/edurag/internal/transport/openai"
	"github.com/kailas-cloud/edurag/internal/transport/wikipedia"
	embeddinguc "github.com/kailas-cloud/edurag/internal/usecase/embedding"
	enrichmentuc "github.com/kailas-cloud/edurag/internal/usecase/enrichment"
	ingestionuc "github.com/kailas-cloud/edurag/internal/usecase/ingestion"
	"github.com/kailas-cloud/edurag/internal/usecase/vectorstore"
)

const embeddingProvider = "openai"

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// openRedis connects to the chunk index and waits until it answers.
func openRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*dbRedis.Store, error) {
	// Valkey speaks the same protocol; the driver name only matters for logs.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:       cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		ClientName:  "edurag",
		DialTimeout: seconds(cfg.DialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	if err := store.WaitForReady(ctx, seconds(cfg.ReadinessTimeout)); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
	}
	logger.Info("Connected to vector store", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))
	return store, nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*postgres.DB, error) {
	pg, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.URL,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: seconds(cfg.ConnMaxLifetimeSec),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open materials database: %w", err)
	}
	if err := pg.InitSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("init materials schema: %w", err)
	}
	return pg, nil
}

func newChunkRepo(store *dbRedis.Store, cfg config.Config, logger *zap.Logger) *chunkrepo.Repo {
	return chunkrepo.New(store, chunkrepo.Config{
		KeyPrefix:  cfg.Redis.KeyPrefix,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Retrieval.InsertBatchSize,
		HNSW: chunkrepo.HNSWConfig{
			M:           cfg.Retrieval.HNSWM,
			EFConstruct: cfg.Retrieval.HNSWEFConstruct,
		},
	}, logger)
}

// newVectorStore builds the two-stage lookup: server-side kNN first, bounded scan on failure.
func newVectorStore(repo *chunkrepo.Repo, cfg config.Config, logger *zap.Logger) *vectorstore.Service {
	var primary vectorstore.Lookup
	if cfg.Retrieval.KNNEnabled() {
		primary = vectorstore.NewPrimaryLookup(repo)
	}
	return vectorstore.New(repo, primary, nil, vectorstore.Config{
		Dimensions: cfg.Embedding.Dimensions,
		ScanLimit:  cfg.Retrieval.ScanLimit,
	}, logger)
}

// embedders holds the document and query decorator chains sharing one budget.
type embedders struct {
	document domain.Embedder
	query    domain.Embedder
	budget   *embeddinguc.BudgetTracker
}

func newEmbedders(ctx context.Context, cfg config.Config, store *dbRedis.Store, logger *zap.Logger) embedders {
	metrics.RegisterEmbeddingMetrics()

	// Single BudgetTracker shared by both chains and the usage report.
	var budget *embeddinguc.BudgetTracker
	bc := cfg.Embedding.Budget
	if bc.DailyTokenLimit > 0 || bc.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if bc.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			embeddingProvider, bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, logger,
		)
		budget.WithStore(ctx, budgetrepo.New(
			store, cfg.Redis.KeyPrefix, embeddingProvider, 48*time.Hour, 62*24*time.Hour,
		))
	}

	// Pass a nil interface, not a typed nil pointer, when no budget is configured.
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   embeddingProvider,
		Timeout:    seconds(cfg.Embedding.TimeoutSec),
		Logger:     logger,
	})

	logger.Info("Embedders created",
		zap.String("provider", embeddingProvider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("budget", budget != nil),
	)
	return embedders{
		document: buildEmbedder(base, cfg, cfg.Embedding.DocumentInstruction, store, checker, logger),
		query:    buildEmbedder(base, cfg, cfg.Embedding.QueryInstruction, store, checker, logger),
		budget:   budget,
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	base *openaiTransport.Embedder,
	cfg config.Config,
	instruction string,
	store *dbRedis.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if cfg.Embedding.CacheTTLSec > 0 {
		embedder = embcache.New(
			base, store, cfg.Redis.KeyPrefix, seconds(cfg.Embedding.CacheTTLSec),
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embeddingProvider, cfg.Embedding.Model, budget, logger)

	// Outermost, so the cache key includes the instruction.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func newChatModel(cfg config.LLMConfig, logger *zap.Logger) *openaiTransport.ChatModel {
	return openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: seconds(cfg.TimeoutSec),
		Logger:  logger,
	})
}

// newEnricher returns nil when enrichment is disabled.
func newEnricher(cfg config.EnrichmentConfig, store *dbRedis.Store, keyPrefix string, logger *zap.Logger) *enrichmentuc.Enricher {
	if !cfg.IsEnabled() {
		logger.Info("External enrichment disabled")
		return nil
	}

	source := wikipedia.New(wikipedia.Config{
		BaseURL:    cfg.BaseURL,
		UserAgent:  cfg.UserAgent,
		Timeout:    seconds(cfg.TimeoutSec),
		RatePerSec: cfg.RatePerSec,
		Burst:      cfg.Burst,
		Logger:     logger,
	})

	var cache enrichmentuc.Cache
	switch cfg.CacheBackend {
	case "redis":
		cache = refcache.New(store, keyPrefix, seconds(cfg.CacheTTLSec), logger)
	default:
		cache = enrichmentuc.NewMemoryCache(seconds(cfg.CacheTTLSec), cfg.CacheCapacity, time.Now)
	}
	return enrichmentuc.New(source, cache, cfg.SearchLimit, logger)
}

func newIngester(
	vectors *vectorstore.Service, embed domain.Embedder, cfg config.Config, logger *zap.Logger,
) *ingestionuc.Service {
	chunker := ingestionuc.NewChunker(
		ingestionuc.WithChunkSize(cfg.Ingestion.ChunkSize),
		ingestionuc.WithOverlap(cfg.Ingestion.ChunkOverlap),
	)
	return ingestionuc.New(vectors, embed, chunker, cfg.Embedding.Dimensions, logger)
}
