package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the edurag API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Grounding   GroundingConfig   `yaml:"grounding"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	ImageSearch ImageSearchConfig `yaml:"image_search"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// RedisConfig holds the chunk index connection settings.
type RedisConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	DialTimeout      int      `yaml:"dial_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// PostgresConfig holds the materials database settings.
type PostgresConfig struct {
	URL                string `yaml:"url"` // takes precedence over the individual fields
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Database           string `yaml:"dbname"`
	SSLMode            string `yaml:"sslmode"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	Model               string       `yaml:"model"`
	Dimensions          int          `yaml:"dimensions"`
	TimeoutSec          int          `yaml:"timeout_sec"`
	DocumentInstruction string       `yaml:"document_instruction"`
	QueryInstruction    string       `yaml:"query_instruction"`
	CacheTTLSec         int          `yaml:"cache_ttl_sec"` // 0 disables the embedding cache
	Budget              BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// LLMConfig holds generation model settings.
type LLMConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	TheoryTemperature float32 `yaml:"theory_temperature"`
	TheoryMaxTokens   int     `yaml:"theory_max_tokens"`
	LabTemperature    float32 `yaml:"lab_temperature"`
	LabMaxTokens      int     `yaml:"lab_max_tokens"`
	AnswerTemperature float32 `yaml:"answer_temperature"`
	AnswerMaxTokens   int     `yaml:"answer_max_tokens"`
}

// RetrievalConfig holds vector store and retriever tuning.
type RetrievalConfig struct {
	OverfetchFactor    int   `yaml:"overfetch_factor"`
	ScanLimit          int   `yaml:"scan_limit"`
	InsertBatchSize    int   `yaml:"insert_batch_size"`
	RerankContentChars int   `yaml:"rerank_content_chars"`
	DefaultTopK        int   `yaml:"default_top_k"`
	ServerSideKNN      *bool `yaml:"server_side_knn"`
	HNSWM              int   `yaml:"hnsw_m"`
	HNSWEFConstruct    int   `yaml:"hnsw_ef_construction"`
}

// KNNEnabled reports whether the server-side kNN path is used (default true).
func (r RetrievalConfig) KNNEnabled() bool {
	return r.ServerSideKNN == nil || *r.ServerSideKNN
}

// GroundingConfig holds the enrichment trigger thresholds.
type GroundingConfig struct {
	MinChunks int     `yaml:"min_chunks"`
	MinScore  float64 `yaml:"min_score"`
}

// EnrichmentConfig holds external knowledge settings.
type EnrichmentConfig struct {
	Enabled       *bool   `yaml:"enabled"`
	BaseURL       string  `yaml:"base_url"`
	UserAgent     string  `yaml:"user_agent"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	CacheTTLSec   int     `yaml:"cache_ttl_sec"`
	CacheCapacity int     `yaml:"cache_capacity"`
	CacheBackend  string  `yaml:"cache_backend"` // memory (default), redis
	SearchLimit   int     `yaml:"search_limit"`
	RatePerSec    float64 `yaml:"rate_per_sec"`
	Burst         int     `yaml:"burst"`
}

// IsEnabled reports whether enrichment runs (default true).
func (e EnrichmentConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// IngestionConfig holds chunking settings.
type IngestionConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// ImageSearchConfig holds image search settings.
type ImageSearchConfig struct {
	OverfetchFactor      int     `yaml:"overfetch_factor"`
	DefaultMinSimilarity float64 `yaml:"default_min_similarity"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in raw YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120 // generation calls are slow
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Redis.Driver == "" {
		c.Redis.Driver = "redis"
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.DialTimeout <= 0 {
		c.Redis.DialTimeout = 5
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "edurag:"
	}

	if c.Postgres.Port <= 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns <= 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns <= 0 {
		c.Postgres.MaxIdleConns = 5
	}
	if c.Postgres.ConnMaxLifetimeSec <= 0 {
		c.Postgres.ConnMaxLifetimeSec = 300
	}

	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}

	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.LLM.TheoryTemperature <= 0 {
		c.LLM.TheoryTemperature = 0.2
	}
	if c.LLM.TheoryMaxTokens <= 0 {
		c.LLM.TheoryMaxTokens = 1200
	}
	if c.LLM.LabTemperature <= 0 {
		c.LLM.LabTemperature = 0.25
	}
	if c.LLM.LabMaxTokens <= 0 {
		c.LLM.LabMaxTokens = 1400
	}
	if c.LLM.AnswerTemperature <= 0 {
		c.LLM.AnswerTemperature = 0.2
	}
	if c.LLM.AnswerMaxTokens <= 0 {
		c.LLM.AnswerMaxTokens = 800
	}

	if c.Retrieval.OverfetchFactor == 0 {
		c.Retrieval.OverfetchFactor = 4
	}
	if c.Retrieval.ScanLimit <= 0 {
		c.Retrieval.ScanLimit = 1000
	}
	if c.Retrieval.InsertBatchSize <= 0 {
		c.Retrieval.InsertBatchSize = 100
	}
	if c.Retrieval.RerankContentChars <= 0 {
		c.Retrieval.RerankContentChars = 800
	}
	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 5
	}
	if c.Retrieval.HNSWM <= 0 {
		c.Retrieval.HNSWM = 16
	}
	if c.Retrieval.HNSWEFConstruct <= 0 {
		c.Retrieval.HNSWEFConstruct = 200
	}

	if c.Grounding.MinChunks <= 0 {
		c.Grounding.MinChunks = 3
	}
	if c.Grounding.MinScore <= 0 {
		c.Grounding.MinScore = 0.55
	}

	if c.Enrichment.BaseURL == "" {
		c.Enrichment.BaseURL = "https://en.wikipedia.org/api/rest_v1"
	}
	if c.Enrichment.UserAgent == "" {
		c.Enrichment.UserAgent = "edurag/1.0"
	}
	if c.Enrichment.TimeoutSec <= 0 {
		c.Enrichment.TimeoutSec = 6
	}
	if c.Enrichment.CacheTTLSec <= 0 {
		c.Enrichment.CacheTTLSec = 3600
	}
	if c.Enrichment.CacheCapacity <= 0 {
		c.Enrichment.CacheCapacity = 256
	}
	if c.Enrichment.CacheBackend == "" {
		c.Enrichment.CacheBackend = "memory"
	}
	if c.Enrichment.SearchLimit <= 0 {
		c.Enrichment.SearchLimit = 2
	}
	if c.Enrichment.RatePerSec <= 0 {
		c.Enrichment.RatePerSec = 5
	}
	if c.Enrichment.Burst <= 0 {
		c.Enrichment.Burst = 5
	}

	if c.Ingestion.ChunkSize <= 0 {
		c.Ingestion.ChunkSize = 1000
	}
	if c.Ingestion.ChunkOverlap <= 0 {
		c.Ingestion.ChunkOverlap = 200
	}

	if c.ImageSearch.OverfetchFactor <= 0 {
		c.ImageSearch.OverfetchFactor = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Redis.Driver {
	case "redis", "valkey":
	default:
		return fmt.Errorf("redis.driver must be \"redis\" or \"valkey\", got %q", c.Redis.Driver)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Postgres.URL == "" && c.Postgres.Host == "" {
		return fmt.Errorf("postgres.url or postgres.host is required")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Retrieval.OverfetchFactor < 1 {
		return fmt.Errorf("retrieval.overfetch_factor must be >= 1, got %d", c.Retrieval.OverfetchFactor)
	}
	if c.Grounding.MinScore > 1 {
		return fmt.Errorf("grounding.min_score must be <= 1, got %g", c.Grounding.MinScore)
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf(
			"ingestion.chunk_overlap must be smaller than chunk_size, got %d >= %d",
			c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize,
		)
	}
	switch c.Enrichment.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("enrichment.cache_backend must be \"memory\" or \"redis\", got %q", c.Enrichment.CacheBackend)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
