// Package postgres holds the lib/pq connection pool used for generated materials.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// Config holds connection parameters for the materials database.
type Config struct {
	URL             string // used verbatim when set
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the PostgreSQL connection string.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns the connection target without credentials.
func (c Config) LogString() string {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "host=<from url>"
		}
		port := u.Port()
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// DB wraps the sql.DB connection pool.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// Open creates the connection pool and verifies it with a ping.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established", zap.String("connection", cfg.LogString()))

	return New(sqlDB, logger), nil
}

// New wraps an existing pool (tests pass a sqlmock connection).
func New(sqlDB *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: sqlDB, logger: logger}
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck pings the database and runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}
	return nil
}

// Schema is the DDL for generated materials.
const Schema = `
CREATE TABLE IF NOT EXISTS course_materials (
	id UUID PRIMARY KEY,
	course_id VARCHAR(255) NOT NULL,
	category VARCHAR(32) NOT NULL,
	topic TEXT NOT NULL,
	prompt TEXT NOT NULL,
	output TEXT NOT NULL,
	mode VARCHAR(32) NOT NULL,
	grounding_score DOUBLE PRECISION,
	sources JSONB NOT NULL DEFAULT '[]',
	created_by VARCHAR(255),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	validation JSONB
);

CREATE INDEX IF NOT EXISTS idx_course_materials_course ON course_materials(course_id, created_at DESC);
`

// InitSchema creates tables and indexes when missing.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	db.logger.Info("database schema initialized")
	return nil
}
