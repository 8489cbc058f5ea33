// Package material persists generated course materials in Postgres.
package material

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/db/postgres"
	"github.com/kailas-cloud/edurag/internal/domain"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
)

// invalidTextRepresentation is raised by Postgres for a malformed UUID literal.
const invalidTextRepresentation = "22P02"

const selectColumns = `id, course_id, category, topic, prompt, output, mode,
	grounding_score, sources, created_by, created_at, validation`

// Repo stores materials in the course_materials table.
type Repo struct {
	db     *postgres.DB
	logger *zap.Logger
}

// New creates a material repository.
func New(db *postgres.DB, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{db: db, logger: logger}
}

// Insert stores a new material.
func (r *Repo) Insert(ctx context.Context, m *dommat.Material) error {
	sources, err := json.Marshal(nonNilSources(m.Sources))
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `
		INSERT INTO course_materials (
			id, course_id, category, topic, prompt, output, mode,
			grounding_score, sources, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID,
		m.CourseID,
		string(m.Category),
		m.Topic,
		m.Prompt,
		m.Output,
		string(m.Mode),
		nullFloat(m.GroundingScore),
		sources,
		nullString(m.CreatedBy),
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert material: %w", err)
	}

	r.logger.Debug("material inserted", zap.String("id", m.ID), zap.String("course_id", m.CourseID))
	return nil
}

// Get returns a material by ID, or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id string) (dommat.Material, error) {
	query := `SELECT ` + selectColumns + ` FROM course_materials WHERE id = $1`

	m, err := scanMaterial(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return dommat.Material{}, fmt.Errorf("material %s: %w", id, domain.ErrNotFound)
		}
		return dommat.Material{}, fmt.Errorf("failed to get material: %w", err)
	}
	return m, nil
}

// ListByCourse returns the newest materials of a course first.
func (r *Repo) ListByCourse(ctx context.Context, courseID string, limit int) ([]dommat.Material, error) {
	query := `SELECT ` + selectColumns + `
		FROM course_materials
		WHERE course_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var out []dommat.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating materials: %w", err)
	}
	return out, nil
}

// Delete removes a material. Returns domain.ErrNotFound when nothing was deleted.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_materials WHERE id = $1`, id)
	if err != nil {
		if isInvalidID(err) {
			return fmt.Errorf("material %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to delete material: %w", err)
	}
	return requireAffected(res, id)
}

// SaveValidation attaches a validation report to a material.
func (r *Repo) SaveValidation(ctx context.Context, id string, report dommat.ValidationReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal validation: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `UPDATE course_materials SET validation = $2 WHERE id = $1`, id, data)
	if err != nil {
		if isInvalidID(err) {
			return fmt.Errorf("material %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to save validation: %w", err)
	}
	return requireAffected(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (dommat.Material, error) {
	var (
		m          dommat.Material
		category   string
		mode       string
		score      sql.NullFloat64
		sources    []byte
		createdBy  sql.NullString
		validation []byte
	)
	err := row.Scan(
		&m.ID,
		&m.CourseID,
		&category,
		&m.Topic,
		&m.Prompt,
		&m.Output,
		&mode,
		&score,
		&sources,
		&createdBy,
		&m.CreatedAt,
		&validation,
	)
	if err != nil {
		return dommat.Material{}, err
	}

	m.Category = dommat.Category(category)
	m.Mode = dommat.Mode(mode)
	m.CreatedBy = createdBy.String
	if score.Valid {
		s := score.Float64
		m.GroundingScore = &s
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &m.Sources); err != nil {
			return dommat.Material{}, fmt.Errorf("decode sources of %s: %w", m.ID, err)
		}
	}
	if len(validation) > 0 {
		var report dommat.ValidationReport
		if err := json.Unmarshal(validation, &report); err != nil {
			return dommat.Material{}, fmt.Errorf("decode validation of %s: %w", m.ID, err)
		}
		m.Validation = &report
	}
	return m, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("material %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNilSources(s []dommat.Source) []dommat.Source {
	if s == nil {
		return []dommat.Source{}
	}
	return s
}
