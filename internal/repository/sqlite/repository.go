package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/visionzero/backend/internal/domain"
)

// Repository implements domain.DataRepository for SQLite
type Repository struct {
	db *DB
}

// NewRepository creates a repository over db
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveLoadOutcome persists one outcome
func (r *Repository) SaveLoadOutcome(ctx context.Context, o domain.LoadOutcome) error {
	query := `
		INSERT INTO load_outcomes (
			id, source, resource, status, http_status, count, skipped, error,
			started_at, finished_at, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM load_outcomes))
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.Source, o.Resource, string(o.Status), o.HTTPStatus, o.Count, o.Skipped, o.Error,
		o.StartedAt.UTC().Format(time.RFC3339Nano), o.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save load outcome: %w", err)
	}
	return nil
}

// ListLoadOutcomes returns up to limit outcomes, newest first; limit <= 0 returns all
func (r *Repository) ListLoadOutcomes(ctx context.Context, limit int) ([]domain.LoadOutcome, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, source, resource, status, http_status, count, skipped, error, started_at, finished_at
		FROM load_outcomes
		ORDER BY seq DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query load outcomes: %w", err)
	}
	defer rows.Close()

	var results []domain.LoadOutcome
	for rows.Next() {
		var (
			o                 domain.LoadOutcome
			status            string
			started, finished string
		)
		if err := rows.Scan(&o.ID, &o.Source, &o.Resource, &status, &o.HTTPStatus, &o.Count, &o.Skipped,
			&o.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan load outcome: %w", err)
		}
		o.Status = domain.LoadStatus(status)
		if o.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("sqlite: bad started_at %q: %w", started, err)
		}
		if o.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("sqlite: bad finished_at %q: %w", finished, err)
		}
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate load outcomes: %w", err)
	}
	return results, nil
}

// SaveIncidents replaces the stored incident rows in one transaction
func (r *Repository) SaveIncidents(ctx context.Context, incidents []domain.RawIncident) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM incidents`); err != nil {
		return fmt.Errorf("sqlite: failed to clear incidents: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO incidents (mode_type, lat, long, year, month, hour) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, in := range incidents {
		if _, err := stmt.ExecContext(ctx, string(in.ModeType), nullable(in.Lat), nullable(in.Long),
			in.Year, in.Month, in.Hour); err != nil {
			return fmt.Errorf("sqlite: failed to insert incident: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit incidents: %w", err)
	}
	return nil
}

// ListIncidents returns the stored rows in insertion order
func (r *Repository) ListIncidents(ctx context.Context) ([]domain.RawIncident, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mode_type, lat, long, year, month, hour FROM incidents ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query incidents: %w", err)
	}
	defer rows.Close()

	var results []domain.RawIncident
	for rows.Next() {
		var (
			in        domain.RawIncident
			mode      string
			lat, long sql.NullFloat64
		)
		if err := rows.Scan(&mode, &lat, &long, &in.Year, &in.Month, &in.Hour); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan incident: %w", err)
		}
		in.ModeType = domain.ModeType(mode)
		in.Lat, in.Long = fromNullable(lat), fromNullable(long)
		results = append(results, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate incidents: %w", err)
	}
	return results, nil
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: health check failed: %w", err)
	}
	return nil
}

func nullable(n domain.LooseNumber) sql.NullFloat64 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func fromNullable(n sql.NullFloat64) domain.LooseNumber {
	if !n.Valid {
		return domain.LooseNumber(math.NaN())
	}
	return domain.LooseNumber(n.Float64)
}
