package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visionzero/backend/internal/domain"
)

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the tables if they do not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS load_outcomes (
			seq BIGSERIAL PRIMARY KEY,
			id UUID UNIQUE NOT NULL,
			source TEXT NOT NULL,
			resource TEXT NOT NULL,
			status TEXT NOT NULL,
			http_status INTEGER NOT NULL DEFAULT 0,
			count INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS incidents (
			seq BIGSERIAL PRIMARY KEY,
			mode_type TEXT NOT NULL,
			lat DOUBLE PRECISION,
			long DOUBLE PRECISION,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			hour INTEGER NOT NULL
		);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("postgres: failed to migrate: %w", err)
	}
	return nil
}

// SaveLoadOutcome persists one load outcome
func (r *PostgresRepository) SaveLoadOutcome(ctx context.Context, o domain.LoadOutcome) error {
	query := `
		INSERT INTO load_outcomes (
			id, source, resource, status, http_status, count, skipped, error,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		o.ID, o.Source, o.Resource, string(o.Status), o.HTTPStatus, o.Count, o.Skipped, o.Error,
		o.StartedAt, o.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save load outcome: %w", err)
	}

	return nil
}

// ListLoadOutcomes retrieves the most recent outcomes, newest first
func (r *PostgresRepository) ListLoadOutcomes(ctx context.Context, limit int) ([]domain.LoadOutcome, error) {
	query := `
		SELECT id::text, source, resource, status, http_status, count, skipped, error,
			   started_at, finished_at
		FROM load_outcomes
		ORDER BY seq DESC
		LIMIT $1
	`
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.pool.Query(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query load outcomes: %w", err)
	}
	defer rows.Close()

	var results []domain.LoadOutcome
	for rows.Next() {
		var (
			o      domain.LoadOutcome
			status string
		)
		err := rows.Scan(
			&o.ID, &o.Source, &o.Resource, &status, &o.HTTPStatus, &o.Count, &o.Skipped, &o.Error,
			&o.StartedAt, &o.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan load outcome row: %w", err)
		}
		o.Status = domain.LoadStatus(status)
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate load outcomes: %w", err)
	}

	return results, nil
}

// SaveIncidents replaces the stored incidents using COPY inside one transaction
func (r *PostgresRepository) SaveIncidents(ctx context.Context, incidents []domain.RawIncident) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE incidents RESTART IDENTITY`); err != nil {
		return fmt.Errorf("postgres: failed to clear incidents: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"incidents"},
		[]string{"mode_type", "lat", "long", "year", "month", "hour"},
		pgx.CopyFromSlice(len(incidents), func(i int) ([]any, error) {
			in := incidents[i]
			return []any{string(in.ModeType), nullable(in.Lat), nullable(in.Long), in.Year, in.Month, in.Hour}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to copy incidents: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit incidents: %w", err)
	}
	return nil
}

// ListIncidents retrieves the stored incidents in insertion order
func (r *PostgresRepository) ListIncidents(ctx context.Context) ([]domain.RawIncident, error) {
	query := `
		SELECT mode_type, lat, long, year, month, hour
		FROM incidents
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query incidents: %w", err)
	}
	defer rows.Close()

	var results []domain.RawIncident
	for rows.Next() {
		var (
			in        domain.RawIncident
			mode      string
			lat, long *float64
		)
		if err := rows.Scan(&mode, &lat, &long, &in.Year, &in.Month, &in.Hour); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan incident row: %w", err)
		}
		in.ModeType = domain.ModeType(mode)
		in.Lat, in.Long = fromNullable(lat), fromNullable(long)
		results = append(results, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate incidents: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func nullable(n domain.LooseNumber) *float64 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func fromNullable(f *float64) domain.LooseNumber {
	if f == nil {
		return domain.LooseNumber(math.NaN())
	}
	return domain.LooseNumber(*f)
}
