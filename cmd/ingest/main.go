// Command ingest loads an incident envelope file into the configured database so the
// server can read incidents with INCIDENTS_SOURCE=repository.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/visionzero/backend/internal/config"
	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/logger"
	"github.com/visionzero/backend/internal/repository/postgres"
	"github.com/visionzero/backend/internal/repository/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	file := flag.String("file", filepath.Join(cfg.Data.Dir, cfg.Data.IncidentsResource), "incident envelope to ingest")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, *file); err != nil {
		log.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

type repository interface {
	SaveIncidents(ctx context.Context, incidents []domain.RawIncident) error
	SaveLoadOutcome(ctx context.Context, outcome domain.LoadOutcome) error
}

func run(ctx context.Context, cfg config.Config, file string) error {
	repo, closeRepo, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	outcome := domain.NewLoadOutcome("file://"+filepath.Dir(file), filepath.Base(file))
	rows, err := readEnvelope(file)
	if err == nil {
		err = repo.SaveIncidents(ctx, rows)
	}
	if err != nil {
		outcome = outcome.Fail(err)
	} else {
		outcome = outcome.Succeed(len(rows))
	}
	if saveErr := repo.SaveLoadOutcome(ctx, outcome); saveErr != nil {
		logger.L().Warn("save_load_outcome_failed", "err", saveErr)
	}
	if err != nil {
		return err
	}

	logger.L().Info("incidents_ingested", "file", file, "count", len(rows),
		"duration_ms", outcome.Duration().Milliseconds())
	return nil
}

func readEnvelope(file string) ([]domain.RawIncident, error) {
	body, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to read %s: %w", file, err)
	}
	var env domain.IncidentEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("ingest: failed to decode %s: %w", file, err)
	}
	return env.Data, nil
}

func open(ctx context.Context, cfg config.Config) (repository, func(), error) {
	switch {
	case cfg.DB.DatabaseURL != "":
		pool, err := pgxpool.New(ctx, cfg.DB.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: failed to connect to database: %w", err)
		}
		repo := postgres.NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	case cfg.DB.SQLitePath != "":
		db, err := sqlite.New(cfg.DB.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewRepository(db), func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("ingest: set DATABASE_URL or SQLITE_PATH")
}
