package sqlite

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visionzero/backend/internal/domain"
)

// NewTestDB creates a migrated in-memory database
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.RunMigrations(), "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestMigrations_Idempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.RunMigrations())

	for _, table := range []string{"load_outcomes", "incidents"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestRepository_LoadOutcomes(t *testing.T) {
	repo := NewRepository(NewTestDB(t))
	ctx := context.Background()

	first := domain.NewLoadOutcome("http://example", "data/vision_zero_ss.json").Succeed(42)
	second := domain.NewLoadOutcome("http://example", "data/Police_Districts.geojson").Fail(domain.ErrUnexpectedStatus)
	second.HTTPStatus = 404
	require.NoError(t, repo.SaveLoadOutcome(ctx, first))
	require.NoError(t, repo.SaveLoadOutcome(ctx, second))

	got, err := repo.ListLoadOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, second.ID, got[0].ID)
	require.Equal(t, domain.LoadFault, got[0].Status)
	require.Equal(t, 404, got[0].HTTPStatus)
	require.Equal(t, "unexpected status", got[0].Error)

	require.Equal(t, first.ID, got[1].ID)
	require.Equal(t, 42, got[1].Count)
	require.WithinDuration(t, first.StartedAt, got[1].StartedAt, time.Microsecond)

	one, err := repo.ListLoadOutcomes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)

	all, err := repo.ListLoadOutcomes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestRepository_Incidents(t *testing.T) {
	repo := NewRepository(NewTestDB(t))
	ctx := context.Background()

	rows := []domain.RawIncident{
		{ModeType: domain.ModeMotorVehicle, Lat: 42.35, Long: -71.06, Year: 2015, Month: 1, Hour: 8},
		{ModeType: domain.ModeBike, Lat: domain.LooseNumber(math.NaN()), Long: -71.1, Year: 2016, Month: 7, Hour: 23},
	}
	require.NoError(t, repo.SaveIncidents(ctx, rows))

	got, err := repo.ListIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, rows[0], got[0])
	require.True(t, math.IsNaN(float64(got[1].Lat)))
	require.Equal(t, domain.LooseNumber(-71.1), got[1].Long)

	// full replace
	require.NoError(t, repo.SaveIncidents(ctx, rows[:1]))
	got, err = repo.ListIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, repo.Health(ctx))
}
