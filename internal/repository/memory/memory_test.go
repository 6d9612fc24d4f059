package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionzero/backend/internal/domain"
)

func TestRepository_LoadOutcomesNewestFirst(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	for _, res := range []string{"a", "b", "c"} {
		require.NoError(t, repo.SaveLoadOutcome(ctx, domain.NewLoadOutcome("test", res).Succeed(1)))
	}

	all, err := repo.ListLoadOutcomes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].Resource)
	require.Equal(t, "a", all[2].Resource)

	two, err := repo.ListLoadOutcomes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	require.Equal(t, "b", two[1].Resource)
}

func TestRepository_SaveIncidentsReplaces(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveIncidents(ctx, []domain.RawIncident{{ModeType: domain.ModeBike}, {ModeType: domain.ModePedestrian}}))
	require.NoError(t, repo.SaveIncidents(ctx, []domain.RawIncident{{ModeType: domain.ModeMotorVehicle}}))

	rows, err := repo.ListIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.ModeMotorVehicle, rows[0].ModeType)
	require.NoError(t, repo.Health(ctx))
}
