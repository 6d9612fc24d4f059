package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionzero/backend/internal/domain"
)

func TestNormalize_CoercesAndNumbers(t *testing.T) {
	var env domain.IncidentEnvelope
	err := json.Unmarshal([]byte(`{
		"data": [
			{"mode_type": "mv", "lat": "42.35", "long": "-71.06", "year": 2015, "month": 3, "hour": 8},
			{"mode_type": "bike", "lat": 42.31, "long": -71.09, "year": 2015, "month": 3, "hour": 17},
			{"mode_type": "ped", "lat": "n/a", "long": null, "year": 2016, "month": 12, "hour": 0},
			{"mode_type": "scooter", "lat": 42.3, "long": -71.0, "year": 2016, "month": 1, "hour": 1},
			{"mode_type": "mv", "lat": 42.3, "long": -71.0, "year": 2016, "month": 13, "hour": 1},
			{"mode_type": "mv", "lat": 42.3, "long": -71.0, "year": 2016, "month": 1, "hour": 24}
		],
		"schema": {"fields": []}
	}`), &env)
	require.NoError(t, err)

	incidents, skipped := domain.Normalize(env.Data)
	require.Equal(t, 3, skipped)
	require.Len(t, incidents, 3)

	require.Equal(t, int64(1), incidents[0].ID)
	require.Equal(t, int64(2), incidents[1].ID)
	require.Equal(t, int64(3), incidents[2].ID)

	require.Equal(t, 201503, incidents[0].PeriodKey)
	require.Equal(t, incidents[0].PeriodKey, incidents[1].PeriodKey)
	require.InDelta(t, 42.35, incidents[0].Lat, 1e-9)
	require.InDelta(t, -71.06, incidents[0].Long, 1e-9)
	require.True(t, incidents[0].HasCoords)

	require.False(t, incidents[2].HasCoords)
	_, err = json.Marshal(incidents)
	require.NoError(t, err)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]domain.ModeType{
		"":     domain.ModeAll,
		"*":    domain.ModeAll,
		"all":  domain.ModeAll,
		"MV":   domain.ModeMotorVehicle,
		"bike": domain.ModeBike,
		"ped":  domain.ModePedestrian,
	} {
		got, err := domain.ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := domain.ParseMode("truck")
	require.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestLoadOutcome(t *testing.T) {
	o := domain.NewLoadOutcome("file:///data", "data/vision_zero_ss.json")
	require.NotEmpty(t, o.ID)

	require.Equal(t, domain.LoadSuccess, o.Succeed(10).Status)
	require.Equal(t, domain.LoadEmpty, o.Succeed(0).Status)

	f := o.Fail(domain.ErrUnexpectedStatus)
	require.Equal(t, domain.LoadFault, f.Status)
	require.Equal(t, "unexpected status", f.Error)
}

func TestStats_Observe(t *testing.T) {
	s := domain.NewStats()
	require.True(t, s.Empty())
	s.Observe(5)
	s.Observe(2)
	s.Observe(9)
	require.Equal(t, 2.0, s.Min)
	require.Equal(t, 9.0, s.Max)
	require.Equal(t, 16, s.Totals)
}

func TestStats_MarshalEmpty(t *testing.T) {
	b, err := json.Marshal(domain.NewAllStats())
	require.NoError(t, err)
	require.JSONEq(t, `{
		"year": {"min": null, "max": null, "totals": 0},
		"month": {"min": null, "max": null, "totals": 0},
		"hour": {"min": null, "max": null, "totals": 0}
	}`, string(b))
}

func TestNormalize_RejectsOffGlobeCoordinates(t *testing.T) {
	incidents, skipped := domain.Normalize([]domain.RawIncident{
		{ModeType: domain.ModeBike, Lat: 42.3, Long: 1e308, Year: 2015, Month: 1},
		{ModeType: domain.ModeBike, Lat: -90.5, Long: -71, Year: 2015, Month: 1},
		{ModeType: domain.ModeBike, Lat: 90, Long: 180, Year: 2015, Month: 1},
	})
	require.Zero(t, skipped)
	require.False(t, incidents[0].HasCoords)
	require.Zero(t, incidents[0].Long)
	require.False(t, incidents[1].HasCoords)
	require.True(t, incidents[2].HasCoords)
}

func TestStats_JSONRoundTrip(t *testing.T) {
	s := domain.NewAllStats()
	s.Month.Observe(4)
	s.Month.Observe(1)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	var back domain.AllStats
	require.NoError(t, json.Unmarshal(b, &back))

	require.True(t, back.Year.Empty())
	require.True(t, back.Hour.Empty())
	require.Equal(t, 1.0, back.Month.Min)
	require.Equal(t, 4.0, back.Month.Max)
	require.Equal(t, 5, back.Month.Totals)
}
