package postgres

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionzero/backend/internal/domain"
)

func TestNullable(t *testing.T) {
	require.Nil(t, nullable(domain.LooseNumber(math.NaN())))
	require.Nil(t, nullable(domain.LooseNumber(math.Inf(1))))

	v := nullable(42.5)
	require.NotNil(t, v)
	require.Equal(t, 42.5, *v)

	require.True(t, math.IsNaN(float64(fromNullable(nil))))
	require.Equal(t, domain.LooseNumber(42.5), fromNullable(v))
}
