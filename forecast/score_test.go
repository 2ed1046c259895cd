package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScores(t *testing.T) {
	predicted := []float64{100, 200, 300}
	actual := []float64{110, 190, 310}

	s, err := NewScores(predicted, actual)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, s.MSE, 1e-9)
	assert.InDelta(t, 10.0, s.RMSE, 1e-9)
	assert.InDelta(t, (10.0/110+10.0/190+10.0/310)/3, s.MAPE, 1e-9)
	assert.Greater(t, s.R2, 0.9)
}

func TestScoreLenMismatch(t *testing.T) {
	_, err := MSE([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrScoreLenMismatch)
	_, err = MAPE([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrScoreLenMismatch)
	_, err = RSquared([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrScoreLenMismatch)
}

func TestMAPESkipsZeroActuals(t *testing.T) {
	mape, err := MAPE([]float64{5, 100}, []float64{0, 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, mape, 1e-9)
}

func TestMSESkipsNaN(t *testing.T) {
	mse, err := MSE([]float64{1, math.NaN()}, []float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, mse, 1e-9)
}

func TestRSquaredPerfectFit(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	r2, err := RSquared(y, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-9)
}
