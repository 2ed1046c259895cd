package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpact(t *testing.T) {
	testData := map[string]struct {
		tempC       float64
		humidityPct float64
		expected    float64
	}{
		"comfort band":             {tempC: 21, humidityPct: 50, expected: 0},
		"comfort lower edge":       {tempC: 18, humidityPct: 50, expected: 0},
		"comfort upper edge":       {tempC: 24, humidityPct: 50, expected: 0},
		"heating":                  {tempC: 10, humidityPct: 50, expected: 8 * 80},
		"cooling":                  {tempC: 30, humidityPct: 50, expected: 6 * 100},
		"cooling humid":            {tempC: 30, humidityPct: 80, expected: 6 * 100 * 1.1},
		"heating dry":              {tempC: 10, humidityPct: 20, expected: 8 * 80 * 1.05},
		"cooling humidity unknown": {tempC: 30, humidityPct: -1, expected: 6 * 100},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, td.expected, Impact(nil, td.tempC, td.humidityPct), 1e-9)
		})
	}
}

func TestSimulatedDeterminism(t *testing.T) {
	ts := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	a, err := NewSimulated(3).Conditions(ts)
	require.NoError(t, err)
	b, err := NewSimulated(3).Conditions(ts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulatedForecastLength(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out, err := NewSimulated(3).Forecast(from, 24)
	require.NoError(t, err)
	require.Len(t, out, 24)
	for i, c := range out {
		assert.Equal(t, from.Add(time.Duration(i)*time.Hour), c.Timestamp)
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Conditions(time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}
