package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHourly(t *testing.T, start time.Time, y []float64) *Series {
	t.Helper()
	obs := make([]Observation, len(y))
	for i := range y {
		obs[i] = Observation{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			DemandMW:  y[i],
		}
	}
	s, err := New(obs)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	testData := map[string]struct {
		obs      []Observation
		expected error
	}{
		"empty": {
			obs:      nil,
			expected: ErrNoObservations,
		},
		"not hour aligned": {
			obs: []Observation{
				{Timestamp: start.Add(30 * time.Minute), DemandMW: 5000},
			},
			expected: ErrNotHourAligned,
		},
		"non monotonic": {
			obs: []Observation{
				{Timestamp: start.Add(time.Hour), DemandMW: 5000},
				{Timestamp: start, DemandMW: 5000},
			},
			expected: ErrNonMonotonic,
		},
		"duplicate timestamp": {
			obs: []Observation{
				{Timestamp: start, DemandMW: 5000},
				{Timestamp: start, DemandMW: 5100},
			},
			expected: ErrNonMonotonic,
		},
		"negative demand": {
			obs: []Observation{
				{Timestamp: start, DemandMW: -1},
			},
			expected: ErrNegativeDemand,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := New(td.obs)
			assert.ErrorIs(t, err, td.expected)
		})
	}
}

func TestFromValuesLenMismatch(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := FromValues([]time.Time{start}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrSeriesLenMismatch)
}

func TestAccessorsCopy(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := mustHourly(t, start, []float64{1000, 2000, 3000})

	y := s.Demand()
	y[0] = 9999
	assert.Equal(t, 1000.0, s.At(0).DemandMW)

	obs := s.Observations()
	obs[1].DemandMW = 9999
	assert.Equal(t, 2000.0, s.At(1).DemandMW)
}

func TestTail(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := mustHourly(t, start, []float64{1, 2, 3, 4, 5})

	tail := s.Tail(2)
	require.Equal(t, 2, tail.Len())
	assert.Equal(t, 4.0, tail.At(0).DemandMW)
	assert.Equal(t, 5.0, tail.At(1).DemandMW)

	whole := s.Tail(100)
	assert.Equal(t, 5, whole.Len())
}

func TestLookupDemand(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := mustHourly(t, start, []float64{1000, 2000, 3000})

	y, ok := s.LookupDemand(start.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, 2000.0, y)

	_, ok = s.LookupDemand(start.Add(-time.Hour))
	assert.False(t, ok)
	_, ok = s.LookupDemand(start.Add(10 * time.Hour))
	assert.False(t, ok)
}

func TestGenerateDeterminism(t *testing.T) {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	a, err := NewGenerator(7, nil).Generate(end, 24*30)
	require.NoError(t, err)
	b, err := NewGenerator(7, nil).Generate(end, 24*30)
	require.NoError(t, err)
	assert.Equal(t, a.Observations(), b.Observations())

	c, err := NewGenerator(8, nil).Generate(end, 24*30)
	require.NoError(t, err)
	assert.NotEqual(t, a.Demand(), c.Demand())
}

func TestGenerateFloorAndShape(t *testing.T) {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	opt := NewDefaultGeneratorOptions()
	s, err := NewGenerator(42, opt).Generate(end, 24*90)
	require.NoError(t, err)
	require.Equal(t, 24*90, s.Len())

	var nightSum, daySum float64
	var nightN, dayN int
	for _, o := range s.Observations() {
		assert.GreaterOrEqual(t, o.DemandMW, opt.FloorMW)
		switch o.Timestamp.Hour() {
		case 2, 3, 4:
			nightSum += o.DemandMW
			nightN++
		case 13, 14, 15:
			daySum += o.DemandMW
			dayN++
		}
	}
	assert.Greater(t, daySum/float64(dayN), nightSum/float64(nightN),
		"daytime demand should exceed overnight demand")
}

func TestGenerateConst(t *testing.T) {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s, err := GenerateConst(end, 48, 1000)
	require.NoError(t, err)
	require.Equal(t, 48, s.Len())
	for _, y := range s.Demand() {
		assert.Equal(t, 1000.0, y)
	}
	assert.Equal(t, end.Add(-time.Hour), s.Last().Timestamp)
}
