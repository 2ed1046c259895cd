package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsense/demandcast/timeseries"
	"github.com/gridsense/demandcast/weather"
)

var seriesEnd = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func generatedSeries(t *testing.T, seed uint64, hours int) *timeseries.Series {
	t.Helper()
	s, err := timeseries.NewGenerator(seed, nil).Generate(seriesEnd, hours)
	require.NoError(t, err)
	return s
}

func constSeries(t *testing.T, hours int, demandMW float64) *timeseries.Series {
	t.Helper()
	s, err := timeseries.GenerateConst(seriesEnd, hours, demandMW)
	require.NoError(t, err)
	return s
}

func fitEngine(t *testing.T, series *timeseries.Series) *Engine {
	t.Helper()
	e, err := NewEngine(nil)
	require.NoError(t, err)
	require.NoError(t, e.Fit(series))
	return e
}

func TestNewEngineInvalidOptions(t *testing.T) {
	opt := NewDefaultOptions()
	opt.ConfidenceFloor = 99
	opt.ConfidenceCeiling = 95
	_, err := NewEngine(opt)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestFitInsufficientHistory(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)

	short := constSeries(t, 24, 5000)
	assert.ErrorIs(t, e.Fit(short), ErrInsufficientHistory)

	_, err = e.Predict(24, nil)
	assert.ErrorIs(t, err, ErrUntrainedEngine)
}

func TestPredictBoundsInvariant(t *testing.T) {
	e := fitEngine(t, generatedSeries(t, 42, 24*90))
	res, err := e.Predict(72, nil)
	require.NoError(t, err)
	require.Len(t, res.Predictions, 72)

	opt := NewDefaultOptions()
	for _, p := range res.Predictions {
		assert.LessOrEqual(t, p.LowerBound, p.PredictedDemand)
		assert.LessOrEqual(t, p.PredictedDemand, p.UpperBound)
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
		assert.GreaterOrEqual(t, p.ConfidencePct, opt.ConfidenceFloor)
		assert.LessOrEqual(t, p.ConfidencePct, opt.ConfidenceCeiling)
	}
}

func TestPredictMonotoneBandAndConfidence(t *testing.T) {
	e := fitEngine(t, generatedSeries(t, 42, 24*90))
	res, err := e.Predict(168, nil)
	require.NoError(t, err)

	prevWidth := -1.0
	prevConf := 101.0
	for _, p := range res.Predictions {
		width := p.UpperBound - p.PredictedDemand
		assert.GreaterOrEqual(t, width, prevWidth, "band width must not shrink with distance")
		assert.LessOrEqual(t, p.ConfidencePct, prevConf, "confidence must not grow with distance")
		prevWidth = width
		prevConf = p.ConfidencePct
	}
}

func TestPredictDeterminism(t *testing.T) {
	series := generatedSeries(t, 42, 24*90)

	a, err := fitEngine(t, series).Predict(96, nil)
	require.NoError(t, err)
	b, err := fitEngine(t, series).Predict(96, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredictConstantSeries(t *testing.T) {
	series := constSeries(t, 24*14, 1000)
	e := fitEngine(t, series)
	res, err := e.Predict(24, nil)
	require.NoError(t, err)

	opt := NewDefaultOptions()
	for _, p := range res.Predictions {
		assert.InDelta(t, 1000.0, p.PredictedDemand, 1e-9)
		assert.InDelta(t, 1000.0, p.LowerBound, 1e-9, "zero residual spread leaves no band")
		assert.InDelta(t, 1000.0, p.UpperBound, 1e-9)
	}
	// a perfect in-sample fit keeps confidence near the ceiling at short range
	assert.Greater(t, res.Predictions[0].ConfidencePct, opt.ConfidenceCeiling-5)
	assert.InDelta(t, 0.0, e.FitMAPE(), 1e-9)
}

func TestPredictHorizonClamped(t *testing.T) {
	e := fitEngine(t, generatedSeries(t, 42, 24*90))
	res, err := e.Predict(10000, nil)
	require.NoError(t, err)
	assert.Len(t, res.Predictions, NewDefaultOptions().MaxHorizonHours)
}

func TestPredictInvalidHorizon(t *testing.T) {
	e := fitEngine(t, generatedSeries(t, 42, 24*90))
	_, err := e.Predict(0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestPredictTimestampsFollowTraining(t *testing.T) {
	series := constSeries(t, 24*14, 1000)
	e := fitEngine(t, series)
	res, err := e.Predict(3, nil)
	require.NoError(t, err)

	last := series.Last().Timestamp
	for i, p := range res.Predictions {
		assert.Equal(t, last.Add(time.Duration(i+1)*time.Hour), p.Timestamp)
	}
}

func TestPredictWeatherOverride(t *testing.T) {
	series := constSeries(t, 24*14, 1000)
	e := fitEngine(t, series)

	ts := series.Last().Timestamp.Add(time.Hour)
	hot := map[time.Time]weather.Conditions{
		ts: {Timestamp: ts, TemperatureC: 34, HumidityPct: 50},
	}

	base, err := e.Predict(2, nil)
	require.NoError(t, err)
	adjusted, err := e.Predict(2, hot)
	require.NoError(t, err)

	// 10 degrees over the cooling threshold at 100 MW per degree
	assert.InDelta(t, base.Predictions[0].PredictedDemand+1000,
		adjusted.Predictions[0].PredictedDemand, 1e-9)
	// the hour without an override is untouched
	assert.InDelta(t, base.Predictions[1].PredictedDemand,
		adjusted.Predictions[1].PredictedDemand, 1e-9)
}

func TestPredictNeverNegative(t *testing.T) {
	// tiny demand with a sharp recent drop pulls the raw prediction negative
	obs := make([]timeseries.Observation, 0, 24*8)
	start := seriesEnd.Add(-24 * 8 * time.Hour)
	for i := 0; i < 24*8; i++ {
		y := 10.0
		if i >= 24*8-2 {
			y = 0
		}
		obs = append(obs, timeseries.Observation{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			DemandMW:  y,
		})
	}
	series, err := timeseries.New(obs)
	require.NoError(t, err)

	e := fitEngine(t, series)
	res, err := e.Predict(24, nil)
	require.NoError(t, err)
	for _, p := range res.Predictions {
		assert.GreaterOrEqual(t, p.PredictedDemand, 0.0)
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
	}
}

func TestSummary(t *testing.T) {
	e := fitEngine(t, generatedSeries(t, 42, 24*90))
	res, err := e.Predict(48, nil)
	require.NoError(t, err)

	s := res.Summary
	assert.LessOrEqual(t, s.MinDemand, s.AvgDemand)
	assert.LessOrEqual(t, s.AvgDemand, s.MaxDemand)
	assert.Greater(t, s.AvgConfidence, 0.0)
}

func TestBacktest(t *testing.T) {
	series := generatedSeries(t, 42, 24*120)
	res, err := Backtest(series, 168, nil)
	require.NoError(t, err)

	assert.Equal(t, 168, res.HorizonHours)
	assert.Greater(t, res.Scores.MSE, 0.0)
	assert.Greater(t, res.Scores.RMSE, 0.0)
	assert.Less(t, res.Scores.MAPE, 0.5, "seasonal baseline should track the synthetic series")
}

func TestBacktestInsufficientHistory(t *testing.T) {
	series := generatedSeries(t, 42, 24*10)
	_, err := Backtest(series, 168, nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}
