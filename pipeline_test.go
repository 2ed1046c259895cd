package demandcast

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsense/demandcast/timeseries"
	"github.com/gridsense/demandcast/weather"
)

var seriesEnd = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func historySeries(t *testing.T, seed uint64, n int) *timeseries.Series {
	t.Helper()
	series, err := timeseries.NewGenerator(seed, nil).Generate(seriesEnd, n)
	require.NoError(t, err)
	return series
}

func fittedPipeline(t *testing.T, provider weather.Provider) *Pipeline {
	t.Helper()
	p, err := NewPipeline(nil, provider)
	require.NoError(t, err)
	require.NoError(t, p.Fit(historySeries(t, 42, 24*60)))
	return p
}

func TestNewPipelineInvalidOptions(t *testing.T) {
	opt := NewDefaultOptions()
	opt.Forecast.MinLookbackHours = 0
	_, err := NewPipeline(opt, nil)
	assert.Error(t, err)
}

func TestPipelineBeforeFit(t *testing.T) {
	p, err := NewPipeline(nil, nil)
	require.NoError(t, err)

	assert.Nil(t, p.History())

	_, err = p.DeriveFeatures()
	assert.ErrorIs(t, err, ErrNoHistory)

	_, _, err = p.DetectAnomalies()
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = p.Optimize(24)
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = p.Stats()
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestPipelineForecast(t *testing.T) {
	p := fittedPipeline(t, nil)
	res, err := p.Forecast(24)
	require.NoError(t, err)
	require.Len(t, res.Predictions, 24)

	for _, pred := range res.Predictions {
		assert.GreaterOrEqual(t, pred.PredictedDemand, 0.0)
		assert.LessOrEqual(t, pred.LowerBound, pred.PredictedDemand)
		assert.GreaterOrEqual(t, pred.UpperBound, pred.PredictedDemand)
	}
	// predictions start one hour after the last observation
	last := p.History().Last().Timestamp
	assert.Equal(t, last.Add(time.Hour), res.Predictions[0].Timestamp)
}

func TestPipelineForecastWithWeather(t *testing.T) {
	plain := fittedPipeline(t, nil)
	adjusted := fittedPipeline(t, weather.NewSimulated(42))

	a, err := plain.Forecast(24)
	require.NoError(t, err)
	b, err := adjusted.Forecast(24)
	require.NoError(t, err)

	require.Len(t, b.Predictions, len(a.Predictions))
	for i := range a.Predictions {
		assert.Equal(t, a.Predictions[i].Timestamp, b.Predictions[i].Timestamp)
	}
}

func TestPipelineForecastProviderFailure(t *testing.T) {
	plain := fittedPipeline(t, nil)
	broken := fittedPipeline(t, weather.Unavailable{})

	a, err := plain.Forecast(24)
	require.NoError(t, err)
	b, err := broken.Forecast(24)
	require.NoError(t, err)
	assert.Equal(t, a.Predictions, b.Predictions,
		"provider errors fall back to the unadjusted forecast")
}

func TestPipelineDeriveFeatures(t *testing.T) {
	p := fittedPipeline(t, nil)
	vectors, err := p.DeriveFeatures()
	require.NoError(t, err)
	assert.Len(t, vectors, p.History().Len())
}

func TestPipelineDetectAnomalies(t *testing.T) {
	p := fittedPipeline(t, nil)
	alerts, analysis, err := p.DetectAnomalies()
	require.NoError(t, err)
	assert.Equal(t, len(alerts), analysis.TotalAlerts)
	assert.Equal(t, analysis.TotalAlerts,
		analysis.ZScoreCount+analysis.IQRCount+analysis.JumpCount)
}

func TestPipelineOptimize(t *testing.T) {
	p := fittedPipeline(t, nil)
	o, err := p.Optimize(24)
	require.NoError(t, err)

	assert.NotEmpty(t, o.Grid.Status.String())
	assert.Greater(t, o.Cost.CurrentCost, 0.0)
	assert.GreaterOrEqual(t, o.ShiftPotential.ShiftableLoadMW, 0.0)
}

func TestPipelineStats(t *testing.T) {
	p := fittedPipeline(t, nil)
	s, err := p.Stats()
	require.NoError(t, err)

	assert.Equal(t, 24*60, s.Observations)
	// generated observations end just before the requested end time
	assert.Equal(t, seriesEnd.Add(-time.Hour), s.End)
	assert.Equal(t, p.History().Last().Timestamp, s.End)
	assert.True(t, s.Start.Before(s.End))
	assert.GreaterOrEqual(t, s.MaxDemandMW, s.AvgDemandMW)
	assert.LessOrEqual(t, s.MinDemandMW, s.AvgDemandMW)
	assert.Greater(t, s.StdDemandMW, 0.0)
	assert.Equal(t, p.History().Last().DemandMW, s.CurrentDemandMW)
}

func TestRenderDashboard(t *testing.T) {
	p := fittedPipeline(t, nil)

	var buf strings.Builder
	require.NoError(t, p.RenderDashboard(&buf, 24, 168))
	html := buf.String()
	assert.Contains(t, html, "Demand Forecast")
	assert.Contains(t, html, "Forecast Confidence")
}

func TestRenderDashboardBeforeFit(t *testing.T) {
	p, err := NewPipeline(nil, nil)
	require.NoError(t, err)

	var buf strings.Builder
	assert.ErrorIs(t, p.RenderDashboard(&buf, 24, 168), ErrNothingToPlot)
}
