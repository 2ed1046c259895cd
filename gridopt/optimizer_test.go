package gridopt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsense/demandcast/forecast"
)

func newOptimizer(t *testing.T) *Optimizer {
	t.Helper()
	g, err := NewOptimizer(nil)
	require.NoError(t, err)
	return g
}

func flatPredictions(demandMW float64, hours int) []forecast.Prediction {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	preds := make([]forecast.Prediction, hours)
	for i := range preds {
		preds[i] = forecast.Prediction{
			Timestamp:       start.Add(time.Duration(i) * time.Hour),
			PredictedDemand: demandMW,
			LowerBound:      demandMW * 0.9,
			UpperBound:      demandMW * 1.1,
			ConfidencePct:   90,
		}
	}
	return preds
}

func TestOptionsValidate(t *testing.T) {
	testData := map[string]func(*Options){
		"zero capacity":            func(o *Options) { o.MaxCapacityMW = 0 },
		"peak threshold too high":  func(o *Options) { o.PeakThreshold = 1 },
		"critical below peak":      func(o *Options) { o.CriticalThreshold = 0.5 },
		"inverted optimal range":   func(o *Options) { o.OptimalLow, o.OptimalHigh = 0.7, 0.4 },
		"optimal high above unity": func(o *Options) { o.OptimalHigh = 1.2 },
	}
	for name, mutate := range testData {
		t.Run(name, func(t *testing.T) {
			opt := NewDefaultOptions()
			mutate(opt)
			_, err := NewOptimizer(opt)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestEvaluateStatus(t *testing.T) {
	g := newOptimizer(t)

	testData := map[string]struct {
		demandMW float64
		expected Status
	}{
		"low":                   {demandMW: 3000, expected: StatusLow},
		"optimal":               {demandMW: 5000, expected: StatusOptimal},
		"upper optimal":         {demandMW: 8000, expected: StatusOptimal},
		"exactly peak boundary": {demandMW: 8500, expected: StatusOptimal},
		"high":                  {demandMW: 9200, expected: StatusHigh},
		"critical boundary":     {demandMW: 9500, expected: StatusHigh},
		"critical":              {demandMW: 9800, expected: StatusCritical},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			status := g.Evaluate(td.demandMW)
			assert.Equal(t, td.expected, status.Status)
			assert.InDelta(t, td.demandMW/10000, status.LoadFactor, 1e-9)
			assert.InDelta(t, 10000-td.demandMW, status.AvailableCapacityMW, 1e-9)
			assert.NotEmpty(t, status.Message)
		})
	}
}

func TestRecommendPeakManagement(t *testing.T) {
	g := newOptimizer(t)
	recs := g.Recommend(flatPredictions(9200, 24))

	require.NotEmpty(t, recs)
	assert.Equal(t, TypePeakManagement, recs[0].Type)
	assert.Equal(t, PriorityHigh, recs[0].Priority)
	assert.Len(t, recs[0].AffectedHours, 24)
}

func TestRecommendRenewableOnLowLoad(t *testing.T) {
	g := newOptimizer(t)
	recs := g.Recommend(flatPredictions(4500, 24))

	var found bool
	for _, r := range recs {
		assert.NotEqual(t, TypePeakManagement, r.Type)
		if r.Type == TypeRenewableIntegration {
			found = true
			assert.Equal(t, PriorityLow, r.Priority)
		}
	}
	assert.True(t, found)
}

func TestRecommendStability(t *testing.T) {
	g := newOptimizer(t)

	// alternate far apart to push the stddev over the gate
	preds := flatPredictions(5000, 24)
	for i := range preds {
		if i%2 == 0 {
			preds[i].PredictedDemand = 8000
		}
	}
	recs := g.Recommend(preds)

	var found bool
	for _, r := range recs {
		if r.Type == TypeStability {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRecommendOrderIsStable(t *testing.T) {
	g := newOptimizer(t)
	preds := flatPredictions(9200, 24)
	assert.Equal(t, g.Recommend(preds), g.Recommend(preds))
}

func TestRecommendEmpty(t *testing.T) {
	g := newOptimizer(t)
	assert.Empty(t, g.Recommend(nil))
}

func TestShiftPotential(t *testing.T) {
	g := newOptimizer(t)

	// 12 hours over the optimal band, 12 under it
	preds := flatPredictions(8000, 24)
	for i := 12; i < 24; i++ {
		preds[i].PredictedDemand = 3000
	}
	sp := g.ShiftPotential(preds)

	assert.Equal(t, 12, sp.HighLoadHours)
	assert.Equal(t, 12, sp.LowLoadHours)
	// excess 12*(8000-7000), headroom 12*(7000-3000); excess binds
	assert.InDelta(t, 12000.0, sp.ShiftableLoadMW, 1e-9)
	assert.Greater(t, sp.PotentialSavings, 0.0)
}

func TestShiftPotentialNoneInBand(t *testing.T) {
	g := newOptimizer(t)
	sp := g.ShiftPotential(flatPredictions(5000, 24))
	assert.Zero(t, sp.ShiftableLoadMW)
	assert.Zero(t, sp.HighLoadHours)
	assert.Zero(t, sp.LowLoadHours)
}

func TestCostAnalysis(t *testing.T) {
	g := newOptimizer(t)

	preds := flatPredictions(8000, 12)
	preds = append(preds, flatPredictions(3000, 12)...)
	ca := g.CostAnalysis(preds)

	// high hours at the peak rate, low hours at the off-peak rate
	assert.InDelta(t, 12*8000*0.15+12*3000*0.08, ca.CurrentCost, 1e-6)
	assert.Less(t, ca.OptimizedCost, ca.CurrentCost)
	assert.InDelta(t, ca.CurrentCost-ca.OptimizedCost, ca.PotentialSavings, 1e-6)
	assert.Greater(t, ca.SavingsPercent, 0.0)
}
