// Package forecast produces hourly demand predictions with confidence bands
// from a historical series. The model blends a seasonal hour-of-week baseline
// with a short-lag trend adjustment that decays toward the baseline as the
// horizon grows. Given fixed options and history the output is bit-identical
// across invocations.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gridsense/demandcast/timeseries"
	"github.com/gridsense/demandcast/weather"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history for requested lookback")
	ErrUntrainedEngine     = errors.New("engine has not been fit yet")
)

// Prediction is a single forecast hour. Lower <= PredictedDemand <= Upper and
// ConfidencePct is within [0, 100] always hold.
type Prediction struct {
	Timestamp       time.Time `json:"timestamp"`
	PredictedDemand float64   `json:"predicted_demand"`
	LowerBound      float64   `json:"lower_bound"`
	UpperBound      float64   `json:"upper_bound"`
	ConfidencePct   float64   `json:"confidence_pct"`
}

// Summary aggregates a prediction horizon.
type Summary struct {
	AvgDemand     float64 `json:"avg_demand"`
	MaxDemand     float64 `json:"max_demand"`
	MinDemand     float64 `json:"min_demand"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Result is the output of a single forecast request.
type Result struct {
	Predictions []Prediction `json:"predictions"`
	Summary     Summary      `json:"summary"`
}

type patternCell struct {
	sum   float64
	count int
}

func (c patternCell) mean() (float64, bool) {
	if c.count == 0 {
		return 0, false
	}
	return c.sum / float64(c.count), true
}

// Engine fits seasonal demand patterns and generates forecasts. An Engine is
// safe for concurrent Predict calls once fit; Fit must not race with Predict.
type Engine struct {
	opt *Options

	hourOfWeek [7][24]patternCell
	hourOfDay  [24]patternCell
	overall    patternCell

	residualStd float64
	fitMAPE     float64

	trainEnd time.Time
	trendAdj float64
	trained  bool
}

// NewEngine creates an engine with the given options. Nil options use the
// default. Invalid options fail with ErrInvalidConfiguration.
func NewEngine(opt *Options) (*Engine, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opt: opt}, nil
}

// Fit learns the seasonal baselines and residual spread from the series. The
// series must cover at least MinLookbackHours.
func (e *Engine) Fit(series *timeseries.Series) error {
	if series.Len() < e.opt.MinLookbackHours {
		return fmt.Errorf(
			"series has %d hours but %d required, %w",
			series.Len(), e.opt.MinLookbackHours, ErrInsufficientHistory,
		)
	}

	e.hourOfWeek = [7][24]patternCell{}
	e.hourOfDay = [24]patternCell{}
	e.overall = patternCell{}

	for i := 0; i < series.Len(); i++ {
		o := series.At(i)
		dow := int(o.Timestamp.Weekday())
		hod := o.Timestamp.Hour()
		e.hourOfWeek[dow][hod].sum += o.DemandMW
		e.hourOfWeek[dow][hod].count++
		e.hourOfDay[hod].sum += o.DemandMW
		e.hourOfDay[hod].count++
		e.overall.sum += o.DemandMW
		e.overall.count++
	}

	// in-sample residuals against the seasonal baseline drive both the band
	// width and the confidence base
	residuals := make([]float64, 0, series.Len())
	var mapeSum float64
	var mapeN int
	for i := 0; i < series.Len(); i++ {
		o := series.At(i)
		baseline := e.seasonal(o.Timestamp)
		residuals = append(residuals, o.DemandMW-baseline)
		if o.DemandMW != 0 {
			mapeSum += math.Abs((o.DemandMW - baseline) / o.DemandMW)
			mapeN++
		}
	}
	if len(residuals) >= 2 {
		e.residualStd = stat.StdDev(residuals, nil)
	} else {
		e.residualStd = 0
	}
	if mapeN > 0 {
		e.fitMAPE = mapeSum / float64(mapeN)
	}

	last := series.Last()
	e.trainEnd = last.Timestamp
	e.trendAdj = e.trendAdjustment(series)
	e.trained = true
	return nil
}

// trendAdjustment measures how far the most recent actuals sit from their
// seasonal baselines, blending the 1h deviation against the 24h deviation.
func (e *Engine) trendAdjustment(series *timeseries.Series) float64 {
	last := series.Last()
	dev1h := last.DemandMW - e.seasonal(last.Timestamp)

	prevDay := last.Timestamp.Add(-24 * time.Hour)
	y24, ok := series.LookupDemand(prevDay)
	if !ok {
		return dev1h
	}
	dev24h := y24 - e.seasonal(prevDay)
	w := e.opt.ShortLagWeight
	return w*dev1h + (1-w)*dev24h
}

// seasonal returns the historical average demand for the hour-of-week of t,
// falling back to the hour-of-day average and then the overall mean when a
// cell has no samples.
func (e *Engine) seasonal(t time.Time) float64 {
	if m, ok := e.hourOfWeek[int(t.Weekday())][t.Hour()].mean(); ok {
		return m
	}
	if m, ok := e.hourOfDay[t.Hour()].mean(); ok {
		return m
	}
	m, _ := e.overall.mean()
	return m
}

// Predict generates horizon hourly predictions following the training data.
// overrides optionally supplies weather conditions per horizon timestamp;
// hours without an override use the no-weather path.
func (e *Engine) Predict(horizon int, overrides map[time.Time]weather.Conditions) (*Result, error) {
	if !e.trained {
		return nil, ErrUntrainedEngine
	}
	if horizon < 1 {
		return nil, fmt.Errorf("horizon of %d hours, %w", horizon, ErrInvalidConfiguration)
	}
	if horizon > e.opt.MaxHorizonHours {
		horizon = e.opt.MaxHorizonHours
	}

	preds := make([]Prediction, 0, horizon)
	confBase := e.confidenceBase()
	for h := 1; h <= horizon; h++ {
		ts := e.trainEnd.Add(time.Duration(h) * time.Hour)

		predicted := e.seasonal(ts) + e.trendAdj*math.Pow(e.opt.TrendDecay, float64(h))
		if c, ok := overrides[ts]; ok {
			predicted += weather.Impact(e.opt.Weather, c.TemperatureC, c.HumidityPct)
		}
		if predicted < 0 {
			predicted = 0
		}

		width := e.residualStd * e.opt.BandZscore * (1 + e.opt.BandGrowthRate*float64(h-1))
		lower := predicted - width
		if lower < 0 {
			lower = 0
		}

		preds = append(preds, Prediction{
			Timestamp:       ts,
			PredictedDemand: predicted,
			LowerBound:      lower,
			UpperBound:      predicted + width,
			ConfidencePct:   e.confidence(confBase, h),
		})
	}

	return &Result{
		Predictions: preds,
		Summary:     summarize(preds),
	}, nil
}

// confidenceBase derives the starting confidence from the in-sample fit
// quality rather than asserting a fixed accuracy figure.
func (e *Engine) confidenceBase() float64 {
	mape := math.Min(e.fitMAPE, 0.5)
	return e.opt.ConfidenceCeiling * (1 - mape)
}

// confidence decays with horizon distance and is clamped to the configured
// floor and ceiling, so it is non-increasing as distance grows.
func (e *Engine) confidence(base float64, h int) float64 {
	c := base * math.Exp(-float64(h)/e.opt.ConfidenceDecayHours)
	if c < e.opt.ConfidenceFloor {
		return e.opt.ConfidenceFloor
	}
	if c > e.opt.ConfidenceCeiling {
		return e.opt.ConfidenceCeiling
	}
	return c
}

// Trained reports whether Fit has completed.
func (e *Engine) Trained() bool {
	return e != nil && e.trained
}

// TrainEnd returns the timestamp of the last training observation.
func (e *Engine) TrainEnd() time.Time {
	return e.trainEnd
}

// FitMAPE returns the in-sample mean absolute percentage error of the
// seasonal baseline.
func (e *Engine) FitMAPE() float64 {
	return e.fitMAPE
}

func summarize(preds []Prediction) Summary {
	if len(preds) == 0 {
		return Summary{}
	}
	demand := make([]float64, len(preds))
	conf := make([]float64, len(preds))
	for i, p := range preds {
		demand[i] = p.PredictedDemand
		conf[i] = p.ConfidencePct
	}
	return Summary{
		AvgDemand:     floats.Sum(demand) / float64(len(demand)),
		MaxDemand:     floats.Max(demand),
		MinDemand:     floats.Min(demand),
		AvgConfidence: floats.Sum(conf) / float64(len(conf)),
	}
}
