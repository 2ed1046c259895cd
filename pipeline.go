// Package demandcast wires demand history through feature derivation,
// forecasting, anomaly detection, and grid optimization. A Pipeline is an
// explicit context object: every collaborator is injected at construction
// and nothing is read from package-level state.
package demandcast

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gridsense/demandcast/anomaly"
	"github.com/gridsense/demandcast/feature"
	"github.com/gridsense/demandcast/forecast"
	"github.com/gridsense/demandcast/gridopt"
	"github.com/gridsense/demandcast/timeseries"
	"github.com/gridsense/demandcast/weather"
)

var ErrNoHistory = errors.New("pipeline has no history loaded")

// Pipeline holds the trained engine, configuration, and injected providers.
// Safe for concurrent reads once Fit has returned; Fit must not race with
// the query methods.
type Pipeline struct {
	opt *Options

	history  *timeseries.Series
	engine   *forecast.Engine
	detector *anomaly.Detector
	grid     *gridopt.Optimizer
	weather  weather.Provider
}

// NewPipeline assembles a pipeline from options and an optional weather
// provider. Nil options use the default; a nil provider disables weather
// adjustment.
func NewPipeline(opt *Options, provider weather.Provider) (*Pipeline, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}

	engine, err := forecast.NewEngine(opt.Forecast)
	if err != nil {
		return nil, err
	}
	detector, err := anomaly.NewDetector(opt.Anomaly)
	if err != nil {
		return nil, err
	}
	grid, err := gridopt.NewOptimizer(opt.Grid)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		opt:      opt,
		engine:   engine,
		detector: detector,
		grid:     grid,
		weather:  provider,
	}, nil
}

// Fit loads history into the pipeline and trains the forecast engine.
func (p *Pipeline) Fit(series *timeseries.Series) error {
	if err := p.engine.Fit(series); err != nil {
		return err
	}
	p.history = series
	return nil
}

// History returns the loaded series, or nil before Fit.
func (p *Pipeline) History() *timeseries.Series {
	return p.history
}

// DeriveFeatures computes calendar, lag, and rolling features for every
// loaded observation.
func (p *Pipeline) DeriveFeatures() ([]feature.Vector, error) {
	if p.history == nil {
		return nil, ErrNoHistory
	}
	d := feature.NewDeriver(p.history, p.opt.Lags, p.opt.RollingWindows)
	return d.Derive(p.history.Timestamps()), nil
}

// Forecast predicts the next horizon hours. When a weather provider is
// configured its forecast conditions adjust the prediction; provider
// failures fall back to the unadjusted path.
func (p *Pipeline) Forecast(horizon int) (*forecast.Result, error) {
	var overrides map[time.Time]weather.Conditions
	if p.weather != nil {
		overrides = make(map[time.Time]weather.Conditions, horizon)
		end := p.engine.TrainEnd()
		for h := 1; h <= horizon; h++ {
			ts := end.Add(time.Duration(h) * time.Hour)
			c, err := p.weather.Conditions(ts)
			if err != nil {
				continue
			}
			overrides[ts] = c
		}
	}
	return p.engine.Predict(horizon, overrides)
}

// DetectAnomalies scans the trailing anomaly window of the loaded history.
func (p *Pipeline) DetectAnomalies() ([]anomaly.Alert, anomaly.Analysis, error) {
	if p.history == nil {
		return nil, anomaly.Analysis{}, ErrNoHistory
	}
	window := p.history.Tail(p.opt.AnomalyWindowHours)
	alerts, analysis := p.detector.Analyze(window)
	return alerts, analysis, nil
}

// Optimization bundles the grid state and forecast-driven recommendations.
type Optimization struct {
	Grid            gridopt.GridStatus       `json:"grid_status"`
	Recommendations []gridopt.Recommendation `json:"recommendations"`
	ShiftPotential  gridopt.ShiftPotential   `json:"load_shift_potential"`
	Cost            gridopt.CostAnalysis     `json:"cost_analysis"`
}

// Optimize forecasts the horizon and evaluates the grid against it.
func (p *Pipeline) Optimize(horizon int) (*Optimization, error) {
	if p.history == nil {
		return nil, ErrNoHistory
	}
	res, err := p.Forecast(horizon)
	if err != nil {
		return nil, err
	}
	return &Optimization{
		Grid:            p.grid.Evaluate(p.history.Last().DemandMW),
		Recommendations: p.grid.Recommend(res.Predictions),
		ShiftPotential:  p.grid.ShiftPotential(res.Predictions),
		Cost:            p.grid.CostAnalysis(res.Predictions),
	}, nil
}

// Stats summarizes the loaded history and current grid state.
type Stats struct {
	Observations    int                `json:"observations"`
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
	AvgDemandMW     float64            `json:"avg_demand_mw"`
	StdDemandMW     float64            `json:"std_demand_mw"`
	MinDemandMW     float64            `json:"min_demand_mw"`
	MaxDemandMW     float64            `json:"max_demand_mw"`
	CurrentDemandMW float64            `json:"current_demand_mw"`
	FitMAPE         float64            `json:"fit_mape"`
	Grid            gridopt.GridStatus `json:"grid_status"`
}

// Stats computes summary statistics over the loaded history.
func (p *Pipeline) Stats() (*Stats, error) {
	if p.history == nil {
		return nil, ErrNoHistory
	}

	y := p.history.Demand()
	s := &Stats{
		Observations:    p.history.Len(),
		Start:           p.history.At(0).Timestamp,
		End:             p.history.Last().Timestamp,
		AvgDemandMW:     stat.Mean(y, nil),
		CurrentDemandMW: p.history.Last().DemandMW,
		FitMAPE:         p.engine.FitMAPE(),
		Grid:            p.grid.Evaluate(p.history.Last().DemandMW),
	}
	if len(y) >= 2 {
		s.StdDemandMW = stat.StdDev(y, nil)
	}
	s.MinDemandMW = floats.Min(y)
	s.MaxDemandMW = floats.Max(y)
	return s, nil
}

// Grid exposes the pipeline's grid optimizer for direct evaluation.
func (p *Pipeline) Grid() *gridopt.Optimizer {
	return p.grid
}

// Engine exposes the trained forecast engine.
func (p *Pipeline) Engine() *forecast.Engine {
	return p.engine
}
