package demandcast

import (
	"github.com/gridsense/demandcast/anomaly"
	"github.com/gridsense/demandcast/feature"
	"github.com/gridsense/demandcast/forecast"
	"github.com/gridsense/demandcast/gridopt"
)

// Options aggregates per-stage configuration for a Pipeline.
type Options struct {
	Forecast *forecast.Options
	Anomaly  *anomaly.Options
	Grid     *gridopt.Options

	// Lags and RollingWindows configure feature derivation.
	Lags           []int
	RollingWindows []int

	// AnomalyWindowHours is the trailing window scanned by DetectAnomalies.
	AnomalyWindowHours int
}

// NewDefaultOptions generates a default set of options for a pipeline.
func NewDefaultOptions() *Options {
	return &Options{
		Forecast:           forecast.NewDefaultOptions(),
		Anomaly:            anomaly.NewDefaultOptions(),
		Grid:               gridopt.NewDefaultOptions(),
		Lags:               feature.DefaultLags,
		RollingWindows:     feature.DefaultRollingWindows,
		AnomalyWindowHours: 24,
	}
}
