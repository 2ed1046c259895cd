package forecast

import (
	"errors"
	"fmt"

	"github.com/gridsense/demandcast/weather"
)

var ErrInvalidConfiguration = errors.New("invalid forecast configuration")

// Options configures the forecast engine. Every threshold used by the engine
// lives here so nothing is hardcoded at the call sites.
type Options struct {
	// MinLookbackHours is the minimum history needed to fit. Fitting a
	// shorter series fails with ErrInsufficientHistory.
	MinLookbackHours int

	// MaxHorizonHours caps a single prediction request.
	MaxHorizonHours int

	// TrendDecay controls how quickly the short-lag trend adjustment decays
	// back toward the seasonal baseline per horizon hour. Must be in [0, 1).
	TrendDecay float64

	// ShortLagWeight blends the 1h deviation against the 24h deviation when
	// forming the trend adjustment. Must be in [0, 1].
	ShortLagWeight float64

	// BandZscore scales the fit residual stddev into the confidence band
	// half-width at horizon hour one.
	BandZscore float64

	// BandGrowthRate widens the band per additional horizon hour. Must be
	// non-negative so band width never shrinks with distance.
	BandGrowthRate float64

	// ConfidenceCeiling and ConfidenceFloor bound the reported confidence
	// percentage. ConfidenceDecayHours is the e-folding time of the decay.
	ConfidenceCeiling    float64
	ConfidenceFloor      float64
	ConfidenceDecayHours float64

	// Weather translates temperature overrides into demand adjustments.
	Weather *weather.ImpactOptions
}

func NewDefaultOptions() *Options {
	return &Options{
		MinLookbackHours:     168,
		MaxHorizonHours:      720,
		TrendDecay:           0.9,
		ShortLagWeight:       0.7,
		BandZscore:           1.96,
		BandGrowthRate:       0.02,
		ConfidenceCeiling:    95,
		ConfidenceFloor:      60,
		ConfidenceDecayHours: 48,
		Weather:              weather.NewDefaultImpactOptions(),
	}
}

func (o *Options) Validate() error {
	if o.MinLookbackHours < 1 {
		return fmt.Errorf("min lookback of %d hours, %w", o.MinLookbackHours, ErrInvalidConfiguration)
	}
	if o.MaxHorizonHours < 1 {
		return fmt.Errorf("max horizon of %d hours, %w", o.MaxHorizonHours, ErrInvalidConfiguration)
	}
	if o.TrendDecay < 0 || o.TrendDecay >= 1 {
		return fmt.Errorf("trend decay of %f outside [0, 1), %w", o.TrendDecay, ErrInvalidConfiguration)
	}
	if o.ShortLagWeight < 0 || o.ShortLagWeight > 1 {
		return fmt.Errorf("short lag weight of %f outside [0, 1], %w", o.ShortLagWeight, ErrInvalidConfiguration)
	}
	if o.BandZscore < 0 {
		return fmt.Errorf("negative band zscore, %w", ErrInvalidConfiguration)
	}
	if o.BandGrowthRate < 0 {
		return fmt.Errorf("negative band growth rate, %w", ErrInvalidConfiguration)
	}
	if o.ConfidenceFloor < 0 || o.ConfidenceCeiling > 100 || o.ConfidenceFloor > o.ConfidenceCeiling {
		return fmt.Errorf(
			"confidence bounds [%f, %f] outside [0, 100], %w",
			o.ConfidenceFloor, o.ConfidenceCeiling, ErrInvalidConfiguration,
		)
	}
	if o.ConfidenceDecayHours <= 0 {
		return fmt.Errorf("non-positive confidence decay, %w", ErrInvalidConfiguration)
	}
	return nil
}
