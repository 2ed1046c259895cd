// Package weather supplies current and forecast weather conditions to the
// demand pipeline. Production and simulated providers satisfy the same
// interface; the pipeline only ever sees plain numeric conditions or
// ErrUnavailable and never blocks on the network itself.
package weather

import (
	"errors"
	"time"
)

// ErrUnavailable signals that no conditions could be produced for the
// requested time. Callers fall back to the no-weather forecast path.
var ErrUnavailable = errors.New("weather conditions unavailable")

// Conditions holds point-in-time weather for a single timestamp.
type Conditions struct {
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	WindKPH      float64   `json:"wind_kph"`
	Summary      string    `json:"summary"`
}

// Provider returns conditions for a timestamp or ErrUnavailable.
type Provider interface {
	Conditions(t time.Time) (Conditions, error)
}

// ImpactOptions configures how temperature translates to additional demand.
// The comfort band is the range where weather adds no load.
type ImpactOptions struct {
	HeatingThresholdC float64 // heating load below this temperature
	CoolingThresholdC float64 // cooling load above this temperature
	HeatingMWPerDeg   float64
	CoolingMWPerDeg   float64
	HighHumidityPct   float64 // above this, cooling impact is scaled up
	LowHumidityPct    float64 // below this, heating impact is scaled up
}

func NewDefaultImpactOptions() *ImpactOptions {
	return &ImpactOptions{
		HeatingThresholdC: 18,
		CoolingThresholdC: 24,
		HeatingMWPerDeg:   80,
		CoolingMWPerDeg:   100,
		HighHumidityPct:   70,
		LowHumidityPct:    30,
	}
}

// Impact returns the additional demand in MW attributable to temperature
// deviation outside the comfort band. A humidityPct below zero means humidity
// is unknown and no humidity scaling is applied.
func Impact(opt *ImpactOptions, tempC, humidityPct float64) float64 {
	if opt == nil {
		opt = NewDefaultImpactOptions()
	}

	var impact float64
	switch {
	case tempC < opt.HeatingThresholdC:
		impact = (opt.HeatingThresholdC - tempC) * opt.HeatingMWPerDeg
	case tempC > opt.CoolingThresholdC:
		impact = (tempC - opt.CoolingThresholdC) * opt.CoolingMWPerDeg
	default:
		return 0
	}

	if humidityPct >= 0 {
		if humidityPct > opt.HighHumidityPct {
			impact *= 1.1
		} else if humidityPct < opt.LowHumidityPct {
			impact *= 1.05
		}
	}
	return impact
}
