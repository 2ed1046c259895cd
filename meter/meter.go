// Package meter simulates a smart meter fleet: per-meter readings, grid-level
// aggregation, and screening for faulty meters. The fleet mix and readings
// are reproducible from the seed.
package meter

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MeterType distinguishes meter populations.
type MeterType int

const (
	TypeResidential MeterType = iota
	TypeCommercial
)

func (t MeterType) String() string {
	switch t {
	case TypeResidential:
		return "residential"
	case TypeCommercial:
		return "commercial"
	}
	return "unknown"
}

func (t MeterType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// Reading is one meter's instantaneous measurement.
type Reading struct {
	MeterID       string    `json:"meter_id"`
	Timestamp     time.Time `json:"timestamp"`
	ConsumptionKW float64   `json:"consumption_kw"`
	Voltage       float64   `json:"voltage"`
	PowerFactor   float64   `json:"power_factor"`
	MeterType     MeterType `json:"meter_type"`
}

// FleetOptions configures the simulated population.
type FleetOptions struct {
	NumMeters int

	// CommercialRatio is the fraction of meters assigned the commercial
	// consumption band.
	CommercialRatio float64

	// Anomaly screening thresholds.
	ConsumptionSigma float64
	VoltageMin       float64
	VoltageMax       float64
	NominalVoltage   float64
}

func NewDefaultFleetOptions() *FleetOptions {
	return &FleetOptions{
		NumMeters:        1000,
		CommercialRatio:  0.3,
		ConsumptionSigma: 3,
		VoltageMin:       220,
		VoltageMax:       250,
		NominalVoltage:   230,
	}
}

type meterUnit struct {
	id       string
	mtype    MeterType
	baseLoad float64
}

// Fleet holds the simulated meter population. Reads are serialized through
// the mutex because the shared random source is not safe for concurrent use.
type Fleet struct {
	mu    sync.Mutex
	opt   *FleetOptions
	rnd   *rand.Rand
	units []meterUnit
}

// NewFleet creates a fleet whose composition is fixed at construction from
// the seed. Nil options use the default.
func NewFleet(seed uint64, opt *FleetOptions) *Fleet {
	if opt == nil {
		opt = NewDefaultFleetOptions()
	}
	rnd := rand.New(rand.NewPCG(seed, seed))

	units := make([]meterUnit, opt.NumMeters)
	for i := range units {
		u := meterUnit{id: fmt.Sprintf("METER_%05d", i)}
		if rnd.Float64() < opt.CommercialRatio {
			u.mtype = TypeCommercial
			u.baseLoad = 10 + 40*rnd.Float64()
		} else {
			u.mtype = TypeResidential
			u.baseLoad = 2 + 3*rnd.Float64()
		}
		units[i] = u
	}
	return &Fleet{opt: opt, rnd: rnd, units: units}
}

// Readings samples the whole fleet at the given instant. Consumption follows
// a diurnal curve around each meter's base load.
func (f *Fleet) Readings(at time.Time) []Reading {
	f.mu.Lock()
	defer f.mu.Unlock()

	timeFactor := 1 + 0.5*math.Sin(float64(at.Hour()-6)*math.Pi/12)

	readings := make([]Reading, 0, len(f.units))
	for _, u := range f.units {
		readings = append(readings, Reading{
			MeterID:       u.id,
			Timestamp:     at,
			ConsumptionKW: u.baseLoad * timeFactor * (0.8 + 0.4*f.rnd.Float64()),
			Voltage:       230 + 10*f.rnd.Float64(),
			PowerFactor:   0.85 + 0.1*f.rnd.Float64(),
			MeterType:     u.mtype,
		})
	}
	return readings
}

// Aggregate rolls fleet readings up to grid-level consumption.
type Aggregate struct {
	TotalConsumptionMW       float64   `json:"total_consumption_mw"`
	NumMeters                int       `json:"num_meters"`
	AvgConsumptionKW         float64   `json:"avg_consumption_kw"`
	PeakConsumptionKW        float64   `json:"peak_consumption_kw"`
	Timestamp                time.Time `json:"timestamp"`
	ResidentialConsumptionMW float64   `json:"residential_consumption"`
	CommercialConsumptionMW  float64   `json:"commercial_consumption"`
}

// AggregateReadings sums a reading set into grid totals.
func AggregateReadings(readings []Reading) Aggregate {
	agg := Aggregate{NumMeters: len(readings)}
	if len(readings) == 0 {
		return agg
	}
	agg.Timestamp = readings[0].Timestamp

	var totalKW float64
	for _, r := range readings {
		totalKW += r.ConsumptionKW
		if r.ConsumptionKW > agg.PeakConsumptionKW {
			agg.PeakConsumptionKW = r.ConsumptionKW
		}
		switch r.MeterType {
		case TypeResidential:
			agg.ResidentialConsumptionMW += r.ConsumptionKW / 1000
		case TypeCommercial:
			agg.CommercialConsumptionMW += r.ConsumptionKW / 1000
		}
	}
	agg.TotalConsumptionMW = totalKW / 1000
	agg.AvgConsumptionKW = totalKW / float64(len(readings))
	return agg
}

// AnomalyType classifies a meter fault.
type AnomalyType int

const (
	AnomalyHighConsumption AnomalyType = iota
	AnomalyVoltage
)

func (t AnomalyType) String() string {
	switch t {
	case AnomalyHighConsumption:
		return "high_consumption"
	case AnomalyVoltage:
		return "voltage_anomaly"
	}
	return "unknown"
}

func (t AnomalyType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// Anomaly is a single flagged meter.
type Anomaly struct {
	MeterID  string      `json:"meter_id"`
	Type     AnomalyType `json:"type"`
	Value    float64     `json:"value"`
	Expected float64     `json:"expected"`
	Severity string      `json:"severity"`
}

// ScreenAnomalies flags meters whose consumption sits beyond the sigma
// cutoff of the fleet mean and meters reporting voltage outside the safe
// band. Consumption screening needs at least two readings for a stddev.
func (f *Fleet) ScreenAnomalies(readings []Reading) []Anomaly {
	var anomalies []Anomaly

	if len(readings) >= 2 {
		consumption := make([]float64, len(readings))
		for i, r := range readings {
			consumption[i] = r.ConsumptionKW
		}
		mean, std := stat.MeanStdDev(consumption, nil)
		cutoff := mean + f.opt.ConsumptionSigma*std
		for _, r := range readings {
			if r.ConsumptionKW > cutoff {
				anomalies = append(anomalies, Anomaly{
					MeterID:  r.MeterID,
					Type:     AnomalyHighConsumption,
					Value:    r.ConsumptionKW,
					Expected: mean,
					Severity: "high",
				})
			}
		}
	}

	for _, r := range readings {
		if r.Voltage < f.opt.VoltageMin || r.Voltage > f.opt.VoltageMax {
			anomalies = append(anomalies, Anomaly{
				MeterID:  r.MeterID,
				Type:     AnomalyVoltage,
				Value:    r.Voltage,
				Expected: f.opt.NominalVoltage,
				Severity: "medium",
			})
		}
	}
	return anomalies
}

// LoadPoint is one hour of a single meter's load profile.
type LoadPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	ConsumptionKW float64   `json:"consumption_kw"`
}

// LoadProfile generates an hourly residential-shaped profile for one meter:
// overnight trough, morning ramp, daytime plateau, evening peak.
func (f *Fleet) LoadProfile(from time.Time, hours int) []LoadPoint {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile := make([]LoadPoint, 0, hours)
	start := from.Truncate(time.Hour)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		hour := ts.Hour()

		var lo, hi float64
		switch {
		case hour < 6:
			lo, hi = 1, 2
		case hour < 9:
			lo, hi = 3, 5
		case hour < 17:
			lo, hi = 2, 3
		case hour < 22:
			lo, hi = 4, 6
		default:
			lo, hi = 2, 3
		}

		profile = append(profile, LoadPoint{
			Timestamp:     ts,
			ConsumptionKW: lo + (hi-lo)*f.rnd.Float64(),
		})
	}
	return profile
}

// NumMeters returns the configured fleet size.
func (f *Fleet) NumMeters() int {
	return len(f.units)
}
