package timeseries

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoObservations    = errors.New("no observations")
	ErrNonMonotonic      = errors.New("observation timestamps are not strictly increasing")
	ErrNotHourAligned    = errors.New("observation timestamp is not aligned to the hour")
	ErrNegativeDemand    = errors.New("observation demand is negative")
	ErrSeriesLenMismatch = errors.New("timestamps have a different length than observations")
)

// Observation is a single hourly demand reading with its weather context.
// Observations are immutable once generated.
type Observation struct {
	Timestamp    time.Time `json:"timestamp"`
	DemandMW     float64   `json:"demand_mw"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	WindKPH      float64   `json:"wind_kph"`
}

// Series is an ordered, append-only sequence of hourly observations. All
// accessors return copies so a Series is safe for unsynchronized concurrent
// reads.
type Series struct {
	obs []Observation
}

// New validates and copies the input observations into a Series. Timestamps
// must be hour-aligned, strictly increasing, and demand must be non-negative.
func New(obs []Observation) (*Series, error) {
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}

	var lastT time.Time
	for i, o := range obs {
		if !o.Timestamp.Truncate(time.Hour).Equal(o.Timestamp) {
			return nil, fmt.Errorf("observation %d at %s, %w", i, o.Timestamp, ErrNotHourAligned)
		}
		if i > 0 && !o.Timestamp.After(lastT) {
			return nil, fmt.Errorf("observation %d at %s, %w", i, o.Timestamp, ErrNonMonotonic)
		}
		if o.DemandMW < 0 {
			return nil, fmt.Errorf("observation %d has demand %f, %w", i, o.DemandMW, ErrNegativeDemand)
		}
		lastT = o.Timestamp
	}

	cpy := make([]Observation, len(obs))
	copy(cpy, obs)
	return &Series{obs: cpy}, nil
}

// FromValues builds a Series from parallel timestamp and demand slices. Weather
// fields are left at their zero values.
func FromValues(t []time.Time, y []float64) (*Series, error) {
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"timestamps have length of %d, but observations have a length of %d, %w",
			len(t), len(y), ErrSeriesLenMismatch,
		)
	}
	obs := make([]Observation, len(t))
	for i := range t {
		obs[i] = Observation{Timestamp: t[i], DemandMW: y[i]}
	}
	return New(obs)
}

// Len returns the number of observations in the series.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.obs)
}

// At returns the observation at index i.
func (s *Series) At(i int) Observation {
	return s.obs[i]
}

// Last returns the most recent observation.
func (s *Series) Last() Observation {
	return s.obs[len(s.obs)-1]
}

// Observations returns a copy of all observations in timestamp order.
func (s *Series) Observations() []Observation {
	if s == nil {
		return nil
	}
	cpy := make([]Observation, len(s.obs))
	copy(cpy, s.obs)
	return cpy
}

// Timestamps returns a copy of the observation timestamps in order.
func (s *Series) Timestamps() []time.Time {
	if s == nil {
		return nil
	}
	t := make([]time.Time, len(s.obs))
	for i, o := range s.obs {
		t[i] = o.Timestamp
	}
	return t
}

// Demand returns a copy of the demand values in timestamp order.
func (s *Series) Demand() []float64 {
	if s == nil {
		return nil
	}
	y := make([]float64, len(s.obs))
	for i, o := range s.obs {
		y[i] = o.DemandMW
	}
	return y
}

// Tail returns a new Series holding the most recent n observations, or the
// whole series when n exceeds its length.
func (s *Series) Tail(n int) *Series {
	if s == nil {
		return nil
	}
	if n >= len(s.obs) {
		n = len(s.obs)
	}
	cpy := make([]Observation, n)
	copy(cpy, s.obs[len(s.obs)-n:])
	return &Series{obs: cpy}
}

// LookupDemand returns the demand at an exact timestamp. The second return is
// false when the timestamp is not present in the series.
func (s *Series) LookupDemand(t time.Time) (float64, bool) {
	if s == nil || len(s.obs) == 0 {
		return 0, false
	}
	first := s.obs[0].Timestamp
	if t.Before(first) || t.After(s.obs[len(s.obs)-1].Timestamp) {
		return 0, false
	}
	idx := int(t.Sub(first) / time.Hour)
	if idx < 0 || idx >= len(s.obs) {
		return 0, false
	}
	if !s.obs[idx].Timestamp.Equal(t) {
		// sparse series, fall back to a scan
		for _, o := range s.obs {
			if o.Timestamp.Equal(t) {
				return o.DemandMW, true
			}
		}
		return 0, false
	}
	return s.obs[idx].DemandMW, true
}
