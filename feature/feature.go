// Package feature derives per-timestamp model inputs from a demand series:
// calendar fields, lagged demand, and trailing rolling statistics. Lag and
// rolling fields that reach before the start of the series are left nil and
// are never backfilled with zeros, which would silently corrupt any average
// computed over them.
package feature

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
	"gonum.org/v1/gonum/stat"

	"github.com/gridsense/demandcast/timeseries"
)

// Season is a closed set of meteorological seasons.
type Season int

const (
	SeasonWinter Season = iota
	SeasonSpring
	SeasonSummer
	SeasonAutumn
)

func (s Season) String() string {
	switch s {
	case SeasonWinter:
		return "winter"
	case SeasonSpring:
		return "spring"
	case SeasonSummer:
		return "summer"
	case SeasonAutumn:
		return "autumn"
	}
	return "unknown"
}

// DefaultLags are the standard lag offsets in hours: previous hour, previous
// day, previous week.
var DefaultLags = []int{1, 24, 168}

// DefaultRollingWindows are the standard trailing windows in hours: one day
// and one week.
var DefaultRollingWindows = []int{24, 168}

// Vector holds the derived features for a single timestamp. Lag and rolling
// fields are pointers so a missing value marshals as null rather than zero.
type Vector struct {
	Timestamp time.Time `json:"timestamp"`

	Hour      int          `json:"hour"`
	Weekday   time.Weekday `json:"weekday"`
	Month     time.Month   `json:"month"`
	Season    Season       `json:"season"`
	IsWeekend bool         `json:"is_weekend"`
	IsHoliday bool         `json:"is_holiday"`

	Lags map[int]*float64 `json:"lags"`

	RollingMean map[int]*float64 `json:"rolling_mean"`
	RollingStd  map[int]*float64 `json:"rolling_std"`
}

// Deriver computes feature vectors against a fixed series. Derivation is
// deterministic: the same series and timestamps always yield the same
// vectors.
type Deriver struct {
	series   *timeseries.Series
	lags     []int
	windows  []int
	calendar *cal.Calendar
}

// NewDeriver creates a Deriver over series. Nil lags or windows use the
// defaults.
func NewDeriver(series *timeseries.Series, lags, windows []int) *Deriver {
	if lags == nil {
		lags = DefaultLags
	}
	if windows == nil {
		windows = DefaultRollingWindows
	}
	c := &cal.Calendar{Name: "demand"}
	c.AddHoliday(us.Holidays...)
	return &Deriver{
		series:   series,
		lags:     lags,
		windows:  windows,
		calendar: c,
	}
}

// Derive returns one Vector per target timestamp, in input order.
func (d *Deriver) Derive(targets []time.Time) []Vector {
	out := make([]Vector, 0, len(targets))
	for _, t := range targets {
		out = append(out, d.deriveOne(t))
	}
	return out
}

func (d *Deriver) deriveOne(t time.Time) Vector {
	v := Vector{
		Timestamp:   t,
		Hour:        t.Hour(),
		Weekday:     t.Weekday(),
		Month:       t.Month(),
		Season:      SeasonOf(t.Month()),
		IsWeekend:   t.Weekday() == time.Saturday || t.Weekday() == time.Sunday,
		Lags:        make(map[int]*float64, len(d.lags)),
		RollingMean: make(map[int]*float64, len(d.windows)),
		RollingStd:  make(map[int]*float64, len(d.windows)),
	}
	actual, observed, _ := d.calendar.IsHoliday(t)
	v.IsHoliday = actual || observed

	for _, lag := range d.lags {
		if y, ok := d.series.LookupDemand(t.Add(-time.Duration(lag) * time.Hour)); ok {
			v.Lags[lag] = ptr(y)
		} else {
			v.Lags[lag] = nil
		}
	}

	for _, window := range d.windows {
		vals := d.trailing(t, window)
		if len(vals) == 0 {
			v.RollingMean[window] = nil
			v.RollingStd[window] = nil
			continue
		}
		v.RollingMean[window] = ptr(stat.Mean(vals, nil))
		if len(vals) < 2 {
			v.RollingStd[window] = nil
			continue
		}
		v.RollingStd[window] = ptr(stat.StdDev(vals, nil))
	}
	return v
}

// trailing collects the demand values observed in (t-window, t]. A window
// reaching before the series start truncates to what exists rather than
// padding with defaults.
func (d *Deriver) trailing(t time.Time, window int) []float64 {
	vals := make([]float64, 0, window)
	for k := window - 1; k >= 0; k-- {
		if y, ok := d.series.LookupDemand(t.Add(-time.Duration(k) * time.Hour)); ok {
			vals = append(vals, y)
		}
	}
	return vals
}

// SeasonOf maps a month to its meteorological season.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

func ptr(v float64) *float64 { return &v }
