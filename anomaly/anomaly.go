// Package anomaly flags statistically unusual observations in a trailing
// demand window using three independent methods: leave-one-out z-score,
// Tukey fences on the interquartile range, and hour-over-hour relative jump.
// An observation matching several methods emits one alert per method so
// consumers can reason about detection provenance.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gridsense/demandcast/timeseries"
)

var ErrInvalidConfiguration = errors.New("invalid anomaly configuration")

// Type is the closed set of detection methods.
type Type int

const (
	TypeZScore Type = iota
	TypeIQR
	TypeJump
)

func (t Type) String() string {
	switch t {
	case TypeZScore:
		return "zscore"
	case TypeIQR:
		return "iqr"
	case TypeJump:
		return "sudden_change"
	}
	return "unknown"
}

func (t Type) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// Severity is the closed set of alert severities.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	}
	return "unknown"
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Alert is a single detection. Alerts are value objects created per scan and
// carry no persistent identity.
type Alert struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           Type      `json:"type"`
	Severity       Severity  `json:"severity"`
	ObservedValue  float64   `json:"observed_value"`
	ExpectedValue  float64   `json:"expected_value"`
	Recommendation string    `json:"recommendation"`
}

// Options holds the detection thresholds. All must be overridable; nothing is
// hardcoded at the detection sites.
type Options struct {
	// ZScoreCutoff flags a point whose leave-one-out z-score exceeds it.
	ZScoreCutoff float64

	// IQRMultiplier is the Tukey fence factor k in [Q1-k*IQR, Q3+k*IQR].
	IQRMultiplier float64

	// JumpFraction flags an hour-over-hour change larger than this fraction
	// of the previous value.
	JumpFraction float64

	// MinWindow is the smallest window for which the z-score and IQR methods
	// run. Smaller windows silently skip those methods: a degenerate window
	// is a documented non-error, not a crash.
	MinWindow int
}

func NewDefaultOptions() *Options {
	return &Options{
		ZScoreCutoff:  3.0,
		IQRMultiplier: 1.5,
		JumpFraction:  0.3,
		MinWindow:     3,
	}
}

func (o *Options) Validate() error {
	if o.ZScoreCutoff <= 0 {
		return fmt.Errorf("non-positive zscore cutoff, %w", ErrInvalidConfiguration)
	}
	if o.IQRMultiplier <= 0 {
		return fmt.Errorf("non-positive iqr multiplier, %w", ErrInvalidConfiguration)
	}
	if o.JumpFraction <= 0 {
		return fmt.Errorf("non-positive jump fraction, %w", ErrInvalidConfiguration)
	}
	if o.MinWindow < 3 {
		return fmt.Errorf("min window of %d below 3, %w", o.MinWindow, ErrInvalidConfiguration)
	}
	return nil
}

// Detector scans observation windows with fixed thresholds.
type Detector struct {
	opt *Options
}

// NewDetector creates a detector. Nil options use the default.
func NewDetector(opt *Options) (*Detector, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return &Detector{opt: opt}, nil
}

// Detect runs every applicable method over the window and returns alerts
// ordered most recent first. Method order breaks ties at equal timestamps so
// output is reproducible.
func (d *Detector) Detect(window *timeseries.Series) []Alert {
	var alerts []Alert
	alerts = append(alerts, d.detectZScore(window)...)
	alerts = append(alerts, d.detectIQR(window)...)
	alerts = append(alerts, d.detectJumps(window)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
	return alerts
}

// detectZScore flags points whose deviation from the leave-one-out window
// mean exceeds the cutoff in stddev units. A window with zero variance flags
// nothing unless the point itself breaks an otherwise exactly constant
// window, which is reported without dividing by the zero stddev.
func (d *Detector) detectZScore(window *timeseries.Series) []Alert {
	n := window.Len()
	if n < d.opt.MinWindow {
		return nil
	}

	y := window.Demand()
	var alerts []Alert
	rest := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		rest = rest[:0]
		rest = append(rest, y[:i]...)
		rest = append(rest, y[i+1:]...)
		mean, std := stat.MeanStdDev(rest, nil)

		var exceed float64
		if std == 0 {
			if y[i] == mean {
				continue
			}
			// constant window broken by this point: infinite z-score
			exceed = math.Inf(1)
		} else {
			z := math.Abs(y[i]-mean) / std
			if z <= d.opt.ZScoreCutoff {
				continue
			}
			exceed = z / d.opt.ZScoreCutoff
		}

		alerts = append(alerts, Alert{
			Timestamp:      window.At(i).Timestamp,
			Type:           TypeZScore,
			Severity:       severityFor(exceed),
			ObservedValue:  y[i],
			ExpectedValue:  mean,
			Recommendation: "Investigate potential equipment malfunction or unexpected load",
		})
	}
	return alerts
}

// detectIQR flags points outside the Tukey fences computed over the whole
// window.
func (d *Detector) detectIQR(window *timeseries.Series) []Alert {
	n := window.Len()
	if n < d.opt.MinWindow {
		return nil
	}

	y := window.Demand()
	sorted := make([]float64, n)
	copy(sorted, y)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	lower := q1 - d.opt.IQRMultiplier*iqr
	upper := q3 + d.opt.IQRMultiplier*iqr
	mid := (q1 + q3) / 2

	var alerts []Alert
	for i := 0; i < n; i++ {
		if y[i] >= lower && y[i] <= upper {
			continue
		}
		dist := math.Min(math.Abs(y[i]-lower), math.Abs(y[i]-upper))
		exceed := math.Inf(1)
		if iqr > 0 {
			exceed = 1 + dist/(d.opt.IQRMultiplier*iqr)
		}
		alerts = append(alerts, Alert{
			Timestamp:      window.At(i).Timestamp,
			Type:           TypeIQR,
			Severity:       severityFor(exceed),
			ObservedValue:  y[i],
			ExpectedValue:  mid,
			Recommendation: "Review interquartile outlier against recent operating range",
		})
	}
	return alerts
}

// detectJumps flags hour-over-hour changes exceeding the configured fraction
// of the previous value. A zero previous value cannot produce a ratio and is
// skipped.
func (d *Detector) detectJumps(window *timeseries.Series) []Alert {
	n := window.Len()
	var alerts []Alert
	for i := 1; i < n; i++ {
		prev := window.At(i - 1).DemandMW
		if prev == 0 {
			continue
		}
		curr := window.At(i).DemandMW
		change := math.Abs(curr-prev) / prev
		if change <= d.opt.JumpFraction {
			continue
		}
		alerts = append(alerts, Alert{
			Timestamp:      window.At(i).Timestamp,
			Type:           TypeJump,
			Severity:       severityFor(change / d.opt.JumpFraction),
			ObservedValue:  curr,
			ExpectedValue:  prev,
			Recommendation: "Check for grid events, equipment failures, or data quality issues",
		})
	}
	return alerts
}

// severityFor buckets the ratio of observed deviation to the allowed
// threshold. Every method uses the same mapping so alert severities are
// comparable across methods.
func severityFor(exceedRatio float64) Severity {
	switch {
	case exceedRatio >= 2.0:
		return SeverityHigh
	case exceedRatio >= 1.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Analysis summarizes one detection pass.
type Analysis struct {
	TotalAlerts int     `json:"total_alerts"`
	ZScoreCount int     `json:"zscore_count"`
	IQRCount    int     `json:"iqr_count"`
	JumpCount   int     `json:"jump_count"`
	AnomalyRate float64 `json:"anomaly_rate"`
}

// Analyze runs Detect and rolls the alerts into per-method counts plus the
// rate of z-score alerts per observation, as a percentage.
func (d *Detector) Analyze(window *timeseries.Series) ([]Alert, Analysis) {
	alerts := d.Detect(window)
	a := Analysis{TotalAlerts: len(alerts)}
	for _, alert := range alerts {
		switch alert.Type {
		case TypeZScore:
			a.ZScoreCount++
		case TypeIQR:
			a.IQRCount++
		case TypeJump:
			a.JumpCount++
		}
	}
	if window.Len() > 0 {
		a.AnomalyRate = float64(a.ZScoreCount) / float64(window.Len()) * 100
	}
	return alerts, a
}
