// Package gridopt turns demand forecasts into grid operating status and
// ranked optimization recommendations. It also models supporting assets:
// battery storage, electric vehicle fleets, and distributed energy resources.
package gridopt

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gridsense/demandcast/forecast"
)

var ErrInvalidConfiguration = errors.New("invalid grid configuration")

// Status is the closed set of grid operating states.
type Status int

const (
	StatusLow Status = iota
	StatusOptimal
	StatusHigh
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusLow:
		return "low"
	case StatusOptimal:
		return "optimal"
	case StatusHigh:
		return "high"
	case StatusCritical:
		return "critical"
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Priority ranks recommendations.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return "unknown"
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// RecommendationType is the closed set of recommendation categories.
type RecommendationType int

const (
	TypePeakManagement RecommendationType = iota
	TypeLoadShifting
	TypeRenewableIntegration
	TypeStability
)

func (t RecommendationType) String() string {
	switch t {
	case TypePeakManagement:
		return "peak_management"
	case TypeLoadShifting:
		return "load_shifting"
	case TypeRenewableIntegration:
		return "renewable_integration"
	case TypeStability:
		return "stability"
	}
	return "unknown"
}

func (t RecommendationType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// Options configures the optimizer thresholds. Load factors are fractions of
// MaxCapacityMW.
type Options struct {
	MaxCapacityMW float64

	// PeakThreshold marks high operation; CriticalThreshold marks imminent
	// capacity exhaustion. Critical must sit strictly above peak.
	PeakThreshold     float64
	CriticalThreshold float64

	// OptimalLow and OptimalHigh bound the preferred operating band.
	OptimalLow  float64
	OptimalHigh float64

	// MinShiftableMW gates the load-shifting recommendation.
	MinShiftableMW float64

	// RenewableFraction gates the renewable-integration recommendation on
	// average load relative to capacity.
	RenewableFraction float64

	// StabilityStdMW gates the stability recommendation on demand stddev.
	StabilityStdMW float64

	// PeakRate and OffPeakRate are $/MWh used in the cost analysis.
	PeakRate    float64
	OffPeakRate float64
}

func NewDefaultOptions() *Options {
	return &Options{
		MaxCapacityMW:     10000,
		PeakThreshold:     0.85,
		CriticalThreshold: 0.95,
		OptimalLow:        0.4,
		OptimalHigh:       0.7,
		MinShiftableMW:    100,
		RenewableFraction: 0.6,
		StabilityStdMW:    1000,
		PeakRate:          0.15,
		OffPeakRate:       0.08,
	}
}

func (o *Options) Validate() error {
	if o.MaxCapacityMW <= 0 {
		return fmt.Errorf("non-positive max capacity, %w", ErrInvalidConfiguration)
	}
	if o.PeakThreshold <= 0 || o.PeakThreshold >= 1 {
		return fmt.Errorf("peak threshold of %f outside (0, 1), %w", o.PeakThreshold, ErrInvalidConfiguration)
	}
	if o.CriticalThreshold <= o.PeakThreshold {
		return fmt.Errorf("critical threshold must exceed peak threshold, %w", ErrInvalidConfiguration)
	}
	if o.OptimalLow < 0 || o.OptimalHigh <= o.OptimalLow || o.OptimalHigh > 1 {
		return fmt.Errorf("optimal range [%f, %f] invalid, %w", o.OptimalLow, o.OptimalHigh, ErrInvalidConfiguration)
	}
	return nil
}

// Optimizer evaluates demand against grid capacity.
type Optimizer struct {
	opt *Options
}

// NewOptimizer creates an optimizer. Nil options use the default.
func NewOptimizer(opt *Options) (*Optimizer, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{opt: opt}, nil
}

// GridStatus reports the grid's instantaneous operating state.
type GridStatus struct {
	Status              Status  `json:"status"`
	LoadFactor          float64 `json:"load_factor"`
	CurrentDemandMW     float64 `json:"current_demand"`
	AvailableCapacityMW float64 `json:"available_capacity"`
	Message             string  `json:"message"`
}

// Evaluate classifies a demand level. Boundary values fall into the less
// severe band: a load factor exactly at the peak threshold is not yet high.
func (g *Optimizer) Evaluate(demandMW float64) GridStatus {
	lf := demandMW / g.opt.MaxCapacityMW

	var status Status
	var msg string
	switch {
	case lf > g.opt.CriticalThreshold:
		status = StatusCritical
		msg = "Grid operating near capacity - implement demand response"
	case lf > g.opt.PeakThreshold:
		status = StatusHigh
		msg = "High load - monitor closely"
	case lf < g.opt.OptimalLow:
		status = StatusLow
		msg = "Low load - opportunity for maintenance or renewable integration"
	default:
		status = StatusOptimal
		msg = "Grid operating in optimal range"
	}

	return GridStatus{
		Status:              status,
		LoadFactor:          lf,
		CurrentDemandMW:     demandMW,
		AvailableCapacityMW: g.opt.MaxCapacityMW - demandMW,
		Message:             msg,
	}
}

// Recommendation is a single ranked optimization action.
type Recommendation struct {
	Type            RecommendationType `json:"type"`
	Priority        Priority           `json:"priority"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Action          string             `json:"action"`
	AffectedHours   []time.Time        `json:"affected_hours,omitempty"`
	EstimatedImpact string             `json:"estimated_impact,omitempty"`
}

// ShiftPotential quantifies load that could move from high-load hours into
// low-load hours.
type ShiftPotential struct {
	ShiftableLoadMW  float64 `json:"shiftable_load_mw"`
	HighLoadHours    int     `json:"high_load_hours"`
	LowLoadHours     int     `json:"low_load_hours"`
	PotentialSavings float64 `json:"potential_savings_percent"`
}

// ShiftPotential computes how much forecast load can move from hours above
// the optimal band into hours below it, capped by the receiving headroom.
func (g *Optimizer) ShiftPotential(preds []forecast.Prediction) ShiftPotential {
	var sp ShiftPotential
	var excess, headroom, total float64
	highCap := g.opt.OptimalHigh * g.opt.MaxCapacityMW

	for _, p := range preds {
		total += p.PredictedDemand
		lf := p.PredictedDemand / g.opt.MaxCapacityMW
		if lf > g.opt.OptimalHigh {
			sp.HighLoadHours++
			excess += p.PredictedDemand - highCap
		} else if lf < g.opt.OptimalLow {
			sp.LowLoadHours++
			headroom += highCap - p.PredictedDemand
		}
	}

	sp.ShiftableLoadMW = math.Min(excess, headroom)
	if sp.ShiftableLoadMW < 0 {
		sp.ShiftableLoadMW = 0
	}
	if total > 0 {
		sp.PotentialSavings = sp.ShiftableLoadMW / total * 100
	}
	return sp
}

// Recommend generates the ordered recommendation list for a forecast window.
// Rules are evaluated in fixed order so output is reproducible: peak
// management, load shifting, renewable integration, then stability.
func (g *Optimizer) Recommend(preds []forecast.Prediction) []Recommendation {
	var recs []Recommendation
	if len(preds) == 0 {
		return recs
	}

	var peakHours []time.Time
	var maxLF float64
	demand := make([]float64, len(preds))
	for i, p := range preds {
		demand[i] = p.PredictedDemand
		lf := p.PredictedDemand / g.opt.MaxCapacityMW
		if lf > g.opt.PeakThreshold {
			peakHours = append(peakHours, p.Timestamp)
		}
		if lf > maxLF {
			maxLF = lf
		}
	}

	if len(peakHours) > 0 {
		recs = append(recs, Recommendation{
			Type:     TypePeakManagement,
			Priority: PriorityHigh,
			Title:    "Peak Demand Alert",
			Description: fmt.Sprintf("%d hours forecasted above %d%% capacity",
				len(peakHours), int(g.opt.PeakThreshold*100)),
			Action:          "Implement demand response programs or activate reserve capacity",
			AffectedHours:   peakHours,
			EstimatedImpact: fmt.Sprintf("%d%% peak load", int(maxLF*100)),
		})
	}

	sp := g.ShiftPotential(preds)
	if sp.ShiftableLoadMW > g.opt.MinShiftableMW {
		recs = append(recs, Recommendation{
			Type:     TypeLoadShifting,
			Priority: PriorityMedium,
			Title:    "Load Shifting Opportunity",
			Description: fmt.Sprintf("%.2f MW can be shifted to off-peak hours",
				sp.ShiftableLoadMW),
			Action:          "Encourage flexible loads to shift to low-demand periods",
			EstimatedImpact: fmt.Sprintf("%.2f%% efficiency gain", sp.PotentialSavings),
		})
	}

	avg := stat.Mean(demand, nil)
	if avg < g.opt.MaxCapacityMW*g.opt.RenewableFraction {
		recs = append(recs, Recommendation{
			Type:            TypeRenewableIntegration,
			Priority:        PriorityLow,
			Title:           "Renewable Energy Opportunity",
			Description:     "Average load allows for increased renewable energy integration",
			Action:          "Maximize solar/wind generation during low-demand periods",
			EstimatedImpact: "Up to 30% renewable energy penetration possible",
		})
	}

	if len(demand) >= 2 {
		if std := stat.StdDev(demand, nil); std > g.opt.StabilityStdMW {
			recs = append(recs, Recommendation{
				Type:            TypeStability,
				Priority:        PriorityMedium,
				Title:           "Load Variance Alert",
				Description:     "High variance in predicted demand may affect grid stability",
				Action:          "Prepare spinning reserves and frequency regulation",
				EstimatedImpact: fmt.Sprintf("%.0f MW standard deviation", std),
			})
		}
	}

	return recs
}

// CostAnalysis estimates spend under peak and off-peak rates plus the savings
// available through load shifting.
type CostAnalysis struct {
	CurrentCost      float64 `json:"current_cost"`
	OptimizedCost    float64 `json:"optimized_cost"`
	PotentialSavings float64 `json:"potential_savings"`
	SavingsPercent   float64 `json:"savings_percent"`
}

// CostAnalysis prices each forecast hour at the peak rate when above the
// optimal band and the off-peak rate otherwise, then applies the shift
// potential as a savings fraction.
func (g *Optimizer) CostAnalysis(preds []forecast.Prediction) CostAnalysis {
	var ca CostAnalysis
	for _, p := range preds {
		rate := g.opt.OffPeakRate
		if p.PredictedDemand/g.opt.MaxCapacityMW > g.opt.OptimalHigh {
			rate = g.opt.PeakRate
		}
		ca.CurrentCost += p.PredictedDemand * rate
	}

	sp := g.ShiftPotential(preds)
	ca.OptimizedCost = ca.CurrentCost * (1 - sp.PotentialSavings/100)
	ca.PotentialSavings = ca.CurrentCost - ca.OptimizedCost
	if ca.CurrentCost > 0 {
		ca.SavingsPercent = ca.PotentialSavings / ca.CurrentCost * 100
	}
	return ca
}

// Capacity returns the configured maximum grid capacity in MW.
func (g *Optimizer) Capacity() float64 {
	return g.opt.MaxCapacityMW
}
