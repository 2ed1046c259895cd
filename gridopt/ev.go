package gridopt

import (
	"fmt"
	"math"
	"time"
)

// ChargingRate buckets hours by tariff period.
type ChargingRate int

const (
	RateOffPeak ChargingRate = iota
	RateMidPeak
	RatePeak
)

func (r ChargingRate) String() string {
	switch r {
	case RateOffPeak:
		return "off-peak"
	case RateMidPeak:
		return "mid-peak"
	case RatePeak:
		return "peak"
	}
	return "unknown"
}

func (r ChargingRate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// ChargingProfile describes one class of charging behavior across the fleet.
type ChargingProfile struct {
	Name        string
	PowerKW     float64
	PeakHours   []int
	Probability float64

	// WeekendFactor scales participation on weekends. 1 means no change.
	WeekendFactor float64
}

// DefaultChargingProfiles models home level-2, workplace level-2, and DC fast
// charging populations.
func DefaultChargingProfiles() []ChargingProfile {
	return []ChargingProfile{
		{Name: "home_charging", PowerKW: 7.2, PeakHours: []int{18, 19, 20, 21, 22, 23}, Probability: 0.7, WeekendFactor: 1},
		{Name: "work_charging", PowerKW: 7.2, PeakHours: []int{8, 9, 10, 11, 12, 13, 14, 15}, Probability: 0.2, WeekendFactor: 0.3},
		{Name: "fast_charging", PowerKW: 50, PeakHours: []int{12, 13, 17, 18}, Probability: 0.1, WeekendFactor: 1},
	}
}

// EVOptions sizes the electric vehicle fleet model.
type EVOptions struct {
	NumEVs             int
	AvgBatteryKWh      float64
	Profiles           []ChargingProfile
	GridCapacityMW     float64
	PeakReduction      float64
	OffPeakIncrease    float64
	ShiftSavingsPerMWh float64
}

func NewDefaultEVOptions() *EVOptions {
	return &EVOptions{
		NumEVs:             5000,
		AvgBatteryKWh:      60,
		Profiles:           DefaultChargingProfiles(),
		GridCapacityMW:     10000,
		PeakReduction:      0.4,
		OffPeakIncrease:    0.3,
		ShiftSavingsPerMWh: 0.08,
	}
}

func (o *EVOptions) Validate() error {
	if o.NumEVs <= 0 || o.AvgBatteryKWh <= 0 {
		return fmt.Errorf("non-positive fleet sizing, %w", ErrInvalidConfiguration)
	}
	if len(o.Profiles) == 0 {
		return fmt.Errorf("no charging profiles, %w", ErrInvalidConfiguration)
	}
	if o.PeakReduction < 0 || o.PeakReduction >= 1 {
		return fmt.Errorf("peak reduction of %f outside [0, 1), %w", o.PeakReduction, ErrInvalidConfiguration)
	}
	return nil
}

// EVFleet forecasts charging load from the configured profiles. The forecast
// is a pure function of the start time and horizon.
type EVFleet struct {
	opt *EVOptions
}

// NewEVFleet creates a fleet model. Nil options use the default.
func NewEVFleet(opt *EVOptions) (*EVFleet, error) {
	if opt == nil {
		opt = NewDefaultEVOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return &EVFleet{opt: opt}, nil
}

// EVLoadPoint is one hour of forecast charging load.
type EVLoadPoint struct {
	Timestamp    time.Time    `json:"timestamp"`
	LoadKW       float64      `json:"ev_load_kw"`
	LoadMW       float64      `json:"ev_load_mw"`
	NumCharging  int          `json:"num_charging_estimated"`
	ChargingRate ChargingRate `json:"charging_rate"`
}

// rateFor maps an hour of day to its tariff period.
func rateFor(hour int) ChargingRate {
	switch {
	case hour >= 18 && hour <= 23:
		return RatePeak
	case hour <= 5:
		return RateOffPeak
	}
	return RateMidPeak
}

// Forecast predicts hourly fleet charging load starting the hour after from.
func (f *EVFleet) Forecast(from time.Time, hours int) []EVLoadPoint {
	points := make([]EVLoadPoint, 0, hours)
	start := from.Truncate(time.Hour)

	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i+1) * time.Hour)
		hour := ts.Hour()
		weekend := ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday

		var loadKW float64
		for _, p := range f.opt.Profiles {
			if !containsHour(p.PeakHours, hour) {
				continue
			}
			charging := float64(f.opt.NumEVs) * p.Probability
			if weekend {
				charging *= p.WeekendFactor
			}
			loadKW += math.Floor(charging) * p.PowerKW
		}

		points = append(points, EVLoadPoint{
			Timestamp:    ts,
			LoadKW:       loadKW,
			LoadMW:       loadKW / 1000,
			NumCharging:  int(loadKW / 7.2),
			ChargingRate: rateFor(hour),
		})
	}
	return points
}

func containsHour(hours []int, h int) bool {
	for _, v := range hours {
		if v == h {
			return true
		}
	}
	return false
}

// HourLoad is one hour of a charging schedule.
type HourLoad struct {
	Hour   int     `json:"hour"`
	LoadMW float64 `json:"load_mw"`
}

// ChargingOptimization compares the forecast schedule against one with peak
// charging deferred to off-peak hours.
type ChargingOptimization struct {
	CurrentSchedule   []HourLoad `json:"current_schedule"`
	OptimizedSchedule []HourLoad `json:"optimized_schedule"`
	LoadShiftedMW     float64    `json:"load_shifted"`
	CostSavings       float64    `json:"cost_savings"`
}

// Optimize shifts a portion of peak charging into off-peak hours, bounded by
// off-peak grid headroom.
func (f *EVFleet) Optimize(points []EVLoadPoint) ChargingOptimization {
	opt := ChargingOptimization{
		CurrentSchedule:   make([]HourLoad, 0, len(points)),
		OptimizedSchedule: make([]HourLoad, 0, len(points)),
	}

	var peakLoad float64
	var offPeakHours int
	for _, p := range points {
		switch p.ChargingRate {
		case RatePeak:
			peakLoad += p.LoadMW
		case RateOffPeak:
			offPeakHours++
		}
	}

	offPeakCapacity := float64(offPeakHours) * f.opt.GridCapacityMW * 0.3
	opt.LoadShiftedMW = math.Min(peakLoad*f.opt.PeakReduction, offPeakCapacity*0.5)
	opt.CostSavings = opt.LoadShiftedMW * f.opt.ShiftSavingsPerMWh

	for _, p := range points {
		opt.CurrentSchedule = append(opt.CurrentSchedule, HourLoad{
			Hour:   p.Timestamp.Hour(),
			LoadMW: p.LoadMW,
		})

		load := p.LoadMW
		switch p.ChargingRate {
		case RatePeak:
			load *= 1 - f.opt.PeakReduction
		case RateOffPeak:
			load *= 1 + f.opt.OffPeakIncrease
		}
		opt.OptimizedSchedule = append(opt.OptimizedSchedule, HourLoad{
			Hour:   p.Timestamp.Hour(),
			LoadMW: load,
		})
	}
	return opt
}

// V2GPotential sizes the vehicle-to-grid resource available from connected
// vehicles.
type V2GPotential struct {
	AvailableEVs        int     `json:"available_evs"`
	TotalCapacityKWh    float64 `json:"total_capacity_kwh"`
	TotalCapacityMWh    float64 `json:"total_capacity_mwh"`
	MaxDischargePowerMW float64 `json:"max_discharge_power_mw"`
	DurationHours       float64 `json:"duration_hours"`
}

// V2G estimates the dischargeable resource assuming half of each connected
// battery is available.
func (f *EVFleet) V2G(connectedRatio float64) V2GPotential {
	available := int(float64(f.opt.NumEVs) * connectedRatio)
	perEV := f.opt.AvgBatteryKWh * 0.5

	return V2GPotential{
		AvailableEVs:        available,
		TotalCapacityKWh:    float64(available) * perEV,
		TotalCapacityMWh:    float64(available) * perEV / 1000,
		MaxDischargePowerMW: float64(available) * 7.2 / 1000,
		DurationHours:       perEV / 7.2,
	}
}

// FleetStatistics summarizes the configured fleet.
type FleetStatistics struct {
	TotalEVs                int      `json:"total_evs"`
	AvgBatteryKWh           float64  `json:"avg_battery_capacity"`
	TotalBatteryCapacityMWh float64  `json:"total_battery_capacity_mwh"`
	ChargingProfiles        []string `json:"charging_profiles"`
	EstDailyConsumptionMWh  float64  `json:"estimated_daily_consumption_mwh"`
}

// Statistics reports fleet-wide capacity figures.
func (f *EVFleet) Statistics() FleetStatistics {
	names := make([]string, len(f.opt.Profiles))
	for i, p := range f.opt.Profiles {
		names[i] = p.Name
	}
	return FleetStatistics{
		TotalEVs:                f.opt.NumEVs,
		AvgBatteryKWh:           f.opt.AvgBatteryKWh,
		TotalBatteryCapacityMWh: float64(f.opt.NumEVs) * f.opt.AvgBatteryKWh / 1000,
		ChargingProfiles:        names,
		EstDailyConsumptionMWh:  float64(f.opt.NumEVs) * 0.3 * f.opt.AvgBatteryKWh / 1000,
	}
}

// SmartChargingImpact compares peak load before and after optimization.
type SmartChargingImpact struct {
	BasePeakLoadMW      float64 `json:"base_peak_load"`
	OptimizedPeakLoadMW float64 `json:"optimized_peak_load"`
	PeakReductionMW     float64 `json:"peak_reduction"`
	LoadShiftedMW       float64 `json:"load_shifted_mw"`
	CostSavings         float64 `json:"cost_savings"`
	GridImpactReduction float64 `json:"grid_impact_reduction"`
}

// SmartChargingImpact forecasts the fleet and measures what optimization does
// to the peak.
func (f *EVFleet) SmartChargingImpact(from time.Time, hours int) SmartChargingImpact {
	points := f.Forecast(from, hours)
	opt := f.Optimize(points)

	var impact SmartChargingImpact
	for _, p := range points {
		impact.BasePeakLoadMW = math.Max(impact.BasePeakLoadMW, p.LoadMW)
	}
	for _, h := range opt.OptimizedSchedule {
		impact.OptimizedPeakLoadMW = math.Max(impact.OptimizedPeakLoadMW, h.LoadMW)
	}
	impact.PeakReductionMW = impact.BasePeakLoadMW - impact.OptimizedPeakLoadMW
	impact.LoadShiftedMW = opt.LoadShiftedMW
	impact.CostSavings = opt.CostSavings
	if impact.BasePeakLoadMW > 0 {
		impact.GridImpactReduction = impact.PeakReductionMW / impact.BasePeakLoadMW * 100
	}
	return impact
}
