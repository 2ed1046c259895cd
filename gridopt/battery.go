package gridopt

import (
	"fmt"

	"github.com/gridsense/demandcast/forecast"
)

// BatteryAction is what the battery does in a given hour.
type BatteryAction int

const (
	ActionIdle BatteryAction = iota
	ActionCharge
	ActionDischarge
)

func (a BatteryAction) String() string {
	switch a {
	case ActionIdle:
		return "idle"
	case ActionCharge:
		return "charge"
	case ActionDischarge:
		return "discharge"
	}
	return "unknown"
}

func (a BatteryAction) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// BatteryOptions sizes the storage system.
type BatteryOptions struct {
	CapacityMWh   float64
	PowerRatingMW float64

	// Efficiency is round-trip, applied on charge and discharge legs.
	Efficiency float64

	InitialSoC float64
	MinSoC     float64
	MaxSoC     float64
}

func NewDefaultBatteryOptions() *BatteryOptions {
	return &BatteryOptions{
		CapacityMWh:   100,
		PowerRatingMW: 50,
		Efficiency:    0.9,
		InitialSoC:    0.5,
		MinSoC:        0.1,
		MaxSoC:        0.9,
	}
}

func (o *BatteryOptions) Validate() error {
	if o.CapacityMWh <= 0 || o.PowerRatingMW <= 0 {
		return fmt.Errorf("non-positive battery sizing, %w", ErrInvalidConfiguration)
	}
	if o.Efficiency <= 0 || o.Efficiency > 1 {
		return fmt.Errorf("efficiency of %f outside (0, 1], %w", o.Efficiency, ErrInvalidConfiguration)
	}
	if o.MinSoC < 0 || o.MaxSoC > 1 || o.MinSoC >= o.MaxSoC {
		return fmt.Errorf("soc band [%f, %f] invalid, %w", o.MinSoC, o.MaxSoC, ErrInvalidConfiguration)
	}
	if o.InitialSoC < o.MinSoC || o.InitialSoC > o.MaxSoC {
		return fmt.Errorf("initial soc of %f outside band, %w", o.InitialSoC, ErrInvalidConfiguration)
	}
	return nil
}

// Battery schedules charge and discharge against a demand forecast. The
// schedule is a pure function of the forecast and options.
type Battery struct {
	opt *BatteryOptions
}

// NewBattery creates a battery model. Nil options use the default.
func NewBattery(opt *BatteryOptions) (*Battery, error) {
	if opt == nil {
		opt = NewDefaultBatteryOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return &Battery{opt: opt}, nil
}

// ScheduleEntry is one hour of battery operation. SoC values are percentages.
type ScheduleEntry struct {
	Hour         int           `json:"hour"`
	Action       BatteryAction `json:"action"`
	PowerMW      float64       `json:"power_mw"`
	EnergyMWh    float64       `json:"energy_mwh"`
	SoCBefore    float64       `json:"soc_before"`
	SoCAfter     float64       `json:"soc_after"`
	GridImpactMW float64       `json:"grid_impact"`
}

// decideAction charges overnight and during the midday solar window when
// headroom exists, and discharges through the evening peak.
func (b *Battery) decideAction(hour int, soc float64) BatteryAction {
	switch {
	case hour <= 5 && soc < b.opt.MaxSoC:
		return ActionCharge
	case hour >= 17 && hour <= 21 && soc > b.opt.MinSoC:
		return ActionDischarge
	case hour >= 11 && hour <= 14 && soc < 0.6:
		return ActionCharge
	}
	return ActionIdle
}

// Schedule builds the hourly operation plan across the forecast horizon,
// tracking state of charge within the configured band.
func (b *Battery) Schedule(preds []forecast.Prediction) []ScheduleEntry {
	schedule := make([]ScheduleEntry, 0, len(preds))
	soc := b.opt.InitialSoC

	for _, p := range preds {
		hour := p.Timestamp.Hour()
		action := b.decideAction(hour, soc)

		var power, energy, newSoC float64
		switch action {
		case ActionCharge:
			power = min(b.opt.PowerRatingMW, (b.opt.MaxSoC-soc)*b.opt.CapacityMWh)
			energy = power * b.opt.Efficiency
			newSoC = min(b.opt.MaxSoC, soc+energy/b.opt.CapacityMWh)
		case ActionDischarge:
			power = min(b.opt.PowerRatingMW, (soc-b.opt.MinSoC)*b.opt.CapacityMWh)
			energy = power / b.opt.Efficiency
			newSoC = max(b.opt.MinSoC, soc-energy/b.opt.CapacityMWh)
		default:
			newSoC = soc
		}

		impact := power
		if action == ActionDischarge {
			impact = -power
		}
		schedule = append(schedule, ScheduleEntry{
			Hour:         hour,
			Action:       action,
			PowerMW:      power,
			EnergyMWh:    energy,
			SoCBefore:    soc * 100,
			SoCAfter:     newSoC * 100,
			GridImpactMW: impact,
		})
		soc = newSoC
	}
	return schedule
}

// PeakShavingBenefit quantifies what the discharge hours take off the peak.
type PeakShavingBenefit struct {
	PeakReductionMW       float64 `json:"peak_reduction_mw"`
	EnergyDischargedMWh   float64 `json:"energy_discharged_mwh"`
	EnergyChargedMWh      float64 `json:"energy_charged_mwh"`
	RoundTripLossMWh      float64 `json:"round_trip_loss_mwh"`
	CostSavings           float64 `json:"cost_savings"`
	DemandChargeReduction float64 `json:"demand_charge_reduction"`
}

// value per MW of peak reduction and demand charge offset, in $/MW
const (
	peakShavingValuePerMW  = 50.0
	demandChargeValuePerMW = 10.0
)

// PeakShaving evaluates the peak shaving value of the schedule.
func (b *Battery) PeakShaving(preds []forecast.Prediction) PeakShavingBenefit {
	var benefit PeakShavingBenefit
	for _, e := range b.Schedule(preds) {
		switch e.Action {
		case ActionDischarge:
			benefit.PeakReductionMW += e.PowerMW
			benefit.EnergyDischargedMWh += e.EnergyMWh
		case ActionCharge:
			benefit.EnergyChargedMWh += e.EnergyMWh
		}
	}
	benefit.RoundTripLossMWh = benefit.EnergyChargedMWh - benefit.EnergyDischargedMWh
	benefit.CostSavings = benefit.PeakReductionMW * peakShavingValuePerMW
	benefit.DemandChargeReduction = benefit.PeakReductionMW * demandChargeValuePerMW
	return benefit
}

// HourlyPrice is a $/MWh price for one hour of the day.
type HourlyPrice struct {
	Hour  int     `json:"hour"`
	Price float64 `json:"price"`
}

// DefaultPriceProfile is a flat tariff: cheap overnight, expensive through
// the evening peak, mid-peak elsewhere.
func DefaultPriceProfile() []HourlyPrice {
	prices := make([]HourlyPrice, 24)
	for h := 0; h < 24; h++ {
		price := 50.0
		switch {
		case h <= 5:
			price = 30
		case h >= 17 && h <= 21:
			price = 80
		}
		prices[h] = HourlyPrice{Hour: h, Price: price}
	}
	return prices
}

// ArbitragePotential estimates revenue from buying cheap and selling dear.
type ArbitragePotential struct {
	BuyEnergyMWh   float64 `json:"buy_energy_mwh"`
	SellEnergyMWh  float64 `json:"sell_energy_mwh"`
	BuyCost        float64 `json:"buy_cost"`
	SellRevenue    float64 `json:"sell_revenue"`
	NetRevenue     float64 `json:"net_revenue"`
	EfficiencyLoss float64 `json:"efficiency_loss"`
}

// Arbitrage sizes the trade between low-price and high-price hours, bounded
// by how many hours the battery can sustain its power rating. Nil prices use
// the default profile.
func (b *Battery) Arbitrage(prices []HourlyPrice) ArbitragePotential {
	if len(prices) == 0 {
		prices = DefaultPriceProfile()
	}

	var sum float64
	for _, p := range prices {
		sum += p.Price
	}
	avg := sum / float64(len(prices))

	var lowHours, highHours int
	var lowSum, highSum float64
	for _, p := range prices {
		if p.Price < avg*0.8 {
			lowHours++
			lowSum += p.Price
		} else if p.Price > avg*1.2 {
			highHours++
			highSum += p.Price
		}
	}

	var arb ArbitragePotential
	if lowHours == 0 || highHours == 0 {
		return arb
	}

	sustainHours := b.opt.CapacityMWh / b.opt.PowerRatingMW
	traded := min(min(float64(lowHours), sustainHours), min(float64(highHours), sustainHours)) * b.opt.PowerRatingMW

	arb.BuyEnergyMWh = traded
	arb.SellEnergyMWh = traded * b.opt.Efficiency
	arb.BuyCost = traded * lowSum / float64(lowHours)
	arb.SellRevenue = arb.SellEnergyMWh * highSum / float64(highHours)
	arb.NetRevenue = arb.SellRevenue - arb.BuyCost
	arb.EfficiencyLoss = traded * (1 - b.opt.Efficiency)
	return arb
}

// RegulationValue estimates annual revenue from frequency regulation service.
type RegulationValue struct {
	AvailableCapacityMW    float64 `json:"available_capacity_mw"`
	ResponseTimeSeconds    float64 `json:"response_time_seconds"`
	CapacityPayment        float64 `json:"capacity_payment"`
	PerformancePayment     float64 `json:"performance_payment"`
	AnnualRevenuePotential float64 `json:"annual_revenue_potential"`
}

// daily frequency regulation payments, in $/MW/day
const (
	regulationCapacityRate    = 5.0
	regulationPerformanceRate = 3.0
)

// FrequencyRegulation values the battery's fast-response capacity over a
// year of regulation service.
func (b *Battery) FrequencyRegulation() RegulationValue {
	rv := RegulationValue{
		AvailableCapacityMW: b.opt.PowerRatingMW,
		ResponseTimeSeconds: 1,
	}
	rv.CapacityPayment = b.opt.PowerRatingMW * 365 * regulationCapacityRate
	rv.PerformancePayment = b.opt.PowerRatingMW * 365 * regulationPerformanceRate
	rv.AnnualRevenuePotential = rv.CapacityPayment + rv.PerformancePayment
	return rv
}

// BatteryStatus is a point-in-time description of the system.
type BatteryStatus struct {
	CapacityMWh        float64 `json:"capacity_mwh"`
	PowerRatingMW      float64 `json:"power_rating_mw"`
	CurrentSoCPercent  float64 `json:"current_soc_percent"`
	AvailableEnergyMWh float64 `json:"available_energy_mwh"`
	ChargeHeadroomMWh  float64 `json:"available_charge_capacity_mwh"`
	EfficiencyPercent  float64 `json:"efficiency_percent"`
	UsableCapacityMWh  float64 `json:"usable_capacity_mwh"`
}

// Status reports the battery at its initial state of charge.
func (b *Battery) Status() BatteryStatus {
	return BatteryStatus{
		CapacityMWh:        b.opt.CapacityMWh,
		PowerRatingMW:      b.opt.PowerRatingMW,
		CurrentSoCPercent:  b.opt.InitialSoC * 100,
		AvailableEnergyMWh: b.opt.InitialSoC * b.opt.CapacityMWh,
		ChargeHeadroomMWh:  (b.opt.MaxSoC - b.opt.InitialSoC) * b.opt.CapacityMWh,
		EfficiencyPercent:  b.opt.Efficiency * 100,
		UsableCapacityMWh:  (b.opt.MaxSoC - b.opt.MinSoC) * b.opt.CapacityMWh,
	}
}

// SimulationSummary aggregates a schedule into operating totals.
type SimulationSummary struct {
	TotalEnergyChargedMWh    float64 `json:"total_energy_charged"`
	TotalEnergyDischargedMWh float64 `json:"total_energy_discharged"`
	TotalCycles              float64 `json:"total_cycles"`
	PeakShavingEvents        int     `json:"peak_shaving_events"`
	AverageSoCPercent        float64 `json:"average_soc"`
	EfficiencyAchievedPct    float64 `json:"efficiency_achieved"`
}

// Simulate runs the schedule over the forecast and reports operating totals.
func (b *Battery) Simulate(preds []forecast.Prediction) SimulationSummary {
	schedule := b.Schedule(preds)

	var s SimulationSummary
	var socSum float64
	for _, e := range schedule {
		socSum += e.SoCAfter
		switch e.Action {
		case ActionCharge:
			s.TotalEnergyChargedMWh += e.EnergyMWh
		case ActionDischarge:
			s.TotalEnergyDischargedMWh += e.EnergyMWh
			s.PeakShavingEvents++
		}
	}
	s.TotalCycles = s.TotalEnergyDischargedMWh / b.opt.CapacityMWh
	if len(schedule) > 0 {
		s.AverageSoCPercent = socSum / float64(len(schedule))
	}
	if s.TotalEnergyChargedMWh > 0 {
		s.EfficiencyAchievedPct = s.TotalEnergyDischargedMWh / s.TotalEnergyChargedMWh * 100
	}
	return s
}
