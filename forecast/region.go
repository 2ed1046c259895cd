package forecast

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gridsense/demandcast/timeseries"
)

var ErrUnknownRegion = errors.New("region not initialized")

// savings per MW moved between regions, in $/MW
const transferSavingsPerMW = 0.05

// RegionProfile describes how a region's demand deviates from the shared
// baseline model.
type RegionProfile struct {
	Name            string  `json:"name"`
	BaseLoadMW      float64 `json:"base_load_mw"`
	PeakMultiplier  float64 `json:"peak_multiplier"`
	IndustrialRatio float64 `json:"industrial_ratio"`
	Climate         string  `json:"climate"`
}

// DefaultRegionProfiles mirrors a five-zone interconnect.
func DefaultRegionProfiles() []RegionProfile {
	return []RegionProfile{
		{Name: "North", BaseLoadMW: 6000, PeakMultiplier: 1.3, IndustrialRatio: 0.4, Climate: "cold"},
		{Name: "South", BaseLoadMW: 5500, PeakMultiplier: 1.5, IndustrialRatio: 0.3, Climate: "hot"},
		{Name: "East", BaseLoadMW: 7000, PeakMultiplier: 1.4, IndustrialRatio: 0.5, Climate: "moderate"},
		{Name: "West", BaseLoadMW: 6500, PeakMultiplier: 1.2, IndustrialRatio: 0.35, Climate: "moderate"},
		{Name: "Central", BaseLoadMW: 5000, PeakMultiplier: 1.25, IndustrialRatio: 0.45, Climate: "moderate"},
	}
}

// MultiRegion runs an independent engine per region and scales its output by
// the region's peak multiplier.
type MultiRegion struct {
	opt      *Options
	profiles map[string]RegionProfile
	engines  map[string]*Engine
	order    []string
}

// NewMultiRegion creates a multi-region forecaster. Nil profiles uses the
// default five regions.
func NewMultiRegion(profiles []RegionProfile, opt *Options) *MultiRegion {
	if profiles == nil {
		profiles = DefaultRegionProfiles()
	}
	if opt == nil {
		opt = NewDefaultOptions()
	}
	m := &MultiRegion{
		opt:      opt,
		profiles: make(map[string]RegionProfile, len(profiles)),
		engines:  make(map[string]*Engine, len(profiles)),
		order:    make([]string, 0, len(profiles)),
	}
	for _, p := range profiles {
		m.profiles[p.Name] = p
		m.order = append(m.order, p.Name)
	}
	return m
}

// Regions returns region names in profile-definition order.
func (m *MultiRegion) Regions() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Fit trains the named region's engine on its historical series.
func (m *MultiRegion) Fit(region string, series *timeseries.Series) error {
	if _, ok := m.profiles[region]; !ok {
		return fmt.Errorf("%q, %w", region, ErrUnknownRegion)
	}
	e, err := NewEngine(m.opt)
	if err != nil {
		return err
	}
	if err := e.Fit(series); err != nil {
		return fmt.Errorf("unable to fit region %q, %w", region, err)
	}
	m.engines[region] = e
	return nil
}

// Predict forecasts the named region, applying its peak multiplier.
func (m *MultiRegion) Predict(region string, horizon int) (*Result, error) {
	e, ok := m.engines[region]
	if !ok {
		return nil, fmt.Errorf("%q, %w", region, ErrUnknownRegion)
	}
	res, err := e.Predict(horizon, nil)
	if err != nil {
		return nil, err
	}

	mult := m.profiles[region].PeakMultiplier
	for i := range res.Predictions {
		res.Predictions[i].PredictedDemand *= mult
		res.Predictions[i].LowerBound *= mult
		res.Predictions[i].UpperBound *= mult
	}
	res.Summary = summarize(res.Predictions)
	return res, nil
}

// PredictAll forecasts every fitted region.
func (m *MultiRegion) PredictAll(horizon int) (map[string]*Result, error) {
	out := make(map[string]*Result, len(m.engines))
	for _, region := range m.order {
		if _, ok := m.engines[region]; !ok {
			continue
		}
		res, err := m.Predict(region, horizon)
		if err != nil {
			return nil, err
		}
		out[region] = res
	}
	return out, nil
}

// RegionalSummary aggregates per-region results into a system view.
type RegionalSummary struct {
	TotalAvgDemand float64            `json:"total_avg_demand"`
	SystemPeak     float64            `json:"system_peak"`
	Regions        map[string]Summary `json:"regions"`
}

// Summarize rolls per-region results into a system-wide summary.
func (m *MultiRegion) Summarize(results map[string]*Result) RegionalSummary {
	s := RegionalSummary{Regions: make(map[string]Summary, len(results))}
	for region, res := range results {
		s.Regions[region] = res.Summary
		s.TotalAvgDemand += res.Summary.AvgDemand
		if res.Summary.MaxDemand > s.SystemPeak {
			s.SystemPeak = res.Summary.MaxDemand
		}
	}
	return s
}

// Transfer is a recommended inter-regional load movement.
type Transfer struct {
	FromRegion  string  `json:"from_region"`
	ToRegion    string  `json:"to_region"`
	PotentialMW float64 `json:"potential_mw"`
}

// FlowOptimization summarizes inter-regional balancing opportunities.
type FlowOptimization struct {
	TotalSystemLoad float64    `json:"total_system_load"`
	Transfers       []Transfer `json:"recommended_transfers"`
	CostSavings     float64    `json:"cost_savings"`
}

// OptimizeFlow identifies regions with spare headroom that can relieve
// regions forecast above the high-demand threshold. Output order is stable
// for a given input.
func (m *MultiRegion) OptimizeFlow(results map[string]*Result, lowMW, highMW float64) FlowOptimization {
	opt := FlowOptimization{}

	regions := make([]string, 0, len(results))
	for region := range results {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	for _, region := range regions {
		for _, p := range results[region].Predictions {
			opt.TotalSystemLoad += p.PredictedDemand
		}
	}

	for _, from := range regions {
		for _, to := range regions {
			if from == to {
				continue
			}
			avgFrom := results[from].Summary.AvgDemand
			avgTo := results[to].Summary.AvgDemand
			if avgFrom < lowMW && avgTo > highMW {
				opt.Transfers = append(opt.Transfers, Transfer{
					FromRegion:  from,
					ToRegion:    to,
					PotentialMW: min(lowMW-avgFrom, avgTo-highMW),
				})
			}
		}
	}

	for _, tr := range opt.Transfers {
		opt.CostSavings += tr.PotentialMW * transferSavingsPerMW
	}
	return opt
}
