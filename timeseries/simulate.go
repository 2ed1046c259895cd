package timeseries

import (
	"math"
	"math/rand/v2"
	"time"
)

// GeneratorOptions controls the synthetic demand generator. All magnitudes are
// in MW except where noted.
type GeneratorOptions struct {
	BaseLoadMW    float64 // mean load before any pattern terms
	BaseNoiseMW   float64 // stddev of the base load wander
	DailyAmpMW    float64 // daytime peak amplitude
	NightDropMW   float64 // flat overnight reduction
	WeekendDropMW float64 // weekend reduction
	WeekdayRiseMW float64 // weekday addition
	SeasonalAmpMW float64 // summer/winter amplitude
	EventRate     float64 // fraction of hours receiving a random spike/drop
	EventMinMW    float64
	EventMaxMW    float64
	NoiseMW       float64 // final additive noise stddev
	FloorMW       float64 // demand never generated below this
}

// NewDefaultGeneratorOptions mirrors a mid-sized regional grid with a ~5 GW
// base load.
func NewDefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		BaseLoadMW:    5000,
		BaseNoiseMW:   100,
		DailyAmpMW:    2000,
		NightDropMW:   500,
		WeekendDropMW: 800,
		WeekdayRiseMW: 400,
		SeasonalAmpMW: 1500,
		EventRate:     0.02,
		EventMinMW:    500,
		EventMaxMW:    1500,
		NoiseMW:       50,
		FloorMW:       1000,
	}
}

// Generator produces a synthetic hourly demand series with daily, weekly, and
// seasonal structure plus weather-coupled load and sparse random events. The
// same seed and options always produce the same series.
type Generator struct {
	opt *GeneratorOptions
	rnd *rand.Rand
}

// NewGenerator creates a seeded generator. A nil options uses the default.
func NewGenerator(seed uint64, opt *GeneratorOptions) *Generator {
	if opt == nil {
		opt = NewDefaultGeneratorOptions()
	}
	return &Generator{
		opt: opt,
		rnd: rand.New(rand.NewPCG(seed, seed)),
	}
}

// Generate produces n hourly observations ending just before end.
func (g *Generator) Generate(end time.Time, n int) (*Series, error) {
	start := end.Truncate(time.Hour).Add(-time.Duration(n) * time.Hour)

	obs := make([]Observation, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)

		temp := g.temperature(i, n)
		demand := g.opt.BaseLoadMW + g.rnd.NormFloat64()*g.opt.BaseNoiseMW
		demand += g.dailyTerm(ts)
		demand += g.weeklyTerm(ts)
		demand += g.seasonalTerm(ts)
		demand += weatherLoad(temp)
		if g.rnd.Float64() < g.opt.EventRate {
			demand += g.eventTerm()
		}
		demand += g.rnd.NormFloat64() * g.opt.NoiseMW
		demand = math.Max(demand, g.opt.FloorMW)

		obs = append(obs, Observation{
			Timestamp:    ts,
			DemandMW:     demand,
			TemperatureC: temp,
			HumidityPct:  60 + g.rnd.NormFloat64()*10,
			WindKPH:      math.Abs(8 + g.rnd.NormFloat64()*4),
		})
	}
	return New(obs)
}

// dailyTerm peaks mid-afternoon and drops flat overnight.
func (g *Generator) dailyTerm(ts time.Time) float64 {
	hour := ts.Hour()
	if hour >= 6 && hour <= 22 {
		return g.opt.DailyAmpMW * math.Sin(float64(hour-6)*math.Pi/16.0)
	}
	return -g.opt.NightDropMW
}

func (g *Generator) weeklyTerm(ts time.Time) float64 {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return -g.opt.WeekendDropMW
	default:
		return g.opt.WeekdayRiseMW
	}
}

func (g *Generator) seasonalTerm(ts time.Time) float64 {
	doy := float64(ts.YearDay())
	return g.opt.SeasonalAmpMW * math.Abs(math.Sin(2.0*math.Pi*doy/365.0))
}

func (g *Generator) eventTerm() float64 {
	mag := g.opt.EventMinMW + g.rnd.Float64()*(g.opt.EventMaxMW-g.opt.EventMinMW)
	if g.rnd.Float64() < 0.5 {
		return -mag
	}
	return mag
}

// temperature follows two slow annual-scale cycles across the generated range
// with hour-to-hour jitter.
func (g *Generator) temperature(i, n int) float64 {
	phase := 4.0 * math.Pi * float64(i) / float64(n)
	return 20 + 15*math.Sin(phase) + g.rnd.NormFloat64()*3
}

// weatherLoad adds cooling load above 30C and heating load below 10C.
func weatherLoad(tempC float64) float64 {
	switch {
	case tempC > 30:
		return (tempC - 30) * 100
	case tempC < 10:
		return (10 - tempC) * 80
	default:
		return 0
	}
}

// GenerateConst produces n hourly observations of a constant demand ending
// just before end. Used heavily in tests.
func GenerateConst(end time.Time, n int, demandMW float64) (*Series, error) {
	start := end.Truncate(time.Hour).Add(-time.Duration(n) * time.Hour)
	obs := make([]Observation, 0, n)
	for i := 0; i < n; i++ {
		obs = append(obs, Observation{
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			DemandMW:     demandMW,
			TemperatureC: 20,
		})
	}
	return New(obs)
}
