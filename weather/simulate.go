package weather

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

var summaries = []string{"Clear", "Clouds", "Rain", "Partly Cloudy"}

// Simulated is a Provider producing plausible diurnal weather without any
// network dependency. Conditions for the same timestamp vary between calls
// by design, matching a live feed; seed the provider for reproducible tests.
type Simulated struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a seeded simulated provider.
func NewSimulated(seed uint64) *Simulated {
	return &Simulated{rnd: rand.New(rand.NewPCG(seed, seed))}
}

// Conditions returns simulated weather for t. The temperature follows a
// diurnal sine centered on 20C.
func (s *Simulated) Conditions(t time.Time) (Conditions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseTemp := 20 + 10*math.Sin(float64(t.Hour()-6)*math.Pi/12.0)
	return Conditions{
		Timestamp:    t,
		TemperatureC: round1(baseTemp + s.rnd.NormFloat64()*2),
		HumidityPct:  round1(60 + s.rnd.NormFloat64()*10),
		WindKPH:      round1(math.Abs(8 + s.rnd.NormFloat64()*4)),
		Summary:      summaries[s.rnd.IntN(len(summaries))],
	}, nil
}

// Forecast returns simulated conditions for the next hours starting at from.
func (s *Simulated) Forecast(from time.Time, hours int) ([]Conditions, error) {
	out := make([]Conditions, 0, hours)
	for i := 0; i < hours; i++ {
		c, err := s.Conditions(from.Add(time.Duration(i) * time.Hour))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Unavailable is a Provider that always fails. It exercises the pipeline's
// no-weather fallback path.
type Unavailable struct{}

func (Unavailable) Conditions(time.Time) (Conditions, error) {
	return Conditions{}, ErrUnavailable
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
