package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readingTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func smallFleet(seed uint64) *Fleet {
	opt := NewDefaultFleetOptions()
	opt.NumMeters = 50
	return NewFleet(seed, opt)
}

func TestFleetComposition(t *testing.T) {
	f := NewFleet(42, nil)
	assert.Equal(t, 1000, f.NumMeters())

	readings := f.Readings(readingTime)
	require.Len(t, readings, 1000)

	var commercial int
	for _, r := range readings {
		assert.Equal(t, "METER_", r.MeterID[:6])
		assert.Greater(t, r.ConsumptionKW, 0.0)
		assert.GreaterOrEqual(t, r.Voltage, 230.0)
		assert.LessOrEqual(t, r.Voltage, 240.0)
		assert.GreaterOrEqual(t, r.PowerFactor, 0.85)
		assert.LessOrEqual(t, r.PowerFactor, 0.95)
		if r.MeterType == TypeCommercial {
			commercial++
		}
	}
	// 30% commercial ratio with some sampling slack
	assert.InDelta(t, 300, commercial, 75)
}

func TestFleetDeterminism(t *testing.T) {
	a := smallFleet(7).Readings(readingTime)
	b := smallFleet(7).Readings(readingTime)
	assert.Equal(t, a, b)

	c := smallFleet(8).Readings(readingTime)
	assert.NotEqual(t, a, c)
}

func TestReadingsDiurnalShape(t *testing.T) {
	noon := smallFleet(42).Readings(readingTime)
	night := smallFleet(42).Readings(readingTime.Add(-12 * time.Hour))

	var noonTotal, nightTotal float64
	for i := range noon {
		noonTotal += noon[i].ConsumptionKW
		nightTotal += night[i].ConsumptionKW
	}
	assert.Greater(t, noonTotal, nightTotal, "midday consumption exceeds midnight")
}

func TestAggregateReadings(t *testing.T) {
	readings := []Reading{
		{MeterID: "METER_00000", Timestamp: readingTime, ConsumptionKW: 3000, MeterType: TypeResidential},
		{MeterID: "METER_00001", Timestamp: readingTime, ConsumptionKW: 5000, MeterType: TypeCommercial},
		{MeterID: "METER_00002", Timestamp: readingTime, ConsumptionKW: 2000, MeterType: TypeResidential},
	}
	agg := AggregateReadings(readings)

	assert.Equal(t, 3, agg.NumMeters)
	assert.InDelta(t, 10.0, agg.TotalConsumptionMW, 1e-9)
	assert.InDelta(t, 10000.0/3, agg.AvgConsumptionKW, 1e-9)
	assert.Equal(t, 5000.0, agg.PeakConsumptionKW)
	assert.InDelta(t, 5.0, agg.ResidentialConsumptionMW, 1e-9)
	assert.InDelta(t, 5.0, agg.CommercialConsumptionMW, 1e-9)
	assert.InDelta(t, agg.TotalConsumptionMW,
		agg.ResidentialConsumptionMW+agg.CommercialConsumptionMW, 1e-9)
	assert.Equal(t, readingTime, agg.Timestamp)
}

func TestAggregateReadingsEmpty(t *testing.T) {
	agg := AggregateReadings(nil)
	assert.Zero(t, agg.NumMeters)
	assert.Zero(t, agg.TotalConsumptionMW)
}

func TestScreenAnomaliesConsumption(t *testing.T) {
	f := smallFleet(42)

	readings := make([]Reading, 30)
	for i := range readings {
		readings[i] = Reading{MeterID: "METER_00000", ConsumptionKW: 5, Voltage: 230}
	}
	readings[7].MeterID = "METER_00007"
	readings[7].ConsumptionKW = 500

	anomalies := f.ScreenAnomalies(readings)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "METER_00007", anomalies[0].MeterID)
	assert.Equal(t, AnomalyHighConsumption, anomalies[0].Type)
	assert.Equal(t, 500.0, anomalies[0].Value)
	assert.Equal(t, "high", anomalies[0].Severity)
}

func TestScreenAnomaliesVoltage(t *testing.T) {
	f := smallFleet(42)

	readings := []Reading{
		{MeterID: "METER_00000", ConsumptionKW: 5, Voltage: 230},
		{MeterID: "METER_00001", ConsumptionKW: 5, Voltage: 210},
		{MeterID: "METER_00002", ConsumptionKW: 5, Voltage: 260},
	}
	anomalies := f.ScreenAnomalies(readings)
	require.Len(t, anomalies, 2)
	for _, a := range anomalies {
		assert.Equal(t, AnomalyVoltage, a.Type)
		assert.Equal(t, 230.0, a.Expected)
		assert.Equal(t, "medium", a.Severity)
	}
}

func TestScreenAnomaliesSingleReading(t *testing.T) {
	f := smallFleet(42)
	anomalies := f.ScreenAnomalies([]Reading{
		{MeterID: "METER_00000", ConsumptionKW: 9999, Voltage: 230},
	})
	assert.Empty(t, anomalies, "one reading gives no stddev to screen against")
}

func TestLoadProfile(t *testing.T) {
	f := smallFleet(42)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	profile := f.LoadProfile(from, 24)
	require.Len(t, profile, 24)

	for _, p := range profile {
		switch h := p.Timestamp.Hour(); {
		case h < 6:
			assert.LessOrEqual(t, p.ConsumptionKW, 2.0)
		case h >= 17 && h < 22:
			assert.GreaterOrEqual(t, p.ConsumptionKW, 4.0)
		}
	}
}

func TestMeterTypeString(t *testing.T) {
	assert.Equal(t, "residential", TypeResidential.String())
	assert.Equal(t, "commercial", TypeCommercial.String())
	assert.Equal(t, "high_consumption", AnomalyHighConsumption.String())
	assert.Equal(t, "voltage_anomaly", AnomalyVoltage.String())
}
