package demandcast

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gridsense/demandcast/forecast"
)

var ErrNothingToPlot = errors.New("no history or forecast to plot")

// LineForecast generates an echart line chart plotting recent actuals
// followed by the forecast with its upper and lower bounds.
func LineForecast(history []float64, t []time.Time, res *forecast.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "Demand Forecast",
			},
		),
	)

	n := len(history) + len(res.Predictions)
	x := make([]time.Time, 0, n)
	actualData := make([]opts.LineData, 0, n)
	forecastData := make([]opts.LineData, 0, n)
	upperData := make([]opts.LineData, 0, n)
	lowerData := make([]opts.LineData, 0, n)

	for i, y := range history {
		x = append(x, t[i])
		actualData = append(actualData, opts.LineData{Value: y})
		forecastData = append(forecastData, opts.LineData{Value: "-"})
		upperData = append(upperData, opts.LineData{Value: "-"})
		lowerData = append(lowerData, opts.LineData{Value: "-"})
	}
	for _, p := range res.Predictions {
		x = append(x, p.Timestamp)
		actualData = append(actualData, opts.LineData{Value: "-"})
		forecastData = append(forecastData, opts.LineData{Value: p.PredictedDemand})
		upperData = append(upperData, opts.LineData{Value: p.UpperBound})
		lowerData = append(lowerData, opts.LineData{Value: p.LowerBound})
	}

	line.SetXAxis(x).
		AddSeries("Actual", actualData).
		AddSeries("Forecast", forecastData).
		AddSeries("Upper", upperData).
		AddSeries("Lower", lowerData)
	return line
}

// LineConfidence generates an echart line chart of forecast confidence over
// the horizon.
func LineConfidence(res *forecast.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "Forecast Confidence",
			},
		),
	)

	x := make([]time.Time, 0, len(res.Predictions))
	confData := make([]opts.LineData, 0, len(res.Predictions))
	for _, p := range res.Predictions {
		x = append(x, p.Timestamp)
		confData = append(confData, opts.LineData{Value: p.ConfidencePct})
	}
	line.SetXAxis(x).AddSeries("Confidence %", confData)
	return line
}

// RenderDashboard writes the forecast dashboard page to w: recent actuals
// with the forecast fan, plus the confidence curve.
func (p *Pipeline) RenderDashboard(w io.Writer, horizon, lookback int) error {
	if p.history == nil {
		return ErrNothingToPlot
	}
	res, err := p.Forecast(horizon)
	if err != nil {
		return err
	}

	tail := p.history.Tail(lookback)

	page := components.NewPage()
	page.AddCharts(
		LineForecast(tail.Demand(), tail.Timestamps(), res),
		LineConfidence(res),
	)
	return page.Render(w)
}

// PlotDashboard renders the dashboard page to an html file at path.
func (p *Pipeline) PlotDashboard(path string, horizon, lookback int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return p.RenderDashboard(file, horizon, lookback)
}
