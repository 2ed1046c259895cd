package forecast

import (
	"fmt"

	"github.com/gridsense/demandcast/timeseries"
)

// BacktestResult pairs the holdout accuracy with the evaluated horizon.
type BacktestResult struct {
	HorizonHours int     `json:"horizon_hours"`
	Scores       *Scores `json:"scores"`
}

// Backtest trains on the series minus its final horizon hours and scores the
// resulting predictions against the withheld actuals. Accuracy claims for the
// engine come from here, not from a constant.
func Backtest(series *timeseries.Series, horizon int, opt *Options) (*BacktestResult, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if series.Len() < opt.MinLookbackHours+horizon {
		return nil, fmt.Errorf(
			"series has %d hours but %d required for a %dh holdout, %w",
			series.Len(), opt.MinLookbackHours+horizon, horizon, ErrInsufficientHistory,
		)
	}

	obs := series.Observations()
	train, err := timeseries.New(obs[:len(obs)-horizon])
	if err != nil {
		return nil, err
	}
	holdout := obs[len(obs)-horizon:]

	e, err := NewEngine(opt)
	if err != nil {
		return nil, err
	}
	if err := e.Fit(train); err != nil {
		return nil, err
	}
	res, err := e.Predict(horizon, nil)
	if err != nil {
		return nil, err
	}

	predicted := make([]float64, len(res.Predictions))
	actual := make([]float64, len(holdout))
	for i := range res.Predictions {
		predicted[i] = res.Predictions[i].PredictedDemand
		actual[i] = holdout[i].DemandMW
	}
	scores, err := NewScores(predicted, actual)
	if err != nil {
		return nil, err
	}
	return &BacktestResult{
		HorizonHours: horizon,
		Scores:       scores,
	}, nil
}
