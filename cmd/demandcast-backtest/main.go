package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/pkg/profile"

	demandcast "github.com/gridsense/demandcast"
	"github.com/gridsense/demandcast/forecast"
	"github.com/gridsense/demandcast/timeseries"
	"github.com/gridsense/demandcast/weather"
)

func main() {
	var (
		seed        = flag.Uint64("seed", 42, "seed for the synthetic series")
		historyDays = flag.Int("history-days", 365, "days of synthetic history")
		horizon     = flag.Int("horizon", 168, "holdout horizon in hours")
		plotPath    = flag.String("plot", "", "write dashboard html to this path")
		cpuProfile  = flag.Bool("profile", false, "write a cpu profile to the working directory")
	)
	flag.Parse()

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	end := time.Now().UTC().Truncate(time.Hour)
	gen := timeseries.NewGenerator(*seed, nil)
	series, err := gen.Generate(end, *historyDays*24)
	if err != nil {
		log.Fatalf("generate history: %v", err)
	}

	res, err := forecast.Backtest(series, *horizon, nil)
	if err != nil {
		log.Fatalf("backtest: %v", err)
	}

	fmt.Printf("backtest over %dh holdout\n", res.HorizonHours)
	fmt.Printf("  mse:  %.2f\n", res.Scores.MSE)
	fmt.Printf("  rmse: %.2f\n", res.Scores.RMSE)
	fmt.Printf("  mape: %.4f\n", res.Scores.MAPE)
	fmt.Printf("  r2:   %.4f\n", res.Scores.R2)

	if *plotPath == "" {
		return
	}

	pipe, err := demandcast.NewPipeline(nil, weather.NewSimulated(*seed))
	if err != nil {
		log.Fatalf("build pipeline: %v", err)
	}
	if err := pipe.Fit(series); err != nil {
		log.Fatalf("fit pipeline: %v", err)
	}
	if err := pipe.PlotDashboard(*plotPath, *horizon, 14*24); err != nil {
		log.Fatalf("plot dashboard: %v", err)
	}
	log.Printf("wrote dashboard to %s", *plotPath)
}
