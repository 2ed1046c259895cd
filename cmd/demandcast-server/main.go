package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	demandcast "github.com/gridsense/demandcast"
	"github.com/gridsense/demandcast/forecast"
	"github.com/gridsense/demandcast/gridopt"
	"github.com/gridsense/demandcast/meter"
	"github.com/gridsense/demandcast/server"
	"github.com/gridsense/demandcast/timeseries"
	"github.com/gridsense/demandcast/weather"
)

func main() {
	var (
		addr           = flag.String("addr", ":8000", "listen address")
		seed           = flag.Uint64("seed", 42, "seed for all simulated sources")
		historyDays    = flag.Int("history-days", 90, "days of synthetic history to generate")
		numMeters      = flag.Int("meters", 1000, "simulated smart meter count")
		streamInterval = flag.Duration("stream-interval", 5*time.Second, "meter stream broadcast interval")
	)
	flag.Parse()

	end := time.Now().UTC().Truncate(time.Hour)
	gen := timeseries.NewGenerator(*seed, nil)
	history, err := gen.Generate(end, *historyDays*24)
	if err != nil {
		log.Fatalf("generate history: %v", err)
	}

	pipe, err := demandcast.NewPipeline(nil, weather.NewSimulated(*seed))
	if err != nil {
		log.Fatalf("build pipeline: %v", err)
	}
	if err := pipe.Fit(history); err != nil {
		log.Fatalf("fit pipeline: %v", err)
	}

	regions := forecast.NewMultiRegion(nil, nil)
	for i, name := range regions.Regions() {
		regionGen := timeseries.NewGenerator(*seed+uint64(i)+1, nil)
		series, err := regionGen.Generate(end, *historyDays*24)
		if err != nil {
			log.Fatalf("generate %s history: %v", name, err)
		}
		if err := regions.Fit(name, series); err != nil {
			log.Fatalf("fit region %s: %v", name, err)
		}
	}

	fleet, err := gridopt.NewEVFleet(nil)
	if err != nil {
		log.Fatalf("build ev fleet: %v", err)
	}
	battery, err := gridopt.NewBattery(nil)
	if err != nil {
		log.Fatalf("build battery: %v", err)
	}
	der, err := gridopt.NewDERManager(*seed, nil)
	if err != nil {
		log.Fatalf("build der manager: %v", err)
	}

	meterOpt := meter.NewDefaultFleetOptions()
	meterOpt.NumMeters = *numMeters
	meters := meter.NewFleet(*seed, meterOpt)

	srv := server.New(nil, pipe, regions, fleet, battery, der, meters)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.StreamMeters(ctx, srv.Hub(), meters, *streamInterval)

	httpSrv := &http.Server{
		Addr:    *addr,
		Handler: srv.Router(),
	}
	go func() {
		log.Printf("listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
