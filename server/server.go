// Package server exposes the forecasting pipeline over a REST API plus a
// websocket stream of live meter aggregates. Handlers are read-only over the
// trained pipeline, so the router is safe for concurrent requests.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	demandcast "github.com/gridsense/demandcast"
	"github.com/gridsense/demandcast/forecast"
	"github.com/gridsense/demandcast/gridopt"
	"github.com/gridsense/demandcast/meter"
)

// Config bounds request parameters.
type Config struct {
	DefaultHorizonHours int
	MaxHorizonHours     int
	DefaultHistoryHours int
	DashboardLookback   int
}

func NewDefaultConfig() *Config {
	return &Config{
		DefaultHorizonHours: 24,
		MaxHorizonHours:     168,
		DefaultHistoryHours: 168,
		DashboardLookback:   168,
	}
}

// Server wires the pipeline and auxiliary calculators into HTTP handlers.
type Server struct {
	cfg     *Config
	pipe    *demandcast.Pipeline
	regions *forecast.MultiRegion
	fleet   *gridopt.EVFleet
	battery *gridopt.Battery
	der     *gridopt.DERManager
	meters  *meter.Fleet
	hub     *Hub
}

// New assembles a server around a fitted pipeline. The region forecaster,
// EV fleet, battery, DER manager, and meter fleet are optional; their routes
// return 503 when absent.
func New(cfg *Config, pipe *demandcast.Pipeline, regions *forecast.MultiRegion,
	fleet *gridopt.EVFleet, battery *gridopt.Battery, der *gridopt.DERManager,
	meters *meter.Fleet) *Server {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	return &Server{
		cfg:     cfg,
		pipe:    pipe,
		regions: regions,
		fleet:   fleet,
		battery: battery,
		der:     der,
		meters:  meters,
		hub:     NewHub(),
	}
}

// Hub returns the websocket hub for broadcast wiring.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/stats", s.handleStats)
		api.GET("/historical", s.handleHistorical)
		api.GET("/predict", s.handlePredict)
		api.GET("/optimize", s.handleOptimize)
		api.GET("/anomalies", s.handleAnomalies)
		api.GET("/meters", s.handleMeters)

		adv := api.Group("/advanced")
		{
			adv.GET("/multi-region", s.handleMultiRegion)
			adv.GET("/ev-load", s.handleEVLoad)
			adv.GET("/battery", s.handleBattery)
			adv.GET("/der", s.handleDER)
			adv.GET("/summary", s.handleAdvancedSummary)
		}
	}

	r.GET("/dashboard", s.handleDashboard)
	r.GET("/ws", gin.WrapH(NewStreamHandler(s.hub)))
	return r
}

// respond marshals v with goccy and writes it, keeping number formatting
// consistent across every endpoint.
func respond(c *gin.Context, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(code, "application/json; charset=utf-8", body)
}

func respondErr(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

// horizon parses the hours query parameter, clamped to the configured max.
func (s *Server) horizon(c *gin.Context) int {
	h := s.cfg.DefaultHorizonHours
	if raw := c.Query("hours"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			h = v
		}
	}
	if h > s.cfg.MaxHorizonHours {
		h = s.cfg.MaxHorizonHours
	}
	return h
}

func (s *Server) handleHealth(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":        "healthy",
		"model_trained": s.pipe.Engine().Trained(),
		"timestamp":     time.Now().UTC(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.pipe.Stats()
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
		return
	}
	respond(c, http.StatusOK, stats)
}

func (s *Server) handleHistorical(c *gin.Context) {
	history := s.pipe.History()
	if history == nil {
		respondErr(c, http.StatusServiceUnavailable, demandcast.ErrNoHistory)
		return
	}

	hours := s.cfg.DefaultHistoryHours
	if raw := c.Query("hours"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			hours = v
		}
	}
	tail := history.Tail(hours)
	respond(c, http.StatusOK, gin.H{
		"observations": tail.Observations(),
		"count":        tail.Len(),
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	res, err := s.pipe.Forecast(s.horizon(c))
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (s *Server) handleOptimize(c *gin.Context) {
	opt, err := s.pipe.Optimize(s.horizon(c))
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
		return
	}
	respond(c, http.StatusOK, opt)
}

func (s *Server) handleAnomalies(c *gin.Context) {
	alerts, analysis, err := s.pipe.DetectAnomalies()
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"anomalies": alerts,
		"analysis":  analysis,
	})
}

func (s *Server) handleMeters(c *gin.Context) {
	if s.meters == nil {
		respondErr(c, http.StatusServiceUnavailable, ErrNotConfigured)
		return
	}
	readings := s.meters.Readings(time.Now().UTC())
	respond(c, http.StatusOK, gin.H{
		"aggregate": meter.AggregateReadings(readings),
		"anomalies": s.meters.ScreenAnomalies(readings),
	})
}

func (s *Server) handleMultiRegion(c *gin.Context) {
	if s.regions == nil {
		respondErr(c, http.StatusServiceUnavailable, ErrNotConfigured)
		return
	}
	horizon := s.horizon(c)
	results, err := s.regions.PredictAll(horizon)
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
		return
	}

	grid := s.pipe.Grid()
	low := grid.Capacity() * 0.4
	high := grid.Capacity() * 0.7
	respond(c, http.StatusOK, gin.H{
		"forecasts": results,
		"summary":   s.regions.Summarize(results),
		"flow":      s.regions.OptimizeFlow(results, low, high),
	})
}

func (s *Server) handleEVLoad(c *gin.Context) {
	if s.fleet == nil {
		respondErr(c, http.StatusServiceUnavailable, ErrNotConfigured)
		return
	}
	horizon := s.horizon(c)
	now := time.Now().UTC()
	points := s.fleet.Forecast(now, horizon)
	respond(c, http.StatusOK, gin.H{
		"forecast":     points,
		"optimization": s.fleet.Optimize(points),
		"v2g":          s.fleet.V2G(0.3),
		"statistics":   s.fleet.Statistics(),
		"impact":       s.fleet.SmartChargingImpact(now, horizon),
	})
}

func (s *Server) handleBattery(c *gin.Context) {
	if s.battery == nil {
		respondErr(c, http.StatusServiceUnavailable, ErrNotConfigured)
		return
	}
	res, err := s.pipe.Forecast(s.horizon(c))
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"status":               s.battery.Status(),
		"schedule":             s.battery.Schedule(res.Predictions),
		"peak_shaving":         s.battery.PeakShaving(res.Predictions),
		"arbitrage":            s.battery.Arbitrage(nil),
		"frequency_regulation": s.battery.FrequencyRegulation(),
		"simulation":           s.battery.Simulate(res.Predictions),
	})
}

func (s *Server) handleDER(c *gin.Context) {
	if s.der == nil {
		respondErr(c, http.StatusServiceUnavailable, ErrNotConfigured)
		return
	}
	horizon := s.horizon(c)
	res, err := s.pipe.Forecast(horizon)
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
		return
	}

	agg := s.der.Aggregate(s.pipe.Engine().TrainEnd(), horizon)
	dispatch := s.der.Dispatch(res.Predictions, agg)
	respond(c, http.StatusOK, gin.H{
		"forecast":      agg,
		"dispatch":      dispatch,
		"benefits":      s.der.Benefits(dispatch),
		"opportunities": s.der.ExpansionOpportunities(dispatch),
		"portfolio":     s.der.Portfolio(),
	})
}

func (s *Server) handleAdvancedSummary(c *gin.Context) {
	horizon := s.horizon(c)
	summary := gin.H{}

	if s.fleet != nil {
		summary["ev"] = s.fleet.SmartChargingImpact(time.Now().UTC(), horizon)
	}
	if s.battery != nil {
		if res, err := s.pipe.Forecast(horizon); err == nil {
			summary["battery"] = s.battery.PeakShaving(res.Predictions)
		}
	}
	if s.der != nil {
		if res, err := s.pipe.Forecast(horizon); err == nil {
			agg := s.der.Aggregate(s.pipe.Engine().TrainEnd(), horizon)
			summary["der"] = s.der.Benefits(s.der.Dispatch(res.Predictions, agg))
		}
	}
	if s.regions != nil {
		if results, err := s.regions.PredictAll(horizon); err == nil {
			summary["regions"] = s.regions.Summarize(results)
		}
	}
	respond(c, http.StatusOK, summary)
}

func (s *Server) handleDashboard(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.pipe.RenderDashboard(c.Writer, s.cfg.DefaultHorizonHours, s.cfg.DashboardLookback); err != nil {
		respondErr(c, http.StatusServiceUnavailable, err)
	}
}
