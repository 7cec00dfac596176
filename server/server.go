// Package server exposes the session API, the dashboard WebSocket and the
// Prometheus endpoint.
package server

import (
	"net/http"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/exercise"
	"github.com/ElectrobladeIsADev/fitnessguide/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	analyzer *analytics.Analyzer
	table    exercise.Table
	ws       http.Handler
	instr    *metrics.Instrumentation
	gatherer prometheus.Gatherer
	sensor   func() any
	router   chi.Router
}

// New creates a new Server with all routes configured. ws serves /ws and
// gatherer backs /metrics.
func New(analyzer *analytics.Analyzer, table exercise.Table, ws http.Handler, instr *metrics.Instrumentation, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		analyzer: analyzer,
		table:    table,
		ws:       ws,
		instr:    instr,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetSensorStats sets the source of GET /api/sensor.
func (s *Server) SetSensorStats(fn func() any) {
	s.sensor = fn
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(RequestLogging)
		r.Use(RequestMetrics(s.instr))
		r.Use(CORS)

		r.Get("/state", s.handleState)
		r.Get("/exercises", s.handleExercises)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Post("/exercise", s.handleSwitchExercise)
		r.Post("/session/reset", s.handleReset)
		r.Get("/sensor", s.handleSensor)
	})

	s.router.Handle("/ws", s.ws)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}
