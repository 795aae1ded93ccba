// Package controlplane exposes the orchestrator over a JSON HTTP API.
package controlplane

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/intake"
	"github.com/tjfontaine/automation-orchestrator/internal/orchestrator"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Service is the orchestrator surface the API drives. Implemented by
// *orchestrator.Orchestrator.
type Service interface {
	SubmitEvent(ctx context.Context, raw domain.RawEvent) (*orchestrator.ProcessingResult, error)
	GetInteraction(ctx context.Context, id string) (*domain.Interaction, error)
	ListInteractions(ctx context.Context, filter ports.InteractionFilter, page ports.Page) (*ports.InteractionPage, error)
	ListEscalated(ctx context.Context, filter ports.InteractionFilter, page ports.Page) (*ports.InteractionPage, error)
	GetAnalytics(ctx context.Context, r ports.TimeRange) (*domain.Analytics, error)
	InteractionEvents(ctx context.Context, id string) ([]*domain.InteractionEvent, error)
	AssignEscalation(ctx context.Context, id, operator string) (*domain.Interaction, error)
	ResolveEscalation(ctx context.Context, id, operator, notes string) (*domain.Interaction, error)
}

// Option configures a Server.
type Option func(*Server)

// WithIntake mounts the passive source routes. Without it they are absent.
func WithIntake(adapters *intake.Adapters, queue *intake.Queue) Option {
	return func(s *Server) {
		s.adapters = adapters
		s.queue = queue
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

type Server struct {
	router    chi.Router
	startTime time.Time
	svc       Service
	adapters  *intake.Adapters
	queue     *intake.Queue
	metrics   http.Handler
}

func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		startTime: time.Now(),
		svc:       svc,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Post("/events", s.handleSubmitEvent)
		r.Get("/interactions", s.handleListInteractions)
		r.Get("/interactions/{interaction_id}", s.handleInteractionDetail)
		r.Get("/interactions/{interaction_id}/events", s.handleInteractionEvents)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/escalations", s.handleListEscalations)
		r.Post("/escalations/{interaction_id}/assign", s.handleAssignEscalation)
		r.Post("/escalations/{interaction_id}/resolve", s.handleResolveEscalation)
		if s.adapters != nil {
			r.Post("/sources/{source}", s.handleSourceEvent)
		}
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type StatsResponse struct {
	Uptime       string      `json:"uptime"`
	GoVersion    string      `json:"go_version"`
	NumGoroutine int         `json:"num_goroutine"`
	IntakeQueued int         `json:"intake_queued"`
	Memory       MemoryStats `json:"memory"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := StatsResponse{
		Uptime:       time.Since(s.startTime).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	}
	if s.queue != nil {
		stats.IntakeQueued = s.queue.Len()
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
