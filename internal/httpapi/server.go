package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sentinel/internal/bootstrap/config"
	"sentinel/internal/ports"
	"sentinel/internal/usecase/alerting"
	"sentinel/internal/usecase/ingest"
)

// Server owns the HTTP surface: the webhook intake, the admin job
// triggers, alert acknowledgement, and incident intake.
type Server struct {
	cfg       config.Config
	router    *ingest.Router
	queue     ports.Queue
	repos     ports.RepositoryStore
	events    ports.EventStore
	alerts    ports.AlertStore
	incidents ports.IncidentStore
	triggers  *alerting.Triggers
	clock     ports.Clock
}

func NewServer(
	cfg config.Config,
	router *ingest.Router,
	queue ports.Queue,
	repos ports.RepositoryStore,
	events ports.EventStore,
	alerts ports.AlertStore,
	incidents ports.IncidentStore,
	triggers *alerting.Triggers,
	clock ports.Clock,
) *Server {
	return &Server{
		cfg:       cfg,
		router:    router,
		queue:     queue,
		repos:     repos,
		events:    events,
		alerts:    alerts,
		incidents: incidents,
		triggers:  triggers,
		clock:     clock,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/webhooks/github", s.handleWebhook)
	r.Post("/api/alerts/{id}/acknowledge", s.handleAcknowledge)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdminKey)
		r.Post("/api/admin/metrics/{action}", s.handleAdminMetrics)
		r.Post("/api/incidents", s.handleCreateIncident)
	})

	return r
}

func (s *Server) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := s.cfg.Admin.APIKey
		if key == "" || r.Header.Get("X-Admin-Key") != key {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
