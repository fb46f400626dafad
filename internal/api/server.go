// Package api exposes the coordinator's REST surface: process and
// per-room health, room state inspection, room reset, and Prometheus
// metrics. It carries no room logic of its own.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syncroom/internal/room"
	"syncroom/internal/store"
)

// Server is the HTTP API. It implements http.Handler.
type Server struct {
	rooms  *room.Supervisor
	kv     store.KV
	log    *slog.Logger
	router chi.Router
}

// NewServer wires the API routes.
func NewServer(rooms *room.Supervisor, kv store.KV, log *slog.Logger) *Server {
	s := &Server{rooms: rooms, kv: kv, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/rooms/{room}", func(r chi.Router) {
		r.Get("/health", s.roomHealth)
		r.Get("/state", s.roomState)
		r.Post("/reset", s.roomReset)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg, Code: status})
}

// health reports process liveness and storage reachability.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.kv.HealthCheck(r.Context()); err != nil {
		s.log.Warn("storage health check failed", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.rooms.Len(),
	})
}

// resident resolves the path's room, writing a 404 when the room is not
// live in this process. Rooms are created by connections, never by reads.
func (s *Server) resident(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	id := chi.URLParam(r, "room")
	rm, ok := s.rooms.Lookup(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "room not active: "+id)
		return nil, false
	}
	return rm, true
}

func (s *Server) roomHealth(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.resident(w, r)
	if !ok {
		return
	}
	info, err := rm.Info(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"room":     info.ID,
		"status":   "ok",
		"sessions": info.Sessions,
	})
}

func (s *Server) roomState(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.resident(w, r)
	if !ok {
		return
	}
	info, err := rm.Info(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// roomReset clears a room whether or not it is resident: a live room is
// reset in place, a cold one has its persisted snapshot deleted.
func (s *Server) roomReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "room")
	if err := s.rooms.Reset(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("room reset via api", "room", id)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"room":   id,
		"status": "reset",
	})
}
