package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"chat-image-sync/internal/application"
	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the debug/ops HTTP surface: job state inspection, manual cancel
// and backfill, health and metrics. Not for end users.
type Server struct {
	facade *application.SyncFacade
	apiKey string
	log    *zerolog.Logger
}

func NewServer(facade *application.SyncFacade, apiKey string, logger *zerolog.Logger) *Server {
	return &Server{facade: facade, apiKey: apiKey, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/cancel", s.handleCancelJob)
		r.Post("/conversations/{id}/backfill", s.handleBackfill)
	})
	return r
}

// authMiddleware provides simple Bearer token authentication for the ops API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("ops API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] != s.apiKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type jobView struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Prompt         string  `json:"prompt,omitempty"`
	Status         string  `json:"status"`
	Progress       int     `json:"progress"`
	QueuePosition  int     `json:"queue_position,omitempty"`
	Estimated      float64 `json:"estimated_seconds,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
	Error          string  `json:"error,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func toView(j *model.Job) jobView {
	return jobView{
		ID:             j.ID,
		ConversationID: j.ConversationID,
		Prompt:         j.Prompt,
		Status:         string(j.Status),
		Progress:       j.Progress,
		QueuePosition:  j.QueuePosition,
		Estimated:      j.EstimatedSeconds,
		ImageURL:       j.ImageURL,
		Error:          j.Error,
		CreatedAt:      j.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.facade.ListActiveJobs()
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, toView(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job := s.facade.GetJob(id)
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toView(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.facade.Cancel(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "job not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNotCancelable):
		http.Error(w, "job is not cancelable", http.StatusConflict)
	default:
		s.log.Error().Err(err).Str("job_id", id).Msg("ops cancel failed")
		http.Error(w, "cancel failed", http.StatusBadGateway)
	}
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	repaired, err := s.facade.Backfill(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", id).Msg("ops backfill failed")
		http.Error(w, "backfill failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repaired": repaired})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
