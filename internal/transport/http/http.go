// Package http is the thin chi-based transport over internal/api
// (component 8, §6): decode request, call the façade, encode response.
// It carries no business logic of its own — every domain rejection maps
// straight to the error kind named in §6.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dipnamdev/attendance-management-backend/internal/api"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/heartbeat"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
)

// Server wraps the façade with a chi router.
type Server struct {
	api *api.API
	log logger.Logger
}

// NewRouter builds the full chi.Router for the attendance API, mounting
// every operation named in §6 under /v1 plus an unauthenticated
// /healthz.
func NewRouter(a *api.API, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Noop{}
	}
	s := &Server{api: a, log: log.With("http")}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Post("/check-in", s.handleCheckIn)
		r.Post("/check-out", s.handleCheckOut)
		r.Post("/heartbeat", s.handleHeartbeat)
		r.Post("/break/start", s.handleStartBreak)
		r.Post("/break/end", s.handleEndBreak)
		r.Get("/attendance/today", s.handleGetToday)
		r.Get("/attendance/history", s.handleGetHistory)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request completed",
			"method", r.Method, "path", r.URL.Path,
			"req_id", chimw.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkInRequest struct {
	At       *time.Time `json:"at"`
	IP       string     `json:"ip"`
	Location string     `json:"location"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req checkInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.api.CheckIn(r.Context(), userID, at(req.At), req.IP, req.Location)
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type checkOutRequest struct {
	At       *time.Time `json:"at"`
	IP       string     `json:"ip"`
	Location string     `json:"location"`
	Reason   string     `json:"reason"`
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req checkOutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.api.CheckOut(r.Context(), userID, at(req.At), req.IP, req.Location, req.Reason)
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type heartbeatRequest struct {
	At                *time.Time `json:"at"`
	ActiveWindow      string     `json:"active_window"`
	ActiveApplication string     `json:"active_application"`
	URL               string     `json:"url"`
	MouseClicks       int64      `json:"mouse_clicks"`
	KeyboardStrokes   int64      `json:"keyboard_strokes"`
	ClientIsActive    bool       `json:"is_active"`
	ClientIdleSeconds int64      `json:"idle_time_seconds"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req heartbeatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sample := heartbeat.Sample{
		ActiveWindow:      req.ActiveWindow,
		ActiveApplication: req.ActiveApplication,
		URL:               req.URL,
		MouseClicks:       req.MouseClicks,
		KeyboardStrokes:   req.KeyboardStrokes,
		ClientIsActive:    req.ClientIsActive,
		ClientIdleSeconds: req.ClientIdleSeconds,
	}

	result, err := s.api.Heartbeat(r.Context(), userID, sample, at(req.At))
	if errors.Is(err, domain.ErrAutoCheckedOut) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":                true,
			"current_state":     domain.StateNone,
			"auto_checked_out":  true,
		})
		return
	}
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"current_state": result.CurrentState,
	})
}

type breakRequest struct {
	At       *time.Time `json:"at"`
	Location string     `json:"location"`
}

func (s *Server) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req breakRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.api.StartBreak(r.Context(), userID, at(req.At), req.Location)
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req breakRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.api.EndBreak(r.Context(), userID, at(req.At), req.Location)
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetToday(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	today, err := s.api.GetTodayAttendance(r.Context(), userID)
	if s.writeDomainError(w, err) {
		return
	}
	if today == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no attendance record for today"})
		return
	}
	writeJSON(w, http.StatusOK, today)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var start, end *time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			start = &t
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end = &t
		}
	}

	history, err := s.api.GetAttendanceHistory(r.Context(), userID, start, end)
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// writeDomainError maps a command/façade error to the §6 error kind and
// writes the response. Returns true if it wrote a response (err != nil).
func (s *Server) writeDomainError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrNotCheckedIn):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "NOT_CHECKED_IN"})
	case errors.Is(err, domain.ErrAlreadyCheckedIn):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "ALREADY_CHECKED_IN"})
	case errors.Is(err, domain.ErrAlreadyCheckedOut):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "ALREADY_CHECKED_OUT"})
	case errors.Is(err, domain.ErrBreakAlreadyStarted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "BREAK_ALREADY_STARTED"})
	case errors.Is(err, domain.ErrNoActiveBreak):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "NO_ACTIVE_BREAK"})
	default:
		s.log.Error("internal error", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "STORE_ERROR"})
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func at(t *time.Time) time.Time {
	if t == nil {
		return time.Now()
	}
	return *t
}
