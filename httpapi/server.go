// Package httpapi exposes the engine status, driver commands and the event
// journal over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"splitwatch/cvar"
	"splitwatch/game"
	"splitwatch/journal"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultRecent = 50
	maxRecent     = 1000

	ErrTypeNotFound    = "not_found"
	ErrTypeBadRequest  = "bad_request"
	ErrTypeUnavailable = "unavailable"
	ErrTypeInternal    = "internal"
)

// Engine is the part of game.Engine the API needs
type Engine interface {
	Status() game.Status
	SetCommand(ctx context.Context, name, value string) error
}

// Journal lists stored events; it may be nil
type Journal interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Server struct {
	engine    Engine
	journal   Journal
	startTime time.Time
	log       *logger.Logger
}

type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type SetCommandRequest struct {
	Value *string `json:"value"`
}

type HealthResponse struct {
	Status string  `json:"status"`
	Phase  string  `json:"phase"`
	Uptime float64 `json:"uptime_seconds"`
}

type EventsResponse struct {
	Events []journal.Entry `json:"events"`
}

func NewServer(engine Engine, j Journal) *Server {
	return &Server{
		engine:    engine,
		journal:   j,
		startTime: time.Now(),
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorLimeGreen, coloransi.ColorOrange, "http")),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/commands", s.handleListCommands)
		r.Put("/commands/{name}", s.handleSetCommand)
		r.Get("/events/recent", s.handleRecentEvents)
	})

	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infoln("listening on", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debugln(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("encode response: ", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, errType, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: APIError{Type: errType, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Phase:  s.engine.Status().Phase.String(),
		Uptime: time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	cmds := s.engine.Status().Commands
	if cmds == nil {
		cmds = []game.CommandStatus{}
	}
	s.writeJSON(w, http.StatusOK, cmds)
}

func (s *Server) handleSetCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetCommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrTypeBadRequest, "body must be {\"value\": \"...\"}")
		return
	}
	if req.Value == nil {
		s.writeError(w, http.StatusBadRequest, ErrTypeBadRequest, "value is required")
		return
	}

	if err := s.engine.SetCommand(r.Context(), name, *req.Value); err != nil {
		switch {
		case errors.Is(err, cvar.ErrUnknownCommand):
			s.writeError(w, http.StatusNotFound, ErrTypeNotFound, err.Error())
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			s.writeError(w, http.StatusServiceUnavailable, ErrTypeUnavailable, "engine did not apply the command in time")
		default:
			s.writeError(w, http.StatusInternalServerError, ErrTypeInternal, err.Error())
		}
		return
	}

	for _, c := range s.engine.Status().Commands {
		if strings.EqualFold(c.Name, name) {
			s.writeJSON(w, http.StatusOK, c)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrTypeUnavailable, "journal is disabled")
		return
	}

	limit := defaultRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRecent {
			s.writeError(w, http.StatusBadRequest, ErrTypeBadRequest, "limit must be between 1 and "+strconv.Itoa(maxRecent))
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		if errors.Is(err, journal.ErrNotConfigured) {
			s.writeError(w, http.StatusServiceUnavailable, ErrTypeUnavailable, "journal is disabled")
			return
		}
		s.writeError(w, http.StatusInternalServerError, ErrTypeInternal, err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	s.writeJSON(w, http.StatusOK, EventsResponse{Events: entries})
}
