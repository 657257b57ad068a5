package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"pressline/internal/auth"
	"pressline/internal/jobs"
	"pressline/internal/logging"
	"pressline/internal/timeline"
)

const maxBodyBytes = 1 << 20

// JobService is the job operation surface served over HTTP.
type JobService interface {
	Create(ctx context.Context, in jobs.CreateInput, actor jobs.Actor) (*jobs.View, error)
	Get(ctx context.Context, id string) (*jobs.View, error)
	List(ctx context.Context, filter jobs.Filter) ([]*jobs.View, error)
	Update(ctx context.Context, id string, changes jobs.Changes, actor jobs.Actor) (*jobs.View, error)
	AddTimelineEvent(ctx context.Context, id string, in jobs.EventInput, actor jobs.Actor) (*jobs.View, error)
	Remove(ctx context.Context, id string, actor jobs.Actor) (*jobs.View, error)
}

// Identifier resolves the caller of a request.
type Identifier interface {
	Identify(r *http.Request) (jobs.Actor, error)
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires a Server.
type Options struct {
	Jobs     JobService
	Identity Identifier
	Health   Pinger
	Logger   *slog.Logger
	// Metrics, when set, is mounted at MetricsPath without authentication.
	Metrics     http.Handler
	MetricsPath string
}

// Server routes HTTP requests to the job service.
type Server struct {
	jobs     JobService
	identity Identifier
	health   Pinger
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer validates options and registers routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Jobs == nil {
		return nil, errors.New("api server requires a job service")
	}
	if opts.Identity == nil {
		return nil, errors.New("api server requires an identifier")
	}
	s := &Server{
		jobs:     opts.Jobs,
		identity: opts.Identity,
		health:   opts.Health,
		logger:   logging.NewComponentLogger(opts.Logger, "api"),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/jobs", s.authenticated(s.handleList))
	s.mux.HandleFunc("POST /api/jobs", s.authenticated(s.handleCreate))
	s.mux.HandleFunc("GET /api/jobs/{id}", s.authenticated(s.handleGet))
	s.mux.HandleFunc("PATCH /api/jobs/{id}", s.authenticated(s.handleUpdate))
	s.mux.HandleFunc("POST /api/jobs/{id}/timeline", s.authenticated(s.handleAddEvent))
	s.mux.HandleFunc("DELETE /api/jobs/{id}", s.authenticated(s.handleDelete))
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, opts.Metrics)
	}
	return s, nil
}

// Handler returns the root handler with request ids and access logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		s.mux.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.Debug("request served",
			logging.String(logging.FieldRequestID, requestID),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, jobs.Actor)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.identity.Identify(r)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrInvalidToken) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="pressline"`)
			}
			s.writeError(w, r, err)
			return
		}
		ctx := logging.WithUserID(auth.WithActor(r.Context(), actor), actor.UserID)
		next(w, r.WithContext(ctx), actor)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.log(r.Context()).Warn("health check failed", logging.Error(err))
			s.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: "record store unreachable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ jobs.Actor) {
	query := r.URL.Query()
	views, err := s.jobs.List(r.Context(), jobs.Filter{
		Status: jobs.Status(strings.TrimSpace(query.Get("status"))),
		Press:  strings.TrimSpace(query.Get("press")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []*jobs.View{}
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: views})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, actor jobs.Actor) {
	var req CreateJobRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.jobs.Create(r.Context(), req.input(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/jobs/"+view.ID)
	s.writeJSON(w, http.StatusCreated, JobResponse{Job: view})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, _ jobs.Actor) {
	view, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: view})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, actor jobs.Actor) {
	var req UpdateJobRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	changes := req.changes()
	if changes.Empty() {
		s.writeError(w, r, &requestError{msg: "request carries no changes"})
		return
	}
	view, err := s.jobs.Update(r.Context(), r.PathValue("id"), changes, actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: view})
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request, actor jobs.Actor) {
	var req EventRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.jobs.AddTimelineEvent(r.Context(), r.PathValue("id"), jobs.EventInput{
		Timestamp: req.Timestamp,
		Type:      timeline.EventType(req.Type),
		Details:   req.Details,
	}, actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, JobResponse{Job: view})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, actor jobs.Actor) {
	view, err := s.jobs.Remove(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: view})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{msg: "request body is empty"}
		}
		return &requestError{msg: fmt.Sprintf("malformed request body: %v", err)}
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	logger := s.log(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		logging.ErrorWithContext(logger, "request failed", "request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String("code", code),
			logging.Error(err),
		)
	default:
		logger.Debug("request rejected",
			logging.String("code", code),
			logging.Error(err),
		)
	}

	resp := ErrorResponse{Code: code, Error: msg}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		resp.Fields = reqErr.fields
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, s.logger)
}
