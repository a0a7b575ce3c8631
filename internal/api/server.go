// Package api exposes the interview service over HTTP.
//
// Routes:
//
//	POST /interview/start                                  create a session
//	POST /interview/answer/{sessionId}/{questionIndex}     submit a recorded answer
//	POST /interview/complete/{sessionId}                   finish and fetch the report
//	GET  /interview/session/{sessionId}                    session snapshot
//	GET  /interview/live/{sessionId}                       live audio over WebSocket
//	POST /skills/extract                                   skills from a job description
//	POST /questions/generate                               one question per skill
//	GET  /healthz, /readyz, /metrics
//
// Errors are rendered as {"error": "..."}. Sentinel errors from
// [interview] map to 400, 404 and 409; anything else is a 500.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrWong99/skillprobe/internal/health"
	"github.com/MrWong99/skillprobe/internal/interview"
	"github.com/MrWong99/skillprobe/internal/live"
	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/internal/skill"
)

// Default request limits.
const (
	DefaultMaxUploadBytes = 25 << 20
	maxJSONBytes          = 1 << 20
	maxLiveMessageBytes   = 1 << 20
)

// errUnavailable marks endpoints whose backing collaborator is not configured.
var errUnavailable = errors.New("api: service unavailable")

// Analyzer extracts skills and writes questions. [skill.Analyzer]
// implements it.
type Analyzer interface {
	ExtractSkills(ctx context.Context, jobDescription string, limit int) ([]skill.Skill, error)
	GenerateQuestions(ctx context.Context, skills []skill.Skill) ([]string, error)
}

// Config holds the dependencies of a [Server].
type Config struct {
	// Manager is required.
	Manager *interview.Manager

	// Analyzer backs /skills/extract, /questions/generate and question
	// generation on start. Optional; those paths answer 503 without it.
	Analyzer Analyzer

	// Health serves /healthz and /readyz. Optional.
	Health *health.Handler

	// Metrics enables the observability middleware. Optional.
	Metrics *observe.Metrics

	// MetricsHandler serves /metrics. Optional.
	MetricsHandler http.Handler

	// GenerateQuestions generates questions on start when the request
	// carries none and does not say otherwise.
	GenerateQuestions bool

	// DefaultSkills are used on start when the request names no skills and
	// no job description.
	DefaultSkills []skill.Skill

	// ExtractLimit caps skills extracted on start from a job description.
	// Zero means [skill.DefaultExtractLimit].
	ExtractLimit int

	// MaxUploadBytes caps a recorded answer. Default 25 MiB.
	MaxUploadBytes int64

	// Live configures the harness behind each WebSocket stream.
	Live live.Config

	// OriginPatterns lists the origins allowed to open a live stream, in
	// the syntax of websocket.AcceptOptions. Empty allows same-origin only.
	OriginPatterns []string
}

// Server is the HTTP surface. It is safe for concurrent use.
type Server struct {
	cfg Config
}

// New validates cfg and returns a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("api: %w: manager is required", interview.ErrConfiguration)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{cfg: cfg}, nil
}

// Handler returns the routed handler wrapped in the observability
// middleware when metrics are configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /interview/start", s.handleStart)
	mux.HandleFunc("POST /interview/answer/{sessionId}/{questionIndex}", s.handleAnswer)
	mux.HandleFunc("POST /interview/complete/{sessionId}", s.handleComplete)
	mux.HandleFunc("GET /interview/session/{sessionId}", s.handleStatus)
	mux.HandleFunc("GET /interview/live/{sessionId}", s.handleLive)
	mux.HandleFunc("POST /skills/extract", s.handleExtract)
	mux.HandleFunc("POST /questions/generate", s.handleGenerate)
	if s.cfg.Health != nil {
		s.cfg.Health.Register(mux)
	}
	if s.cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.cfg.MetricsHandler)
	}

	if s.cfg.Metrics == nil {
		return mux
	}
	return observe.Middleware(s.cfg.Metrics)(mux)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, interview.ErrConfiguration), errors.Is(err, interview.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, interview.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

// decodeJSON reads a JSON body of at most maxJSONBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode request body: %v", interview.ErrInvalidArgument, err)
	}
	return nil
}
