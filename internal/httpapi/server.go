// Package httpapi exposes the job queue over HTTP: submission, status,
// lifecycle control, runtime settings, and an SSE progress stream.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/transtools/doctrans/internal/config"
	"github.com/transtools/doctrans/internal/formats"
	"github.com/transtools/doctrans/internal/jobs"
)

type settingsStore interface {
	GetRuntimeSettings(ctx context.Context) (config.RuntimeSettings, bool, error)
	UpdateRuntimeSettings(ctx context.Context, next config.RuntimeSettings) error
}

type Server struct {
	queue    *jobs.Queue
	registry *formats.Registry
	settings settingsStore

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithSettingsStore enables the GET/PUT /api/settings surface.
func WithSettingsStore(store settingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func NewServer(queue *jobs.Queue, registry *formats.Registry, opts ...Option) *Server {
	s := &Server{
		queue:    queue,
		registry: registry,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/", s.handleJobByID)
	s.mux.HandleFunc("/api/formats", s.handleFormats)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
}
