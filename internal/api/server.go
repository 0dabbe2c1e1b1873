// Package api serves a read-only JSON view of the care home alongside the
// metrics endpoint.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-carehome/internal/app"
	"go.uber.org/zap"
)

type Server struct {
	log *zap.Logger
	app *app.App
	srv *http.Server
}

// NewServer registers the API routes on mux, which may already carry other
// routes such as /metrics. Requests are written to accessLog in combined
// log format.
func NewServer(logger *zap.Logger, mux *http.ServeMux, a *app.App, addr string, accessLog io.Writer) *Server {
	s := &Server{
		log: logger,
		app: a,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/summary", s.getSummary)
	mux.HandleFunc("GET /api/digest", s.getDigest)
	mux.HandleFunc("GET /api/residents", s.getResidents)
	mux.HandleFunc("GET /api/residents/{id}/feed", s.getResidentFeed)

	var h http.Handler = s.errorHandler(mux)
	h = handlers.CombinedLoggingHandler(accessLog, h)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: h,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	s.log.Info("api_server_starting", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("api_server_stopping")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info("api_server_stopped")
	return nil
}
