// Package httpserver wraps net/http with the router conventions every service uses.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	HTTP *http.Server
	log  *zap.Logger
}

type Options struct {
	Addr         string
	ServiceName  string
	Logger       *zap.Logger
	Router       chi.Router
	WriteTimeout time.Duration
}

func New(opts Options) *Server {
	if opts.Router == nil {
		opts.Router = chi.NewRouter()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		// Feed composition fans out to upstream providers; leave headroom over their timeouts.
		opts.WriteTimeout = 30 * time.Second
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           opts.Router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{HTTP: srv, log: opts.Logger.With(zap.String("service", opts.ServiceName))}
}

// Start blocks serving until Shutdown. The ctx argument matches run.Unit.
func (s *Server) Start(_ context.Context) error {
	s.log.Info("http server starting", zap.String("addr", s.HTTP.Addr))
	return s.HTTP.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server stopping")
	return s.HTTP.Shutdown(ctx)
}
