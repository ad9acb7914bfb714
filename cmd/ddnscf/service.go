package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthBody = "ddns is running"

// service is an HTTP listener that runs next to the sync worker.
type service struct {
	*http.Server
	name string
	log  *zap.Logger
}

func newService(name, addr string, handler http.Handler, log *zap.Logger) *service {
	return &service{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 3 * time.Second,
			ReadTimeout:       3 * time.Second,
			WriteTimeout:      3 * time.Second,
		},
		name: name,
		log:  log.With(zap.String("service", name)),
	}
}

// newHealthService answers liveness probes regardless of how the sync cycles are doing.
func newHealthService(addr string, log *zap.Logger) *service {
	return newService("health", addr, healthHandler(), log)
}

func newMetricsService(addr string, log *zap.Logger) *service {
	return newService("prometheus", addr, promhttp.Handler(), log)
}

func healthHandler() http.Handler {
	mux := http.NewServeMux()
	h := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, healthBody)
	}
	mux.HandleFunc("/", h)
	return mux
}

// Start blocks until the listener stops.
func (s *service) Start() {
	s.log.Info("service is running", zap.String("endpoint", s.Addr))
	err := s.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("service couldn't start on configured port", zap.Error(err))
	}
}

func (s *service) ShutDown() {
	s.log.Info("shutting down service", zap.String("endpoint", s.Addr))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		s.log.Error("can't shut service down", zap.Error(err))
	}
}
