package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the recorder's registry over HTTP, separate from the
// API listener so scrapes bypass auth and rate limits.
type Server struct {
	addr     string
	recorder *Recorder
	server   *http.Server
}

func NewServer(addr string, recorder *Recorder) *Server {
	return &Server{addr: addr, recorder: recorder}
}

// Start runs the listener in a goroutine and returns immediately.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		s.recorder.Registry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logrus.Infof("[METRICS] Serving Prometheus metrics on %s/metrics", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("[METRICS] Server stopped: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if s.server == nil {
		return
	}
	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("[METRICS] Shutdown error: %v", err)
	}
}
