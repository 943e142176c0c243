package metrics

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Code            = "metrics"
	shutdownTimeout = 5 * time.Second
)

// Server exposes the prometheus registry and a health endpoint.
type Server struct {
	listen string
	path   string
	log    logger.ILogger
	ready  atomic.Bool

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	stopped  bool
}

func NewServer(cfg *config.MetricsConfig, log logger.ILogger) *Server {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	return &Server{listen: cfg.Listen, path: path, log: log}
}

func (s *Server) String() string {
	return Code
}

func (s *Server) Hash() string {
	return s.listen + s.path
}

// SetReady flips /healthz between 503 and 200.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler serves the metrics path and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens and serves until Stop is called. It returns at once when
// Stop was called first.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return l.Close()
	}
	s.srv, s.listener = srv, l
	s.mu.Unlock()

	s.log.Infof("metrics server listening on %s", l.Addr())
	if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr is the bound address once Start is running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopped = true
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
