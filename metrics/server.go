package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dyndnsd/dyndnsd/tslog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the metrics and health endpoints, and the administrative
// force-check trigger.
type Server struct {
	srv    *http.Server
	logger *tslog.Logger
}

// NewServer creates a [*Server] listening on addr.
// force and forceAll back the POST /-/force endpoint.
func NewServer(addr string, force func(name string) bool, forceAll func(), logger *tslog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(force, forceAll),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the HTTP handler behind [Server].
// POST /-/force triggers a check of every record, or of the single record
// named by the "record" query parameter.
func NewHandler(force func(name string) bool, forceAll func()) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /-/force", func(w http.ResponseWriter, r *http.Request) {
		if name := r.URL.Query().Get("record"); name != "" {
			if !force(name) {
				http.Error(w, fmt.Sprintf("unknown record %q", name), http.StatusNotFound)
				return
			}
		} else {
			forceAll()
		}
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Failed to shut down metrics server", tslog.Err(err))
		}
	}()

	s.logger.Info("Started metrics server", slog.String("listen", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Metrics server failed", tslog.Err(err))
	}
}
