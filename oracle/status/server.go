package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/GPTx-global/rngoracle/oracle/health"
	"github.com/GPTx-global/rngoracle/oracle/log"
)

// Server exposes /status, /health and /metrics.
type Server struct {
	tracker *Tracker
	checker *health.HealthChecker
	server  *http.Server
}

func NewServer(listen string, allowedOrigins []string, tracker *Tracker, checker *health.HealthChecker) *Server {
	s := &Server{tracker: tracker, checker: checker}

	s.server = &http.Server{
		Addr:              listen,
		Handler:           s.Handler(allowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler builds the router. Exported for tests.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})

	return c.Handler(router)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	log.Infof("status server listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("status server shutdown error: %v", err)
	}

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"healthy": true, "checks": map[string]health.HealthStatus{}}
	code := http.StatusOK

	if s.checker != nil {
		healthy := s.checker.IsHealthy()
		body["healthy"] = healthy
		body["checks"] = s.checker.GetStatus()
		if !healthy {
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}
