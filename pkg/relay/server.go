package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tinyland-inc/relayclaw/pkg/correlate"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
)

// Server is the HTTP surface of the relay: the executor callback
// endpoint plus health and readiness probes.
type Server struct {
	resolver *Resolver
	stats    *Stats
	path     string
	ready    func(ctx context.Context) error
	srv      *http.Server
}

// NewServer mounts the callback handler at callbackPath. ready, when
// non-nil, gates /readyz (typically the store's Ping).
func NewServer(host string, port int, callbackPath string, resolver *Resolver, stats *Stats, ready func(ctx context.Context) error) *Server {
	if callbackPath == "" {
		callbackPath = "/v1/callback"
	}
	s := &Server{
		resolver: resolver,
		stats:    stats,
		path:     callbackPath,
		ready:    ready,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, s.handleCallback)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	logger.InfoCF("relay", "Callback server listening", map[string]any{
		"addr": s.srv.Addr,
		"path": s.path,
	})
	return s.srv.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// callbackPayload is the executor's delivery format. Unknown fields are
// kept (as raw JSON) so a configured body secret field can be scanned
// regardless of its name.
type callbackPayload struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	Error     string `json:"error"`
}

// handleCallback answers 200 for every resolvable request, including
// Unauthenticated and Unknown — signaling transport failure for those
// would only trigger the executor's retry storm. The single exception is
// store unavailability: 503 tells the executor to redeliver once the
// store is back, since the record was not consumed.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var payload callbackPayload
	if err := decodeFields(raw, &payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cb := &Callback{
		RequestID: payload.RequestID,
		Result: Result{
			Success: payload.Success,
			Output:  payload.Output,
			Error:   payload.Error,
		},
		RemoteAddr: r.RemoteAddr,
		Headers:    r.Header,
		Query:      r.URL.Query(),
		Fields:     stringFields(raw),
	}

	outcome, err := s.resolver.Resolve(r.Context(), cb)
	if err != nil {
		if errors.Is(err, correlate.ErrUnavailable) {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		// Notifier failures are operational noise, not the executor's
		// problem; the record is consumed either way.
		logger.ErrorCF("relay", "Callback resolution error", map[string]any{
			"request_id": payload.RequestID,
			"outcome":    outcome.String(),
			"error":      err.Error(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"outcome": outcome.String()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"stats":  s.stats.Snapshot(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ready")
}

func decodeFields(raw map[string]json.RawMessage, payload *callbackPayload) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, payload)
}

// stringFields extracts the string-valued top-level fields for the body
// secret scan.
func stringFields(raw map[string]json.RawMessage) map[string]string {
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			fields[k] = s
		}
	}
	return fields
}
