package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// withAuth requires a Bearer token matching NEURAL_TOKEN on every
// protected route. In debug mode with no token configured, auth is
// skipped — matching config.Load's relaxed requirement for local
// development.
func (s *server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.NeuralToken == "" && s.cfg.Debug {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.NeuralToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return r.URL.Query().Get("token")
}

// withCORS honors the configured origin allow-list. An empty allow-list
// means no cross-origin access, matching a same-origin-only deployment.
func (s *server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(s.cfg.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by the handler chain,
// since http.ResponseWriter doesn't expose it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMetrics records every request's method, path, status, and latency
// via the shared observability.Metrics HTTP counters.
func (s *server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes an RFC 9457 problem-details body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": message,
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ts":     time.Now().UTC(),
	})
}

// handleAgentSend implements POST /agents/:id/send. The mission runs in
// the background against the server's own context, not the request's —
// the HTTP response returns as soon as the mission is accepted, well
// before the mission finishes.
func (s *server) handleAgentSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	agentID, ok := pathSuffix(r.URL.Path, "/agents/", "/send")
	if !ok {
		writeError(w, http.StatusNotFound, "expected /agents/:id/send")
		return
	}

	var payload models.TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task payload: "+err.Error())
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	s.audit.LogAgentAction(r.Context(), agentID, "send", "mission accepted", map[string]any{
		"cluster_id": payload.ClusterID,
		"safe_mode":  payload.SafeMode,
	}, "")

	go func() {
		ctx, cancel := context.WithTimeout(s.bgCtx, 30*time.Minute)
		defer cancel()
		if _, err := s.engine.Run(ctx, agentID, payload); err != nil {
			s.logger.Error(ctx, "mission run failed", "agent_id", agentID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"agent_id": agentID,
	})
}

// pathSuffix extracts the path segment between prefix and suffix, e.g.
// pathSuffix("/agents/alpha/send", "/agents/", "/send") -> ("alpha", true).
func pathSuffix(path, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if middle == "" || strings.Contains(middle, "/") {
		return "", false
	}
	return middle, true
}

func (s *server) handleOversightPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Gate.Pending())
}

func (s *server) handleOversightLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Gate.Ledger())
}

// handleOversightDecide implements POST /oversight/:id/decide.
func (s *server) handleOversightDecide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	entryID, ok := pathSuffix(r.URL.Path, "/oversight/", "/decide")
	if !ok {
		writeError(w, http.StatusNotFound, "expected /oversight/:id/decide")
		return
	}

	var body struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid decision body: "+err.Error())
		return
	}

	if err := s.engine.Gate.Decide(entryID, body.Approved); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.audit.LogPermissionDecision(r.Context(), body.Approved, "oversight", entryID, "decide", "", "")
	writeJSON(w, http.StatusOK, map[string]any{"status": "decided", "id": entryID, "approved": body.Approved})
}

func (s *server) handleEngineKill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if err := s.engine.Kill(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

func (s *server) handleEngineShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.engine.Shutdown()
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutdown"})
	go func() {
		time.Sleep(200 * time.Millisecond)
		s.bgCancel()
		if s.http != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = s.http.Shutdown(shutdownCtx)
		}
	}()
}
