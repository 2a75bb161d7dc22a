package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(r.Context(), w)
}

// handleReady reports whether the database answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"sessions":     map[string]any{"active": s.sessions.ActiveSessions(), "status": "ok"},
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients(), "status": "ok"},
	}

	if err := s.svc.Ready(ctx); err != nil {
		log.FromContext(ctx).Warn("Readiness check failed", log.FieldError, err)
		checks["database"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(r.Context(), w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerFailures)
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", limitMetrics.Rejected)
	metric("rate_limit_clients", "gauge", "Currently tracked rate limit clients", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged by the detector", securityMetrics.SuspiciousRequests)
	metric("sessions_active", "gauge", "Live CSRF sessions", s.sessions.ActiveSessions())
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func (s *Server) handleAPIIndex(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{"ok": true, "service": ServiceName}).Write(r.Context(), w)
}

// handleCSRF returns the session token, starting a session if needed.
func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := s.sessions.Ensure(w, r)
	if err != nil {
		writeError(r.Context(), w, "csrf", err)
		return
	}
	NewJSONResponse().
		Header("Cache-Control", "no-store").
		Body(map[string]string{"token": token}).
		Write(r.Context(), w)
}
