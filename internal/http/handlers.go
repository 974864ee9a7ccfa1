package http

import (
	"context"
	"net/http"
	"time"

	"walletize/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.NewFields().WithError(err, "").ToSlice()...)
			checks["storage"] = "failed"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request, security and rate limit counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":          int64(time.Since(s.started).Seconds()),
		"requests_total":          traceMetrics.TotalRequests,
		"server_errors_total":     traceMetrics.ServerErrors,
		"last_response_time_us":   traceMetrics.AverageResponseTime,
		"suspicious_requests":     securityMetrics.SuspiciousRequests,
		"invalid_ip_attempts":     securityMetrics.InvalidIPAttempts,
		"rate_limit_hits":         rateLimitMetrics.TotalHits,
		"rate_limit_active_users": rateLimitMetrics.ClientCount,
	})
}
