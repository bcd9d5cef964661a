package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth is the liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.startedAt).String(),
	})
}

// handleReady reports readiness with per-dependency detail.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.api == nil {
		checks["expense_service"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["expense_service"] = "ok"
	}

	checks["stats_cache"] = map[string]any{
		"entries": s.statsCache.Len(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	respondJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.tracer.GetMetrics()
	created := atomic.LoadInt64(&s.metrics.expensesCreated)
	hits := atomic.LoadInt64(&s.metrics.cacheHits)
	misses := atomic.LoadInt64(&s.metrics.cacheMisses)
	uptime := time.Since(s.metrics.startedAt)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_errors_total HTTP responses by error class\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total{class=\"4xx\"} %d\n", traceMetrics.ClientErrors)
	fmt.Fprintf(w, "http_errors_total{class=\"5xx\"} %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP expenses_created_total Total number of expenses created\n")
	fmt.Fprintf(w, "# TYPE expenses_created_total counter\n")
	fmt.Fprintf(w, "expenses_created_total %d\n\n", created)

	fmt.Fprintf(w, "# HELP stats_cache_hits_total Quick-stats cache hits\n")
	fmt.Fprintf(w, "# TYPE stats_cache_hits_total counter\n")
	fmt.Fprintf(w, "stats_cache_hits_total %d\n\n", hits)

	fmt.Fprintf(w, "# HELP stats_cache_misses_total Quick-stats cache misses\n")
	fmt.Fprintf(w, "# TYPE stats_cache_misses_total counter\n")
	fmt.Fprintf(w, "stats_cache_misses_total %d\n\n", misses)

	fmt.Fprintf(w, "# HELP stats_cache_entries Current quick-stats cache entries\n")
	fmt.Fprintf(w, "# TYPE stats_cache_entries gauge\n")
	fmt.Fprintf(w, "stats_cache_entries %d\n\n", s.statsCache.Len())

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.limiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}
