package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"budgetcal/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady verifies the data backend answers within a few seconds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.svc.Store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.svc.Store.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["cache"] = map[string]any{
		"weeks_entries": s.weeksCache.Size(),
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	weeks := s.weeksCache.Stats()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, lines ...string) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
		for _, l := range lines {
			fmt.Fprintf(w, "%s%s\n", name, l)
		}
		fmt.Fprintln(w)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter",
		fmt.Sprintf(" %d", traceMetrics.TotalRequests))
	metric("http_response_time_avg_ms", "Average response time in milliseconds", "gauge",
		fmt.Sprintf(" %d", traceMetrics.AverageResponseTime.Milliseconds()))
	metric("forecasts_calculated_total", "Forecasts calculated through the API", "counter",
		fmt.Sprintf(" %d", atomic.LoadInt64(&s.appMetrics.forecastsCreated)))
	metric("recurring_changes_total", "Recurring expense writes through the API", "counter",
		fmt.Sprintf(" %d", atomic.LoadInt64(&s.appMetrics.recurringChanges)))
	metric("transactions_created_total", "Transactions created through the API", "counter",
		fmt.Sprintf(" %d", atomic.LoadInt64(&s.appMetrics.transactionsAdded)))
	metric("cache_hits_total", "Total cache hits", "counter",
		fmt.Sprintf("{cache=\"weeks\"} %d", weeks.Hits))
	metric("cache_misses_total", "Total cache misses", "counter",
		fmt.Sprintf("{cache=\"weeks\"} %d", weeks.Misses))
	metric("cache_entries", "Current cache entries", "gauge",
		fmt.Sprintf("{cache=\"weeks\"} %d", weeks.Entries))
	metric("rate_limit_hits_total", "Total rate limited requests", "counter",
		fmt.Sprintf(" %d", rateLimitMetrics.LimitedRequests))
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge",
		fmt.Sprintf(" %d", rateLimitMetrics.ClientCount))
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter",
		fmt.Sprintf(" %d", securityMetrics.SuspiciousRequests))
	metric("invalid_ip_attempts_total", "Client addresses that failed to parse", "counter",
		fmt.Sprintf(" %d", securityMetrics.InvalidIPAttempts))
	metric("uptime_seconds", "Application uptime in seconds", "gauge",
		fmt.Sprintf(" %.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

// fail logs err when it maps to a server error and writes the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
	}
	resp.Write(w)
}

// user resolves the acting user, writing a 400 when the header is malformed.
func (s *Server) user(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := UserID(r, s.opts.DefaultUserID)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, false
	}
	return id, true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := PathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, false
	}
	return id, true
}
