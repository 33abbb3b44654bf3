package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector counts requests by outcome.
type MetricsCollector struct {
	requests       atomic.Int64
	clientErrors   atomic.Int64
	serverErrors   atomic.Int64
	upstreamErrors atomic.Int64
	rateLimited    atomic.Int64
}

// RequestMetrics is a copy of the collector's counters.
type RequestMetrics struct {
	Requests       int64 `json:"request_count"`
	ClientErrors   int64 `json:"client_error_count"`
	ServerErrors   int64 `json:"server_error_count"`
	UpstreamErrors int64 `json:"upstream_error_count"`
	RateLimited    int64 `json:"rate_limited_count"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// Middleware returns middleware that counts requests and errors.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requests.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		switch code := rw.statusCode; {
		case code == http.StatusTooManyRequests:
			mc.rateLimited.Add(1)
			mc.clientErrors.Add(1)
		case code == http.StatusBadGateway:
			mc.upstreamErrors.Add(1)
			mc.serverErrors.Add(1)
		case code >= 500:
			mc.serverErrors.Add(1)
		case code >= 400:
			mc.clientErrors.Add(1)
		}
	})
}

func (mc *MetricsCollector) Snapshot() RequestMetrics {
	return RequestMetrics{
		Requests:       mc.requests.Load(),
		ClientErrors:   mc.clientErrors.Load(),
		ServerErrors:   mc.serverErrors.Load(),
		UpstreamErrors: mc.upstreamErrors.Load(),
		RateLimited:    mc.rateLimited.Load(),
	}
}
