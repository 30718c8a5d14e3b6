// Package telemetry provides application-level observability for the credential service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<NEXIN_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router and
// is therefore absent from the OpenAPI/Swagger spec.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Session issuance counters (login, refresh)
//   - One-time token issuance and validation counters
//   - Token sweeper deletion counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/apps/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as app or token identifiers.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/nexin-gg/nexin-backend/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.OneTimeTokensValidatedTotal.WithLabelValues("success").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/apps/:id/tokens),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Session metrics — recorded by the account handlers.
//
// SessionsIssuedTotal is a CounterVec with label {method} ("register", "login",
// or "refresh") incremented once per access/refresh token pair issued.
//
// Example PromQL queries:
//   - Login rate:            rate(sessions_issued_total{method="login"}[5m])
//   - Refresh/login ratio:   sum(rate(sessions_issued_total{method="refresh"}[1h])) / sum(rate(sessions_issued_total{method="login"}[1h]))
//
// LoginFailuresTotal is a plain Counter incremented on every rejected login.
// Unknown identifiers and wrong passwords are counted together so the metric
// leaks nothing the API response doesn't.
//
// RefreshReuseDetectedTotal counts presentations of already-rotated refresh
// tokens. Any sustained nonzero rate warrants investigation, since legitimate
// clients never replay a rotated token.
var (
	SessionsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_issued_total",
			Help: "Total number of access/refresh token pairs issued, by method (register, login, refresh).",
		},
		[]string{"method"},
	)

	LoginFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_failures_total",
			Help: "Total number of rejected login attempts.",
		},
	)

	RefreshReuseDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_reuse_detected_total",
			Help: "Total number of refresh attempts using an already-rotated token.",
		},
	)
)

// One-time token metrics — recorded by the token handlers.
//
// OneTimeTokensIssuedTotal is a plain Counter incremented once per token issued.
// Supersessions count as issuance; the replaced token is not tracked separately.
//
// OneTimeTokensValidatedTotal is a CounterVec with label {result} taking values
// "success", "expired", "consumed", "invalid".  Exactly one validation per token
// can land in the success bucket.
//
// Example PromQL queries:
//   - Validation success ratio:  sum(rate(one_time_tokens_validated_total{result="success"}[5m])) / sum(rate(one_time_tokens_validated_total[5m]))
//   - Expired-token rate:        rate(one_time_tokens_validated_total{result="expired"}[5m])
var (
	OneTimeTokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "one_time_tokens_issued_total",
			Help: "Total number of one-time tokens issued.",
		},
	)

	OneTimeTokensValidatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "one_time_tokens_validated_total",
			Help: "Total number of one-time token validation attempts, by result (success, expired, consumed, invalid).",
		},
		[]string{"result"},
	)
)

// TokensSweptTotal is a CounterVec with label {kind} ("refresh" or "one_time")
// incremented by the token sweeper background job for every expired row deleted.
//
// Example PromQL queries:
//   - Sweep rate by kind:  rate(tokens_swept_total[1h])
var TokensSweptTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tokens_swept_total",
		Help: "Total number of expired tokens deleted by the sweeper, by kind (refresh, one_time).",
	},
	[]string{"kind"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <NEXIN_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
