package middleware

import (
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    httpRequestsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "http_requests_total",
            Help: "Total number of HTTP requests",
        },
        []string{"method", "endpoint", "status"},
    )

    httpRequestDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "http_request_duration_seconds",
            Help:    "HTTP request duration in seconds",
            Buckets: prometheus.DefBuckets,
        },
        []string{"method", "endpoint"},
    )

    paymentsProcessedTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "payments_processed_total",
            Help: "Payments that reached a settled status",
        },
        []string{"status"},
    )

    requestTransitionsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "maintenance_requests_transitions_total",
            Help: "Maintenance request status changes",
        },
        []string{"from", "to"},
    )
)

func init() {
    prometheus.MustRegister(httpRequestsTotal)
    prometheus.MustRegister(httpRequestDuration)
    prometheus.MustRegister(paymentsProcessedTotal)
    prometheus.MustRegister(requestTransitionsTotal)
}

// Metrics counts requests and observes their latency per route template.
func Metrics() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            if err := next(c); err != nil {
                c.Error(err)
            }
            path := c.Path()
            if path == "" {
                path = "unmatched"
            }
            status := strconv.Itoa(c.Response().Status)
            httpRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
            httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
            return nil
        }
    }
}

// PrometheusHandler serves the default registry.
func PrometheusHandler() echo.HandlerFunc {
    return echo.WrapHandler(promhttp.Handler())
}

// PromRecorder feeds domain counters from the services into Prometheus.
type PromRecorder struct{}

func (PromRecorder) PaymentProcessed(status string) {
    paymentsProcessedTotal.WithLabelValues(status).Inc()
}

func (PromRecorder) RequestTransition(from, to string) {
    requestTransitionsTotal.WithLabelValues(from, to).Inc()
}
