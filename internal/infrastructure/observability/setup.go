package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup initializes logging, metrics and tracing and returns the tracer
// shutdown function along with the Prometheus scrape handler.
func Setup(serviceName string) (func(context.Context) error, http.Handler) {
	InitLogger()
	InitMetrics()
	tracerShutdown := InitTracing(serviceName)
	return tracerShutdown, promhttp.Handler()
}
