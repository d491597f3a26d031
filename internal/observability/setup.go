package observability

import (
	"context"
	"net/http"

	"github.com/mkravets/sales-insights-service/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup initializes logging, metrics and tracing, returning the tracer
// shutdown hook and the metrics handler to mount on the router.
func Setup(serviceName, otlpEndpoint string) (func(context.Context) error, http.Handler) {
	observability.InitLogger()
	observability.InitMetrics()
	tracerShutdown := observability.InitTracing(serviceName, otlpEndpoint)
	return tracerShutdown, promhttp.Handler()
}
