package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/config"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/observability"
)

// Setup wires logs, metrics and traces. The returned handler serves the
// Prometheus registry.
func Setup(ctx context.Context, serviceName string, cfg *config.Config) (func(context.Context) error, http.Handler) {
	observability.InitLogger(cfg.LogLevel)
	observability.InitMetrics()
	tracerShutdown := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	return tracerShutdown, promhttp.Handler()
}
