package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promOnce     sync.Once
	promInstance *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the HTTP metrics middleware instance. The underlying
// collectors register on the default registry, so the instance is shared
// across all servers in the process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInstance = fiberprometheus.New(serviceName)
	})
	return promInstance
}

// MetricsMiddleware adapts the fiberprometheus instance into a fiber handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}

// ActiveWebSockets is the gauge of currently open WebSocket connections.
var ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "duet_active_websockets",
	Help: "Number of currently open WebSocket connections",
})

// AuthFailures counts rejected authentication attempts by reason.
var AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "duet_auth_failures_total",
	Help: "Total rejected authentication attempts by reason",
}, []string{"reason"})
