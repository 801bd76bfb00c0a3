package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// StorageErrors counts object store failures by driver and operation.
	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_storage_errors_total",
		Help: "Total number of object store errors",
	}, []string{"driver", "operation"})

	// LikeOperations counts like bookkeeping calls by operation and outcome.
	LikeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_like_operations_total",
		Help: "Total number of like operations",
	}, []string{"operation", "outcome"})
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector.
// The collector registers with the default registry, so it is built once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request metrics for every route.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}

// ObserveLike records the outcome of a like operation.
func ObserveLike(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LikeOperations.WithLabelValues(operation, outcome).Inc()
}
