package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bbs_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"operation"})

	// MutationFailures counts board writes that failed while the user was still redirected.
	MutationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bbs_mutation_failures_total",
		Help: "Total number of failed board mutations by operation",
	}, []string{"operation"})

	// ArticleViews counts successful article page views.
	ArticleViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bbs_article_views_total",
		Help: "Total number of article views",
	})
)

var (
	promOnce     sync.Once
	promInstance *fiberprometheus.FiberPrometheus
)

// InitMetrics builds the fiberprometheus middleware for the given service name.
// The collectors live in the default registry, so only the first call registers them.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInstance = fiberprometheus.NewWithRegistry(prometheus.DefaultRegisterer, serviceName, "bbs", "http", nil)
	})
	return promInstance
}

// MetricsMiddleware records request counts and latencies, skipping the scrape endpoint itself.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		return prom.Middleware(c)
	}
}
