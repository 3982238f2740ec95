package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_ratelimit_rejected_total",
		Help: "Total requests rejected by the rate limiter, by scope",
	}, []string{"scope"}) // scope: ip, node, endpoint

	RateLimitRedisErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vms_ratelimit_redis_errors_total",
		Help: "Total rate limiter checks that failed because Redis was unavailable",
	})
)
