package middleware

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/technosupport/vms-coordinator/internal/metrics"
	"github.com/technosupport/vms-coordinator/internal/ratelimit"
)

// Config mirrors spec.md's rate-limit policy knobs, repurposed for a
// node-scoped coordination substrate: a global bucket keyed by client IP,
// a node bucket keyed by the authenticated node identity, and a
// per-endpoint map for the most expensive RPCs (lease acquire in
// particular, since a denied acquire is cheap for the caller to retry in
// a tight loop).
type Config struct {
	GlobalIP  ratelimit.LimitConfig            `yaml:"global_ip"`
	Node      ratelimit.LimitConfig            `yaml:"node"`
	Endpoints map[string]ratelimit.LimitConfig `yaml:"endpoints"`
}

// NodeIDFunc extracts the authenticated node identity from a request's
// context, if any. The coordinator package's requireNodeCredential
// middleware populates this context value; it is injected here as a
// function rather than imported directly, so this middleware carries no
// dependency on nodeauth or the coordinator package.
type NodeIDFunc func(ctx context.Context) string

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	config  Config
	nodeID  NodeIDFunc
}

func NewRateLimitMiddleware(l *ratelimit.Limiter, cfg Config, nodeID NodeIDFunc) *RateLimitMiddleware {
	if nodeID == nil {
		nodeID = func(context.Context) string { return "" }
	}
	return &RateLimitMiddleware{limiter: l, config: cfg, nodeID: nodeID}
}

// GlobalLimiter applies the IP bucket, then (if the caller is
// authenticated) the node bucket, then any endpoint-specific bucket for
// the current path. Lease-mutating routes fail closed on a Redis outage —
// an unbounded retry storm from every node in the fleet is worse than a
// brief outage of the acquire/renew/release surface. Every other route
// fails open and only logs.
func (m *RateLimitMiddleware) GlobalLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ipHash := m.limiter.HashIP(ip)
		ipKey := fmt.Sprintf("rl:ip:%s", ipHash)

		decision, err := m.limiter.CheckRateLimit(r.Context(), ipKey, m.config.GlobalIP)
		if err == ratelimit.ErrRedisUnavailable {
			metrics.RateLimitRedisErrorsTotal.Inc()
			if isMutatingLeaseRoute(r.URL.Path) {
				log.Printf("ratelimit: redis unavailable, failing closed for %s", r.URL.Path)
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}
			log.Printf("ratelimit: redis unavailable, failing open for %s", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		} else if err != nil {
			log.Printf("ratelimit: error checking %s: %v", ipKey, err)
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			m.writeRateLimitHeaders(w, decision)
			metrics.RateLimitRejectedTotal.WithLabelValues("ip").Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		if nodeID := m.nodeID(r.Context()); nodeID != "" {
			nodeKey := fmt.Sprintf("rl:node:%s", nodeID)
			nDecision, err := m.limiter.CheckRateLimit(r.Context(), nodeKey, m.config.Node)
			if err == nil && !nDecision.Allowed {
				m.writeRateLimitHeaders(w, nDecision)
				metrics.RateLimitRejectedTotal.WithLabelValues("node").Inc()
				http.Error(w, "node rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		path := r.URL.Path
		if limitConfig, found := m.config.Endpoints[path]; found {
			epKey := fmt.Sprintf("rl:ep:%s:%s", ipHash, path)
			epDecision, err := m.limiter.CheckRateLimit(r.Context(), epKey, limitConfig)
			if err == nil && !epDecision.Allowed {
				m.writeRateLimitHeaders(w, epDecision)
				metrics.RateLimitRejectedTotal.WithLabelValues("endpoint").Inc()
				http.Error(w, "endpoint rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isMutatingLeaseRoute(path string) bool {
	return path == "/v1/leases/acquire" || path == "/v1/leases/renew" || path == "/v1/leases/release"
}

func (m *RateLimitMiddleware) writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
