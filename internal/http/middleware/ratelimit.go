package middleware

// Per-caller token buckets (golang.org/x/time/rate). Callers are keyed by the
// user key when UserKey found one, otherwise by client IP. The limiter is
// process-local; run one replica or put a shared limiter in front when
// scaling out.

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "emogotchi",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the rate limiter, by route.",
}, []string{"route"})

func init() { prometheus.MustRegister(rateLimited) }

// KeyFunc maps a request to its bucket key.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys by "user:<KEY>" when a user key is present and by
// "ip:<addr>" otherwise.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(userKeyCtx); ok {
			if s := asString(v); s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per key. Buckets idle for longer
// than idleTTL are dropped by a sweep that runs at most once per idleTTL.
// Safe for concurrent use.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	key     KeyFunc
	exempt  map[string]struct{}
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter refills rps tokens per second into buckets of size burst
// (at least 1). Routes listed in exempt bypass the limiter.
func NewRateLimiter(rps float64, burst int, key KeyFunc, exempt ...string) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		key:     key,
		exempt:  pathSet(exempt),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func pathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// limiter returns the bucket for key, sweeping idle buckets first so a stale
// bucket is replaced rather than refreshed.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// allow takes a token for key. When none is available it returns how long
// until one would be.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()
	res := rl.limiter(key, now).ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

func (rl *RateLimiter) isExempt(c *gin.Context) bool {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	_, ok := rl.exempt[route]
	return ok
}

// Handler rejects over-limit requests with 429, a Retry-After in whole
// seconds, and the standard error body.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.isExempt(c) {
			c.Next()
			return
		}
		ok, wait := rl.allow(rl.key(c))
		if ok {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		rateLimited.WithLabelValues(route).Inc()

		secs := int(math.Ceil(wait.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
