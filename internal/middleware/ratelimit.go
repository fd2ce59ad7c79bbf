package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"msgtree/internal/httputil"
)

const (
	defaultRPS   = 5
	defaultBurst = 10

	// limiterIdleTTL is how long a client's bucket survives without requests
	limiterIdleTTL = 10 * time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds one token bucket per API client.
// Buckets idle for longer than ttl are dropped on the next sweep.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       float64
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		m:         make(map[string]*limiterEntry),
		rps:       rps,
		burst:     burst,
		ttl:       limiterIdleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= p.ttl {
		p.sweep(now)
	}

	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	e := &limiterEntry{lim: rate.NewLimiter(rate.Limit(p.rps), p.burst), lastSeen: now}
	p.m[key] = e
	return e.lim
}

// sweep drops buckets idle for at least ttl
func (p *limiterPool) sweep(now time.Time) {
	for key, e := range p.m {
		if now.Sub(e.lastSeen) >= p.ttl {
			delete(p.m, key)
		}
	}
	p.lastSweep = now
}

// RateLimit throttles requests per caller API client. It must run after Authenticate;
// requests without a caller are keyed by remote address.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	pool := newLimiterPool(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if caller, ok := httputil.GetCaller(r); ok {
				key = caller.APIClientID.String()
			}

			if !pool.get(key).Allow() {
				retryAfter := int(math.Ceil(1 / pool.rps))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.RespondErrorWithExtras(w, http.StatusTooManyRequests, "rate limit exceeded", map[string]interface{}{
					"retry_after": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
