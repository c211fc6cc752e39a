package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per key within fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// rateRule binds a route to its quota and to the identity requests are counted against.
type rateRule struct {
	route    string
	limit    int
	window   time.Duration
	identity func(*http.Request) string
}

var (
	signUpRule         = rateRule{"sign-up", rateLimitSignup, rateWindowDefault, byClientIP}
	signInRule         = rateRule{"sign-in", rateLimitLogin, rateWindowDefault, byClientIP}
	signOutRule        = rateRule{"sign-out", rateLimitUserWrite, rateWindowDefault, byUser}
	changePasswordRule = rateRule{"change-password", rateLimitUserWrite, rateWindowDefault, byUser}
	gemstonesRule      = rateRule{"gemstones", rateLimitUserRead, rateWindowDefault, byUser}
	gemstoneRule       = rateRule{"gemstone", rateLimitUserWrite, rateWindowDefault, byUser}
	gemstoneWSRule     = rateRule{"ws-gemstones", rateLimitStream, rateWindowRealtime, byUser}
	gemstoneEventsRule = rateRule{"events-gemstones", rateLimitStream, rateWindowRealtime, byUser}
)

// limited enforces rule before next. Requests without a resolvable identity
// are counted against the client address.
func (r *Router) limited(rule rateRule, next http.HandlerFunc) http.HandlerFunc {
	if rule.limit <= 0 || r.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, req *http.Request) {
		id := rule.identity(req)
		if id == "" {
			id = byClientIP(req)
		}
		d := r.limiter.Allow(rule.route+"|"+id, rule.limit, rule.window)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rule.limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(max(rule.limit-d.count, 0)))
		if !d.windowEnd.IsZero() {
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.windowEnd.Unix(), 10))
		}
		if d.allowed {
			next(w, req)
			return
		}

		kind, _, _ := strings.Cut(id, ":")
		r.metrics.rateLimitHit(rule.route, kind)
		if !d.windowEnd.IsZero() {
			wait := int(time.Until(d.windowEnd).Round(time.Second) / time.Second)
			h.Set("Retry-After", strconv.Itoa(max(wait, 1)))
		}
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	}
}

// limitedUser authenticates the request, then counts it against the caller.
func (r *Router) limitedUser(rule rateRule, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limited(rule, next))
}

func byUser(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.UserID != "" {
		return "user:" + info.UserID
	}
	return ""
}

func byClientIP(req *http.Request) string {
	if ip := clientIP(req); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(req *http.Request) string {
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	addr := strings.TrimSpace(req.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// pruneEvery is how often windowCounter drops finished windows while serving Allow.
const pruneEvery = 5 * time.Minute

// windowCounter is a process-local limiter. Windows are aligned to multiples
// of their length, so every key shares the same reset instant.
type windowCounter struct {
	mu         sync.Mutex
	now        func() time.Time
	windows    map[string]*rateWindow
	lastPruned time.Time
}

type rateWindow struct {
	ends time.Time
	hits int
}

// NewMemoryRateLimiter returns a limiter that keeps its counters in memory.
func NewMemoryRateLimiter() RateLimiter {
	return newWindowCounter(time.Now)
}

func newWindowCounter(now func() time.Time) *windowCounter {
	return &windowCounter{
		now:        now,
		windows:    make(map[string]*rateWindow),
		lastPruned: now(),
	}
}

func (c *windowCounter) Allow(key string, limit int, length time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if length <= 0 {
		length = rateWindowDefault
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastPruned) >= pruneEvery {
		c.prune(now)
	}

	w, ok := c.windows[key]
	if !ok || !now.Before(w.ends) {
		w = &rateWindow{ends: now.Truncate(length).Add(length)}
		c.windows[key] = w
	}
	if w.hits >= limit {
		return rateDecision{count: w.hits, windowEnd: w.ends}
	}
	w.hits++
	return rateDecision{allowed: true, count: w.hits, windowEnd: w.ends}
}

// prune must be called with mu held.
func (c *windowCounter) prune(now time.Time) {
	for key, w := range c.windows {
		if !now.Before(w.ends) {
			delete(c.windows, key)
		}
	}
	c.lastPruned = now
}

// Close is a no-op; windowCounter owns no goroutines.
func (c *windowCounter) Close() {}
