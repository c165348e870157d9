package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Togather-Foundation/devconnector/internal/api/problem"
	"github.com/Togather-Foundation/devconnector/internal/config"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	// TierUser applies to authenticated routes and is keyed by user id.
	TierUser RateLimitTier = "user"
	// TierLogin guards credential endpoints: a burst of N per 15 minutes.
	TierLogin RateLimitTier = "login"
)

const (
	loginWindow  = 15 * time.Minute
	limiterTTL   = 15 * time.Minute
	cleanupEvery = 5 * time.Minute
)

// RateLimiter hands out per-client token buckets for each tier.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	perWindow   map[RateLimitTier]int
	trusted     []*net.IPNet
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts a background sweep of idle buckets; call Stop on shutdown.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perWindow: map[RateLimitTier]int{
			TierPublic: cfg.PublicPerMinute,
			TierUser:   cfg.UserPerMinute,
			TierLogin:  cfg.LoginPer15Minutes,
		},
		trusted:     parseCIDRs(cfg.TrustedProxyCIDRs),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Limit returns middleware enforcing tier. TierUser must sit behind
// RequireAuth so the bucket is per account. A nil limiter passes every
// request through.
func (rl *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.clientKey(r)
			if tier == TierUser {
				if userID, ok := UserIDFromContext(r.Context()); ok {
					key = "user:" + userID
				}
			}

			limiter := rl.limiter(tier, key)
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter(tier).Seconds())))
				problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Too many requests, please try again later", nil, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func retryAfter(tier RateLimitTier) time.Duration {
	if tier == TierLogin {
		return 3 * time.Minute
	}
	return time.Minute
}

func (rl *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := rl.perWindow[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[lookup]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	window := time.Minute
	if tier == TierLogin {
		window = loginWindow
	}
	limiter := rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	rl.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterTTL {
			delete(rl.limiters, key)
		}
	}
}

// clientKey is the caller's IP. Forwarding headers count only when the
// connection comes from a trusted proxy, so clients cannot spoof them.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if rl.isTrustedProxy(remoteIP) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			return strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	return remoteIP
}

func (rl *RateLimiter) isTrustedProxy(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range rl.trusted {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(values []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, value := range values {
		if _, cidr, err := net.ParseCIDR(strings.TrimSpace(value)); err == nil {
			nets = append(nets, cidr)
		}
	}
	return nets
}
