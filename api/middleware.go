package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coreybb/rhymera/webutil"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// IPLimiter rate-limits requests per client IP. Idle IPs are forgotten after a few windows.
type IPLimiter struct {
	limiters *cache.Cache
	every    time.Duration
	burst    int
}

// NewIPLimiter allows perMinute requests per IP with a burst of the same size.
func NewIPLimiter(perMinute int) *IPLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &IPLimiter{
		limiters: cache.New(5*time.Minute, 10*time.Minute),
		every:    time.Minute / time.Duration(perMinute),
		burst:    perMinute,
	}
}

func (l *IPLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		l.limiters.SetDefault(ip, v)
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Every(l.every), l.burst)
	if err := l.limiters.Add(ip, lim, cache.DefaultExpiration); err != nil {
		// Another request for the same IP got there first.
		if v, ok := l.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

func (l *IPLimiter) Allow(ip string) bool {
	return l.limiterFor(ip).Allow()
}

// Middleware answers 429 once an IP runs out of requests. It expects middleware.RealIP upstream.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.Allow(ip) {
			slog.Warn("Rate limit exceeded", "component", "api", "ip", ip, "path", r.URL.Path)
			w.Header().Set(webutil.HeaderRetryAfter, strconv.Itoa(int(l.every.Seconds())+1))
			webutil.RespondWithError(w, http.StatusTooManyRequests, "Too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
