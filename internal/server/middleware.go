package server

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"
)

// securityHeadersMiddleware adds security headers to all responses
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// HSTS (only if TLS is enabled)
		if s.config.Server.IsTLSEnabled() {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS with configurable allowed origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.config.Server.CORSAllowOrigin

		if origin != "*" {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin != "" && requestOrigin != origin {
				// Origin not allowed - don't set CORS headers
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-CRON-KEY")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	count    int
	lastSeen time.Time
}

// ipLimiter counts requests per IP over a one-minute window
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
}

func newIPLimiter(limitPerMinute int) *ipLimiter {
	if limitPerMinute == 0 {
		limitPerMinute = 100
	}
	return &ipLimiter{visitors: make(map[string]*visitor), limit: limitPerMinute}
}

// allow records a request from ip and reports whether it is within the limit
func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	switch {
	case !exists:
		l.visitors[ip] = &visitor{count: 1, lastSeen: now}
	case now.Sub(v.lastSeen) > time.Minute:
		v.count = 1
		v.lastSeen = now
	default:
		v.count++
		v.lastSeen = now
		if v.count > l.limit {
			return false
		}
	}
	return true
}

// sweep drops visitors idle for more than a minute
func (l *ipLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > time.Minute {
			delete(l.visitors, ip)
		}
	}
}

// run sweeps on every tick until done is closed
func (l *ipLimiter) run(done <-chan struct{}, tick <-chan time.Time) {
	for {
		select {
		case <-done:
			return
		case now := <-tick:
			l.sweep(now)
		}
	}
}

// rateLimitMiddleware implements simple IP-based rate limiting. The
// cleanup goroutine exits when the server is closed.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	limiter := newIPLimiter(s.config.Server.RateLimitRPM)

	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		limiter.run(s.done, ticker.C)
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		// RealIP has already rewritten RemoteAddr from X-Forwarded-For
		if !limiter.allow(r.RemoteAddr, time.Now()) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// noStoreMiddleware marks responses as uncacheable
func noStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// cronKeyMiddleware rejects requests without the configured cron key. The
// key travels in X-CRON-KEY; GET requests may use ?cronKey= instead. An
// unset key rejects every request.
func (s *Server) cronKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-CRON-KEY")
		if r.Method == http.MethodGet {
			if q := r.URL.Query().Get("cronKey"); q != "" {
				key = q
			}
		}

		expected := s.config.Cron.Key
		if expected == "" || key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
