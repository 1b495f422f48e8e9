package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/config"
)

func TestIPLimiterWindow(t *testing.T) {
	l := newIPLimiter(2)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	if !l.allow("1.2.3.4", now) || !l.allow("1.2.3.4", now) {
		t.Fatal("first two requests should pass")
	}
	if l.allow("1.2.3.4", now) {
		t.Fatal("third request within a minute should be limited")
	}
	if !l.allow("5.6.7.8", now) {
		t.Fatal("other IPs have their own budget")
	}
	if !l.allow("1.2.3.4", now.Add(61*time.Second)) {
		t.Fatal("budget should reset after a minute")
	}

	l.sweep(now.Add(3 * time.Minute))
	if len(l.visitors) != 0 {
		t.Fatalf("sweep left %d visitors", len(l.visitors))
	}
}

func TestIPLimiterRunStopsOnDone(t *testing.T) {
	l := newIPLimiter(1)
	done := make(chan struct{})
	tick := make(chan time.Time)
	exited := make(chan struct{})

	go func() {
		l.run(done, tick)
		close(exited)
	}()

	l.allow("1.2.3.4", time.Unix(0, 0))
	tick <- time.Unix(0, 0).Add(2 * time.Minute)
	close(done)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not exit after close")
	}
	if len(l.visitors) != 0 {
		t.Fatalf("tick should have swept idle visitors, %d left", len(l.visitors))
	}
}

func TestServerCloseIsIdempotent(t *testing.T) {
	s := New(&config.Config{Server: config.ServerConfig{CORSAllowOrigin: "*"}}, Deps{})
	s.Close()
	s.Close()

	select {
	case <-s.done:
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestRateLimitReturns429(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{CORSAllowOrigin: "*", RateLimitRPM: 1}}
	s := New(cfg, Deps{Sounds: &fakeSounds{}})
	t.Cleanup(s.Close)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/sounds", nil)
		rr := httptest.NewRecorder()
		s.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("request %d: status %d, want %d", i+1, rr.Code, want)
		}
	}
}
