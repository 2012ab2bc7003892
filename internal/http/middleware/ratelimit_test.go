package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/storefront-api/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Requests: 2,
		Window:   time.Minute,
		Logger:   discardLogger(),
	})(okHandler())

	wantStatus := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, want := range wantStatus {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != want {
			t.Errorf("request %d: got status %d, want %d", i+1, w.Code, want)
		}
	}

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.168.1.2:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client: got status %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Requests: 2, Window: time.Minute})(okHandler())

	limited := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 18 {
		t.Errorf("rate limited %d of 20 requests from one socket, want 18", limited)
	}
}

func TestRateLimit_BehindRealIP(t *testing.T) {
	handler := chimiddleware.RealIP(RateLimit(RateLimitConfig{Requests: 1, Window: time.Minute})(okHandler()))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if got := send("203.0.113.9"); got != http.StatusOK {
		t.Fatalf("first request: got status %d, want %d", got, http.StatusOK)
	}
	if got := send("203.0.113.9"); got != http.StatusTooManyRequests {
		t.Errorf("same client: got status %d, want %d", got, http.StatusTooManyRequests)
	}
	if got := send("203.0.113.10"); got != http.StatusOK {
		t.Errorf("other client via proxy: got status %d, want %d", got, http.StatusOK)
	}
}

func TestNoRateLimit(t *testing.T) {
	handler := NoRateLimit()(okHandler())

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		if w.Code != http.StatusOK {
			t.Errorf("Request %d: got status %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestCreateRateLimiters(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.RateLimitConfig
		wantLimit bool
	}{
		{
			name: "disabled",
			cfg:  config.RateLimitConfig{Enabled: false, LoginRequests: 1, LoginWindow: time.Minute},
		},
		{
			name:      "enabled",
			cfg:       config.RateLimitConfig{Enabled: true, LoginRequests: 1, LoginWindow: time.Minute, RefreshRequests: 1, RefreshWindow: time.Minute},
			wantLimit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiters := CreateRateLimiters(tt.cfg, discardLogger())
			for _, name := range []string{"login", "refresh"} {
				if limiters[name] == nil {
					t.Fatalf("%s limiter should not be nil", name)
				}
			}

			handler := limiters["login"](okHandler())
			var last int
			for i := 0; i < 3; i++ {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
				last = w.Code
			}
			if limited := last == http.StatusTooManyRequests; limited != tt.wantLimit {
				t.Errorf("limited = %v, want %v", limited, tt.wantLimit)
			}
		})
	}
}
