package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/circuitbreaker"
	"github.com/lalithlochan/rentals/internal/redis"
)

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		expected   string
	}{
		{"X-Forwarded-For", "1.2.3.4", "", "5.6.7.8:1234", "ip:1.2.3.4"},
		{"X-Forwarded-For chain uses first hop", "1.2.3.4, 10.0.0.1", "", "5.6.7.8:1234", "ip:1.2.3.4"},
		{"X-Real-IP", "", "1.2.3.4", "5.6.7.8:1234", "ip:1.2.3.4"},
		{"RemoteAddr fallback", "", "", "5.6.7.8:1234", "ip:5.6.7.8:1234"},
		{"Forwarded takes precedence", "1.1.1.1", "2.2.2.2", "3.3.3.3:1234", "ip:1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			req.RemoteAddr = tt.remoteAddr

			result := IPKeyFunc(req)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

type fakeLimiter struct {
	result *redis.RateLimitResult
	err    error
	keys   []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (*redis.RateLimitResult, error) {
	f.keys = append(f.keys, key)
	return f.result, f.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_NoLimiter(t *testing.T) {
	wrapped := RateLimitMiddleware(nil, nil, IPKeyFunc)(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_Allowed(t *testing.T) {
	limiter := &fakeLimiter{result: &redis.RateLimitResult{
		Allowed: true, Limit: 60, Remaining: 59, ResetAt: time.Now().Add(time.Minute),
	}}
	wrapped := RateLimitMiddleware(limiter, zap.NewNop(), IPKeyFunc)(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "9.9.9.9:1000"
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "60" || rec.Header().Get("X-RateLimit-Remaining") != "59" {
		t.Errorf("unexpected headers: %v", rec.Header())
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "ip:9.9.9.9:1000" {
		t.Errorf("keys = %v", limiter.keys)
	}
}

func TestRateLimitMiddleware_Rejected(t *testing.T) {
	limiter := &fakeLimiter{result: &redis.RateLimitResult{
		Allowed: false, Limit: 60, Remaining: 0, ResetAt: time.Now().Add(30 * time.Second),
	}}
	wrapped := RateLimitMiddleware(limiter, zap.NewNop(), IPKeyFunc)(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if errResp.Type != "rate_limit_exceeded" || errResp.Status != 429 {
		t.Errorf("unexpected body: %+v", errResp)
	}
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	wrapped := RateLimitMiddleware(limiter, zap.NewNop(), IPKeyFunc)(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass when limiter errors, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware_EmptyTokenDisables(t *testing.T) {
	wrapped := BearerAuthMiddleware("")(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("POST", "/test", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware_RejectsBody(t *testing.T) {
	wrapped := BearerAuthMiddleware("s3cret")(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("POST", "/test", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var resp TriggerError
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error != "unauthorized" {
		t.Fatalf("unexpected body %q (%v)", rec.Body.String(), err)
	}
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("email"), zap.NewNop())

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedState  string
	}{
		{"database reachable", nil, http.StatusOK, "ok"},
		{"database down", errors.New("dial tcp: refused"), http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthHandler(fakeHealth{err: tt.err}, zap.NewNop(), breaker)(rec, httptest.NewRequest("GET", "/health", nil))

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected %d, got %d", tt.expectedStatus, rec.Code)
			}
			var body struct {
				Status   string                 `json:"status"`
				Channels []circuitbreaker.Stats `json:"channels"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if body.Status != tt.expectedState {
				t.Errorf("status = %s", body.Status)
			}
			if len(body.Channels) != 1 || body.Channels[0].Channel != "email" || body.Channels[0].State != "closed" {
				t.Errorf("channels = %+v", body.Channels)
			}
		})
	}
}
