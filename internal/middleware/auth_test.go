package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil)
	r.Header.Set("Authorization", "Bearer test-secret")

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_RejectsInvalidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	for _, header := range []string{"", "Bearer wrong", "test-secret", "Basic dGVzdA=="} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}

		m.Middleware(next).ServeHTTP(w, r)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want %d", header, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddleware_DisabledWithoutToken(t *testing.T) {
	m := NewAuthMiddleware("")
	if m.Enabled() {
		t.Fatalf("middleware must be disabled for empty token")
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil)
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}
