package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRTDNSecretMiddleware(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusAccepted)
	})
	gate := RTDNSecretMiddleware("s3cret", zerolog.Nop())(next)

	// missing header
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rtdn/google-play", nil))
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("expected 401 without header, got %d reached=%v", rec.Code, reached)
	}

	// wrong secret
	req := httptest.NewRequest(http.MethodPost, "/rtdn/google-play", nil)
	req.Header.Set(RTDNSecretHeader, "wrong")
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("expected 401 for wrong secret, got %d reached=%v", rec.Code, reached)
	}

	// exact match
	req = httptest.NewRequest(http.MethodPost, "/rtdn/google-play", nil)
	req.Header.Set(RTDNSecretHeader, "s3cret")
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted || !reached {
		t.Fatalf("expected request to pass with matching secret, got %d reached=%v", rec.Code, reached)
	}
}

func TestRTDNSecretMiddlewareEmptySecretRejects(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusAccepted)
	})
	gate := RTDNSecretMiddleware("", zerolog.Nop())(next)

	// A request with no header would otherwise compare equal to the empty
	// configured secret; the gate must stay closed.
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rtdn/google-play", nil))
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("expected 401 with unconfigured secret, got %d reached=%v", rec.Code, reached)
	}

	req := httptest.NewRequest(http.MethodPost, "/rtdn/google-play", nil)
	req.Header.Set(RTDNSecretHeader, "")
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("expected 401 for empty header with unconfigured secret, got %d reached=%v", rec.Code, reached)
	}
}
