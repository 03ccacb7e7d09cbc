package middleware

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders_SetsHeaders(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/v1/symptoms")

	if err := SecurityHeaders(false)(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, kv := range securityHeaders {
		if got := rec.Header().Get(kv[0]); got != kv[1] {
			t.Errorf("%s: expected %q, got %q", kv[0], kv[1], got)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("expected no HSTS header when disabled")
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")

	SecurityHeaders(true)(ok)(c)

	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header when enabled")
	}
}

func TestSecurityHeaders_PropagatesHandlerError(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	want := errors.New("handler failed")

	err := SecurityHeaders(false)(func(c echo.Context) error { return want })(c)
	if err != want {
		t.Errorf("expected handler error, got %v", err)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected headers set even when the handler fails")
	}
}
