package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/nexus/internal/config"
)

func TestPathSuffix(t *testing.T) {
	cases := []struct {
		path, prefix, suffix string
		want                 string
		ok                   bool
	}{
		{"/agents/alpha/send", "/agents/", "/send", "alpha", true},
		{"/agents//send", "/agents/", "/send", "", false},
		{"/agents/alpha/beta/send", "/agents/", "/send", "", false},
		{"/oversight/abc-123/decide", "/oversight/", "/decide", "abc-123", true},
		{"/oversight/decide", "/oversight/", "/decide", "", false},
	}
	for _, c := range cases {
		got, ok := pathSuffix(c.path, c.prefix, c.suffix)
		if got != c.want || ok != c.ok {
			t.Errorf("pathSuffix(%q, %q, %q) = (%q, %v), want (%q, %v)", c.path, c.prefix, c.suffix, got, ok, c.want, c.ok)
		}
	}
}

func TestOriginAllowed(t *testing.T) {
	if originAllowed(nil, "https://example.com") {
		t.Error("empty allow-list should allow nothing")
	}
	if !originAllowed([]string{"https://a.test", "https://b.test"}, "https://b.test") {
		t.Error("expected exact match to be allowed")
	}
	if !originAllowed([]string{"*"}, "https://anything.test") {
		t.Error("expected wildcard to allow any origin")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=qtok", nil)
	if got := bearerToken(r); got != "qtok" {
		t.Errorf("expected query token fallback, got %q", got)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/oversight/pending", nil)
	r2.Header.Set("Authorization", "Bearer htok")
	if got := bearerToken(r2); got != "htok" {
		t.Errorf("expected header token, got %q", got)
	}
}

func TestWithAuth_RejectsMissingToken(t *testing.T) {
	s := &server{cfg: &config.Config{NeuralToken: "secret"}}
	called := false
	h := s.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oversight/pending", nil))

	if called {
		t.Error("handler should not run without a valid token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestWithAuth_AcceptsValidToken(t *testing.T) {
	s := &server{cfg: &config.Config{NeuralToken: "secret"}}
	called := false
	h := s.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/oversight/pending", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("handler should run with a valid token")
	}
}

func TestWithAuth_DebugModeSkipsWhenTokenUnset(t *testing.T) {
	s := &server{cfg: &config.Config{Debug: true}}
	called := false
	h := s.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oversight/pending", nil))

	if !called {
		t.Error("debug mode with no configured token should skip auth")
	}
}
