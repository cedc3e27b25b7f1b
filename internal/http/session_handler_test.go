package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"tyforge-web/internal/storage"
)

func TestSessionHandler_AnonymousSession(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)

	rec := env.do(t, http.MethodGet, "/api/session", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	sess := decodeBody(t, rec)["session"].(map[string]any)
	if sess["state"] != "anonymous" || sess["authenticated"] != false || sess["loading"] != false {
		t.Fatalf("unexpected session %v", sess)
	}
}

func TestSessionHandler_LoginDefaultRedirect(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)

	rec := env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com", "password": "secret"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["redirect"] != "/dashboard" {
		t.Fatalf("expected default redirect, got %v", body["redirect"])
	}
	sess := body["session"].(map[string]any)
	if sess["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %v", sess)
	}

	token, ok, _ := env.storage.Get(context.Background(), storage.TokenKey(testDeviceID))
	if !ok || token != "tok-1" {
		t.Fatalf("expected token persisted, got %q", token)
	}
	if body := rec.Body.String(); strings.Contains(body, "tok-1") {
		t.Fatalf("token must never reach the browser: %s", body)
	}
}

func TestSessionHandler_GuardThenLoginReturnsPendingRedirect(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)

	rec := env.do(t, http.MethodGet, "/api/orders", nil, map[string]string{"X-Page-Path": "/orders"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["redirect"]; got != "/login?from=%2Forders" {
		t.Fatalf("unexpected redirect %v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com", "password": "secret"}, nil)
	if got := decodeBody(t, rec)["redirect"]; got != "/orders" {
		t.Fatalf("expected pending redirect, got %v", got)
	}

	// la ruta pendiente se consume una sola vez
	env.do(t, http.MethodPost, "/api/logout", nil, nil)
	rec = env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com", "password": "secret"}, nil)
	if got := decodeBody(t, rec)["redirect"]; got != "/dashboard" {
		t.Fatalf("expected default redirect after consume, got %v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/orders", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once authenticated, got %d", rec.Code)
	}
}

func TestSessionHandler_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)

	rec := env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com", "password": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Invalid credentials" {
		t.Fatalf("expected backend detail, got %v", got)
	}
	rec = env.do(t, http.MethodGet, "/api/session", nil, nil)
	if sess := decodeBody(t, rec)["session"].(map[string]any); sess["state"] != "anonymous" {
		t.Fatalf("expected anonymous after failed login, got %v", sess)
	}
}

func TestSessionHandler_MissingCredentials(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)
	rec := env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionHandler_RateLimited(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, allowAll{allow: false})
	rec := env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com", "password": "secret"}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestSessionHandler_LogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)
	env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com", "password": "secret"}, nil)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/logout", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if sess := decodeBody(t, rec)["session"].(map[string]any); sess["authenticated"] != false {
			t.Fatalf("expected logged out, got %v", sess)
		}
	}
	if _, ok, _ := env.storage.Get(context.Background(), storage.TokenKey(testDeviceID)); ok {
		t.Fatalf("expected token removed")
	}
}

func TestSessionHandler_ExpiredTokenOnProtectedPageLogsOut(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)
	env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "asha@example.com", "password": "secret"}, nil)

	// otro proceso deja un token que el backend ya no acepta
	_ = env.storage.Set(context.Background(), storage.TokenKey(testDeviceID), "revoked")

	rec := env.do(t, http.MethodGet, "/api/orders", nil, map[string]string{"X-Page-Path": "/orders"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["redirect"]; got != "/login?from=%2Forders" {
		t.Fatalf("unexpected redirect %v", got)
	}
	rec = env.do(t, http.MethodGet, "/api/session", nil, nil)
	if sess := decodeBody(t, rec)["session"].(map[string]any); sess["authenticated"] != false {
		t.Fatalf("expected session cleared, got %v", sess)
	}
}
