package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/chat"
	"tyforge-web/internal/guard"
	"tyforge-web/internal/repository"
	"tyforge-web/internal/service"
	"tyforge-web/internal/session"
	"tyforge-web/internal/storage"
)

const testDeviceID = "dev-test"

var testNumbers = service.WhatsAppNumbers{Software: "918828016278", Hardware: "917506750982"}

// fakeBackend responde como el backend REST: password "secret" entrega "tok-1".
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
			return false
		}
		return true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "token_type": "bearer"})
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "asha@example.com", "name": "Asha"})
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "o1", "service_type": "Standard Plan", "amount": 5000, "status": "pending"}})
	})
	mux.HandleFunc("/api/plans", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	router  *gin.Engine
	tabs    *session.Registry
	storage storage.TokenStorage
	leads   *repository.MemoryLeadRepository
	leadSvc *service.LeadService
	cookie  *http.Cookie
}

type allowAll struct{ allow bool }

func (a allowAll) Allow(string) bool { return a.allow }

func newTestEnv(t *testing.T, backendURL string, limiter service.LoginRateLimiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	st := storage.NewMemoryStorage(nil)
	tabs := session.NewRegistry(st, func(tokens apiclient.TokenSource) *apiclient.Client {
		return apiclient.NewClient(backendURL, nil, tokens, logger)
	}, time.Minute, logger)
	t.Cleanup(tabs.Close)

	public := apiclient.NewClient(backendURL, nil, nil, logger)
	leadRepo := repository.NewMemoryLeadRepository()
	leadSvc := service.NewLeadService(logger, leadRepo, nil, "")
	chats := chat.NewRegistry(chat.Config{Logger: logger})
	ideas := service.NewIdeaService(logger, nil, chats.Breaker(), "")

	devices := service.NewDeviceTokenService("0123456789abcdef", 0)
	token, err := devices.Sign(testDeviceID)
	if err != nil {
		t.Fatalf("sign device token: %v", err)
	}

	if limiter == nil {
		limiter = allowAll{allow: true}
	}
	router := NewRouter(
		logger,
		[]string{"http://localhost:5173"},
		IdentityMiddleware(devices, tabs, false, logger),
		guard.RequireAuth(CurrentStore, time.Second, logger),
		Handlers{
			Session: NewSessionHandler(logger, limiter, time.Second),
			Portal:  NewPortalHandler(logger, public),
			Chat:    NewChatHandler(logger, chats, leadSvc, public, testNumbers),
			Leads:   NewLeadHandler(logger, leadSvc, ideas, testNumbers),
			Events:  NewEventsHandler(logger, []string{"*"}),
		},
	)

	return &testEnv{
		router:  router,
		tabs:    tabs,
		storage: st,
		leads:   leadRepo,
		leadSvc: leadSvc,
		cookie:  &http.Cookie{Name: DeviceCookieName, Value: token},
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(TabHeaderName, "tab-1")
	req.AddCookie(e.cookie)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}
