package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL+"/", srv.Client(), nil, zap.NewNop())
}

func TestClient_DefaultHeaderAndClear(t *testing.T) {
	var gotAuth []string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "a@x.com", "name": "Ann"})
	})

	client.SetAuthToken("tok-1")
	if _, err := client.Me(context.Background()); err != nil {
		t.Fatalf("me failed: %v", err)
	}
	client.ClearAuthToken()
	if _, err := client.Me(context.Background()); err != nil {
		t.Fatalf("me failed: %v", err)
	}

	if gotAuth[0] != "Bearer tok-1" {
		t.Fatalf("expected bearer header, got %q", gotAuth[0])
	}
	if gotAuth[1] != "" {
		t.Fatalf("expected no header after clear, got %q", gotAuth[1])
	}
}

func TestClient_StorageTokenOverridesDefault(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	source := func(context.Context) (string, error) { return "stored", nil }
	client := NewClient(srv.URL, srv.Client(), source, zap.NewNop())
	client.SetAuthToken("default")

	if _, err := client.Orders(context.Background()); err != nil {
		t.Fatalf("orders failed: %v", err)
	}
	if gotAuth != "Bearer stored" {
		t.Fatalf("expected stored token, got %q", gotAuth)
	}

	scoped := client.WithToken("scoped")
	if _, err := scoped.Orders(context.Background()); err != nil {
		t.Fatalf("orders failed: %v", err)
	}
	if gotAuth != "Bearer scoped" {
		t.Fatalf("expected scoped token, got %q", gotAuth)
	}
}

func TestClient_LoginNeverSendsToken(t *testing.T) {
	var gotAuth, gotPath string
	var body map[string]string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "new", "token_type": "bearer"})
	})
	client.SetAuthToken("old")

	resp, err := client.Login(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessToken != "new" {
		t.Fatalf("expected access token new, got %q", resp.AccessToken)
	}
	if gotAuth != "" {
		t.Fatalf("expected no authorization on login, got %q", gotAuth)
	}
	if gotPath != "/api/login" || body["email"] != "a@x.com" || body["password"] != "pw" {
		t.Fatalf("unexpected request %s %v", gotPath, body)
	}
}

func TestClient_APIErrorDetail(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
	})

	_, err := client.Login(context.Background(), "a@x.com", "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Detail != "Invalid credentials" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized")
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", StatusCode(err))
	}
}

func TestClient_APIErrorBodyKeepsRunes(t *testing.T) {
	// 199 bytes ASCII y luego "é" (2 bytes): el corte en 200 caeria en medio de la runa.
	body := strings.Repeat("x", 199) + strings.Repeat("é", 10)
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	})

	_, err := client.Login(context.Background(), "a@x.com", "pw")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !utf8.ValidString(apiErr.Detail) {
		t.Fatalf("detail is not valid utf-8: %q", apiErr.Detail)
	}
	if apiErr.Detail != strings.Repeat("x", 199) {
		t.Fatalf("unexpected detail %q", apiErr.Detail)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 2); got != "h" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := truncate("héllo", 3); got != "hé" {
		t.Fatalf("expected hé, got %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("expected untouched, got %q", got)
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, nil, nil, zap.NewNop())
	_, err := client.Me(context.Background())
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if IsUnauthorized(err) || StatusCode(err) != 0 {
		t.Fatalf("transport error must not look like backend error: %v", err)
	}
}

func TestClient_PlansFormatsPrice(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"p1","name":"Software Pro","price":4999,"features":["A"," B ",""]},{"id":"p2","name":"IoT Kit","price":2999,"features":["C"]}]`))
	})

	plans, err := client.Plans(context.Background())
	if err != nil {
		t.Fatalf("plans failed: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].Price != "₹4999" || len(plans[0].Features) != 2 || plans[0].Features[1] != "B" {
		t.Fatalf("unexpected plan %+v", plans[0])
	}
	if plans[0].Category != "software" || plans[1].Category != "hardware" {
		t.Fatalf("unexpected categories %q %q", plans[0].Category, plans[1].Category)
	}
}

func TestClient_UploadProjectSynopsisMultipart(t *testing.T) {
	var gotPath, gotName, gotContent, gotAuth string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName = header.Filename
		gotContent = string(data)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok", "project_id": "p9"})
	})
	client.SetAuthToken("tok")

	res, err := client.UploadProjectSynopsis(context.Background(), "p9", "plan.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if gotPath != "/api/upload-synopsis/p9" || gotName != "plan.pdf" || gotContent != "%PDF-1.4" {
		t.Fatalf("unexpected upload %s %s %s", gotPath, gotName, gotContent)
	}
	if gotAuth != "Bearer tok" || res.ProjectID != "p9" {
		t.Fatalf("unexpected auth %q or result %+v", gotAuth, res)
	}

	if _, err := client.UploadProjectSynopsis(context.Background(), " ", "x.pdf", strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty project id")
	}
}

func TestClient_DownloadBlackBook(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 book"))
	})

	dl, err := client.DownloadBlackBook(context.Background())
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer dl.Body.Close()
	data, _ := io.ReadAll(dl.Body)
	if string(data) != "%PDF-1.4 book" || dl.ContentType != "application/pdf" || dl.Filename != "BlackBook.pdf" {
		t.Fatalf("unexpected download %q %+v", data, dl)
	}
}
