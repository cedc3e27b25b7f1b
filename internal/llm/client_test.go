package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"tyforge-web/internal/domain"
)

func TestHTTPClient_CompleteSendsOptions(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hi there [FINALIZE] "}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "", srv.Client(), zap.NewNop())
	reply, err := c.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}}, ChatOptions)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if reply != "Hi there [FINALIZE]" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got.Model != "llama-3.1-8b-instant" || got.MaxTokens != 500 || got.Temperature != 0.7 {
		t.Fatalf("unexpected options %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestHTTPClient_QuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", srv.Client(), zap.NewNop())
	_, err := c.Complete(context.Background(), nil, ChatOptions)
	if !IsQuotaError(err) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestHTTPClient_ServerErrorIsNotQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", srv.Client(), zap.NewNop())
	_, err := c.Summarize(context.Background(), "text", SummarizeOptions)
	if err == nil || IsQuotaError(err) {
		t.Fatalf("expected non-quota error, got %v", err)
	}
}

func TestHTTPClient_SummarizeAndIdea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/summarize":
			var in summarizeRequest
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.MaxTokens != 150 || in.Temperature != 0.5 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"summary":" short "}`))
		case "/generate-idea":
			var in ideaRequest
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.Interests != "iot" || in.MaxTokens != 200 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"idea":""}`))
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "k", srv.Client(), zap.NewNop())
	summary, err := c.Summarize(context.Background(), "conv", SummarizeOptions)
	if err != nil || summary != "short" {
		t.Fatalf("expected summary short, got %q %v", summary, err)
	}
	if _, err := c.GenerateIdea(context.Background(), "iot", IdeaOptions); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOptions_WithModel(t *testing.T) {
	if got := ChatOptions.WithModel("").Model; got != DefaultModel {
		t.Fatalf("expected default model, got %q", got)
	}
	if got := ChatOptions.WithModel("other").Model; got != "other" {
		t.Fatalf("expected override, got %q", got)
	}
	if ChatOptions.Model != DefaultModel {
		t.Fatalf("WithModel must not mutate the shared options")
	}
}
