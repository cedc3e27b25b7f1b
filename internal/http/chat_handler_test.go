package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"tyforge-web/internal/domain"
)

func TestChatHandler_ConversationToDeepLink(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)

	rec := env.do(t, http.MethodPost, "/api/chat", map[string]string{"plan_name": "Standard Plan", "category": "software"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	conv := decodeBody(t, rec)["conversation"].(map[string]any)
	id := conv["id"].(string)
	greeting := conv["messages"].([]any)[0].(map[string]any)["content"].(string)
	if !strings.Contains(greeting, "Standard Plan") {
		t.Fatalf("expected plan greeting, got %q", greeting)
	}

	for i, text := range []string{"Asha", "A library management system", "It needs search"} {
		rec = env.do(t, http.MethodPost, "/api/chat/"+id+"/messages", map[string]string{"content": text}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("turn %d: expected 200, got %d", i+1, rec.Code)
		}
		turn := decodeBody(t, rec)["turn"].(map[string]any)
		if want := i == 2; turn["can_finalize"] != want {
			t.Fatalf("turn %d: expected can_finalize=%v, got %v", i+1, want, turn["can_finalize"])
		}
	}

	rec = env.do(t, http.MethodPost, "/api/chat/"+id+"/finalize", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	link := body["redirect_url"].(string)
	if !strings.HasPrefix(link, "https://wa.me/918828016278?text=") {
		t.Fatalf("expected software deep link, got %q", link)
	}
	if !strings.Contains(link, "New%20Standard%20Plan%20Inquiry") {
		t.Fatalf("expected inquiry header in link, got %q", link)
	}

	env.leadSvc.Wait()
	leads, _ := env.leads.ListBySource(context.Background(), domain.LeadSourceChat, 10)
	if len(leads) != 1 || leads[0].Name != "Asha" || leads[0].PlanName != "Standard Plan" {
		t.Fatalf("expected chat lead, got %+v", leads)
	}

	// finalizar descarta la conversacion
	rec = env.do(t, http.MethodGet, "/api/chat/"+id, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after finalize, got %d", rec.Code)
	}
}

func TestChatHandler_FinalizeNotReady(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)
	rec := env.do(t, http.MethodPost, "/api/chat", map[string]any{
		"plan": domain.Plan{Name: "Basic Plan", Price: "₹1,500", Features: []string{"Up to 4 sensors maximum"}},
	}, nil)
	id := decodeBody(t, rec)["conversation"].(map[string]any)["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/chat/"+id+"/finalize", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestChatHandler_YesThenDismiss(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)
	rec := env.do(t, http.MethodPost, "/api/chat", map[string]string{"plan_id": "hardware-premium"}, nil)
	id := decodeBody(t, rec)["conversation"].(map[string]any)["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/chat/"+id+"/messages", map[string]string{"content": "yes"}, nil)
	if turn := decodeBody(t, rec)["turn"].(map[string]any); turn["can_finalize"] != true {
		t.Fatalf("expected can_finalize after yes, got %v", turn)
	}

	rec = env.do(t, http.MethodPost, "/api/chat/"+id+"/dismiss", nil, nil)
	if conv := decodeBody(t, rec)["conversation"].(map[string]any); conv["can_finalize"] != false {
		t.Fatalf("expected dismissed, got %v", conv)
	}
	rec = env.do(t, http.MethodPost, "/api/chat/"+id+"/finalize", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 after dismiss, got %d", rec.Code)
	}
}

func TestChatHandler_ValidationAndOwnership(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)

	rec := env.do(t, http.MethodPost, "/api/chat", map[string]string{"plan_name": "Gold Plan"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown plan, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/chat", map[string]string{"plan_id": "software-basic"}, nil)
	id := decodeBody(t, rec)["conversation"].(map[string]any)["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/chat/"+id+"/messages", map[string]string{"content": "   "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", rec.Code)
	}

	// otra pestaña no ve la conversacion
	rec = env.do(t, http.MethodGet, "/api/chat/"+id, nil, map[string]string{TabHeaderName: "tab-2"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from another tab, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/chat/"+id, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/chat/"+id, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second close, got %d", rec.Code)
	}
}

func TestChatHandler_Quota(t *testing.T) {
	env := newTestEnv(t, fakeBackend(t).URL, nil)
	rec := env.do(t, http.MethodGet, "/api/chat/quota", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if quota := decodeBody(t, rec)["quota"].(map[string]any); quota["exceeded"] != false {
		t.Fatalf("unexpected quota %v", quota)
	}
}
