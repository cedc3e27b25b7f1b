package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/llm"
)

// Request es la entrada de un respondedor: plan, transcripcion completa y ultimo mensaje.
type Request struct {
	Plan       domain.Plan
	Transcript []domain.ChatMessage
	Latest     string
}

// Responder produce la respuesta del asistente para un turno.
type Responder interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// RemoteResponder delega en el servicio de chat con el prompt de sistema del asistente.
type RemoteResponder struct {
	client llm.ChatClient
	opts   llm.Options
}

func NewRemoteResponder(client llm.ChatClient, model string) *RemoteResponder {
	return &RemoteResponder{client: client, opts: llm.ChatOptions.WithModel(model)}
}

func (r *RemoteResponder) Reply(ctx context.Context, req Request) (string, error) {
	messages := make([]domain.ChatMessage, 0, len(req.Transcript)+1)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	for _, m := range req.Transcript {
		role := domain.RoleUser
		if m.Role == domain.RoleAssistant {
			role = domain.RoleAssistant
		}
		messages = append(messages, domain.ChatMessage{Role: role, Content: m.Content})
	}

	reply, err := r.client.Complete(ctx, messages, r.opts)
	if errors.Is(err, llm.ErrEmptyResponse) {
		return emptyReply, nil
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// RuleResponder responde sin red a partir del ultimo mensaje y del plan elegido.
type RuleResponder struct{}

var (
	greetingWords     = []string{"hi", "hello", "hey"}
	helpWords         = []string{"help", "assist"}
	ruleFinalizeWords = []string{"okay go ahead", "finalize", "proceed", "let's do it", "yes", "ready"}
	questionWords     = []string{"how", "what", "explain"}
	projectWords      = []string{"project", "build", "create"}
)

func (RuleResponder) Reply(_ context.Context, req Request) (string, error) {
	return ruleReply(req.Latest, req.Plan), nil
}

func ruleReply(latest string, plan domain.Plan) string {
	input := strings.ToLower(latest)
	features := strings.Join(plan.Features, ", ")

	switch {
	case hasWord(input, greetingWords):
		return fmt.Sprintf("Hello! I'm here to help you with your %s project. What's the name of your project?", plan.Name)
	case strings.Contains(input, "name") && strings.Contains(input, "project"):
		return fmt.Sprintf("Great! What's the name you'd like to give your %s project?", plan.Name)
	case containsAny(input, helpWords):
		return fmt.Sprintf("I'd be happy to help! With the %s plan, you get %s. What would you like to know more about?", plan.Name, features)
	case containsAny(input, ruleFinalizeWords):
		return fmt.Sprintf("Perfect! I can help you finalize your %s project. Based on our conversation, here's what I understand: %s. Let me prepare a summary for you. %s",
			plan.Name, strings.Join(firstN(plan.Features, 2), " and "), FinalizeSentinel)
	case containsAny(input, questionWords):
		return fmt.Sprintf("The %s plan includes %s. This will help you build a comprehensive project. What specific aspect interests you most?", plan.Name, features)
	case containsAny(input, projectWords):
		return fmt.Sprintf("Excellent! For your %s project, you'll have access to %s. Tell me more about what you want to build.", plan.Name, features)
	default:
		return fmt.Sprintf("I understand you're working on a %s project. With this plan, you get %s. What would you like to focus on first?", plan.Name, features)
	}
}

// hasWord busca palabras completas para que "this" no cuente como saludo.
func hasWord(input string, words []string) bool {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func firstN(items []string, n int) []string {
	if len(items) < n {
		return items
	}
	return items[:n]
}
