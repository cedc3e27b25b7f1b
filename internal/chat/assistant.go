// Package chat implementa el asistente conversacional que recopila los requisitos de un plan.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/llm"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrBusy           = errors.New("a reply is already in progress")
	ErrCannotFinalize = errors.New("conversation is not ready to finalize")
)

// Summarizer resume la conversacion al finalizar.
type Summarizer interface {
	Summarize(ctx context.Context, text string, opts llm.Options) (string, error)
}

// Turn es el resultado visible de un Send.
type Turn struct {
	Reply       string `json:"reply"`
	Notice      string `json:"notice,omitempty"`
	CanFinalize bool   `json:"can_finalize"`
	Fallback    bool   `json:"fallback"`
}

// State es una vista de solo lectura de la conversacion.
type State struct {
	ID          string               `json:"id"`
	Plan        domain.Plan          `json:"plan"`
	Messages    []domain.ChatMessage `json:"messages"`
	UserName    string               `json:"user_name,omitempty"`
	CanFinalize bool                 `json:"can_finalize"`
	Busy        bool                 `json:"busy"`
}

// FinalizeResult es lo que recibe el callback de cierre.
type FinalizeResult struct {
	Plan     domain.Plan
	UserName string
	Summary  string
	// Messages incluye la transcripcion y el mensaje de sistema con el resumen.
	Messages []domain.ChatMessage
}

type Config struct {
	Remote     Responder
	Rules      Responder
	Breaker    *QuotaBreaker
	Summarizer Summarizer
	Model      string
	Logger     *zap.Logger
}

// Assistant es una conversacion abierta. La transcripcion solo crece.
type Assistant struct {
	id     string
	plan   domain.Plan
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	transcript  []domain.ChatMessage
	userName    string
	userCount   int
	canFinalize bool
	dismissed   bool
	busy        bool
}

func NewAssistant(id string, plan domain.Plan, cfg Config) *Assistant {
	if cfg.Rules == nil {
		cfg.Rules = RuleResponder{}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewQuotaBreaker(0, 0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		id:     id,
		plan:   plan,
		cfg:    cfg,
		logger: logger.With(zap.String("conversation_id", id)),
		transcript: []domain.ChatMessage{
			{Role: domain.RoleAssistant, Content: Greeting(plan)},
		},
	}
}

func (a *Assistant) ID() string { return a.id }

func (a *Assistant) Plan() domain.Plan { return a.plan }

// Send procesa un mensaje del usuario. Solo hay una respuesta en curso por conversacion.
func (a *Assistant) Send(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	a.mu.Lock()
	if a.busy {
		a.mu.Unlock()
		return Turn{}, ErrBusy
	}
	a.busy = true
	a.transcript = append(a.transcript, domain.ChatMessage{Role: domain.RoleUser, Content: text})
	a.userCount++
	if a.userName == "" && a.userCount == 1 {
		a.userName = text
	}
	fromUser := userSignal(text, a.userCount)
	req := Request{
		Plan:       a.plan,
		Transcript: append([]domain.ChatMessage(nil), a.transcript...),
		Latest:     text,
	}
	a.mu.Unlock()

	turn := Turn{}
	failed := false
	reply, fallback, err := a.reply(ctx, req)
	switch {
	case err == nil:
		turn.Fallback = fallback
	case llm.IsQuotaError(err):
		a.cfg.Breaker.MarkExceeded()
		a.logger.Warn("chat quota exceeded, using rule responder", zap.Error(err))
		reply, _ = a.cfg.Rules.Reply(ctx, req)
		turn.Notice = NoticeQuota
		turn.Fallback = true
	default:
		a.logger.Error("chat reply failed", zap.Error(err))
		reply = genericErrorReply
		turn.Notice = NoticeConnection
		failed = true
	}

	reply, fromAssistant := stripSentinel(reply)
	turn.Reply = reply

	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript = append(a.transcript, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply})
	a.busy = false
	if !failed {
		a.canFinalize = fromUser || fromAssistant
		a.dismissed = false
	}
	turn.CanFinalize = a.canFinalize && !a.dismissed
	return turn, nil
}

// reply usa el servicio remoto si el breaker lo permite; si no, el respondedor de reglas.
func (a *Assistant) reply(ctx context.Context, req Request) (string, bool, error) {
	if a.cfg.Remote == nil || !a.cfg.Breaker.Acquire() {
		reply, err := a.cfg.Rules.Reply(ctx, req)
		return reply, true, err
	}
	reply, err := a.cfg.Remote.Reply(ctx, req)
	return reply, false, err
}

// Dismiss oculta la opcion de finalizar hasta el proximo turno.
func (a *Assistant) Dismiss() {
	a.mu.Lock()
	a.dismissed = true
	a.mu.Unlock()
}

func (a *Assistant) CanFinalize() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.canFinalize && !a.dismissed
}

func (a *Assistant) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		ID:          a.id,
		Plan:        a.plan,
		Messages:    append([]domain.ChatMessage(nil), a.transcript...),
		UserName:    a.userName,
		CanFinalize: a.canFinalize && !a.dismissed,
		Busy:        a.busy,
	}
}

// Finalize resume la conversacion y entrega el resultado a onComplete.
// Un fallo del resumen nunca bloquea el cierre: se usa un texto generico.
func (a *Assistant) Finalize(ctx context.Context, onComplete func(context.Context, FinalizeResult) error) (FinalizeResult, error) {
	a.mu.Lock()
	if a.busy {
		a.mu.Unlock()
		return FinalizeResult{}, ErrBusy
	}
	if !a.canFinalize || a.dismissed {
		a.mu.Unlock()
		return FinalizeResult{}, ErrCannotFinalize
	}
	a.busy = true
	messages := append([]domain.ChatMessage(nil), a.transcript...)
	userName := a.userName
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.busy = false
		a.mu.Unlock()
	}()

	summary := a.summarize(ctx, messages)
	result := FinalizeResult{
		Plan:     a.plan,
		UserName: userName,
		Summary:  summary,
		Messages: append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: summaryPrefix + summary}),
	}
	if onComplete != nil {
		if err := onComplete(ctx, result); err != nil {
			return result, err
		}
	}
	a.logger.Info("chat finalized", zap.String("plan", a.plan.Name), zap.Int("messages", len(messages)))
	return result, nil
}

func (a *Assistant) summarize(ctx context.Context, messages []domain.ChatMessage) string {
	if a.cfg.Summarizer == nil || !a.cfg.Breaker.Acquire() {
		return summaryPlaceholder
	}
	summary, err := a.cfg.Summarizer.Summarize(ctx, summaryRequest(a.plan, messages), llm.SummarizeOptions.WithModel(a.cfg.Model))
	if err != nil {
		if llm.IsQuotaError(err) {
			a.cfg.Breaker.MarkExceeded()
		}
		a.logger.Warn("chat summary failed, using placeholder", zap.Error(err))
		return summaryPlaceholder
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return summaryPlaceholder
	}
	return summary
}
