package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"tyforge-web/internal/domain"
)

// ChatClient es el servicio externo de chat usado por el asistente y el generador de ideas.
type ChatClient interface {
	Complete(ctx context.Context, messages []domain.ChatMessage, opts Options) (string, error)
	Summarize(ctx context.Context, text string, opts Options) (string, error)
	GenerateIdea(ctx context.Context, interests string, opts Options) (string, error)
}

// Options son los parametros de muestreo enviados en cada request.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

const DefaultModel = "llama-3.1-8b-instant"

var (
	ChatOptions      = Options{Model: DefaultModel, MaxTokens: 500, Temperature: 0.7}
	SummarizeOptions = Options{Model: DefaultModel, MaxTokens: 150, Temperature: 0.5}
	IdeaOptions      = Options{Model: DefaultModel, MaxTokens: 200, Temperature: 0.8}
)

// WithModel reemplaza el modelo si se configuro uno.
func (o Options) WithModel(model string) Options {
	if model != "" {
		o.Model = model
	}
	return o
}

var ErrEmptyResponse = errors.New("llm empty response")

// HTTPError es una respuesta no exitosa del servicio de chat.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm http error: status=%d", e.Status)
}

// IsQuotaError indica que el servicio rechazo la llamada por cuota o rate limit (429).
func IsQuotaError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests
	}
	return false
}
