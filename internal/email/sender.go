package email

import (
	"context"
	"errors"
)

// Message es un correo de texto plano. To acepta varias direcciones separadas por coma.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Sender define la interfaz para el envio de notificaciones.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Message) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
