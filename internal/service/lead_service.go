package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/email"
	"tyforge-web/internal/repository"
)

var (
	ErrInvalidLead  = errors.New("invalid lead")
	ErrInvalidPhone = errors.New("invalid phone")
	ErrInvalidEmail = errors.New("invalid email")
)

const notifyTimeout = 10 * time.Second

// LeadService valida, persiste y notifica los contactos capturados.
type LeadService struct {
	logger   *zap.Logger
	leads    repository.LeadRepository
	sender   email.Sender
	notifyTo string
	now      func() time.Time
	pending  sync.WaitGroup
}

func NewLeadService(logger *zap.Logger, leads repository.LeadRepository, sender email.Sender, notifyTo string) *LeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{
		logger:   logger,
		leads:    leads,
		sender:   sender,
		notifyTo: strings.TrimSpace(notifyTo),
		now:      time.Now,
	}
}

type LeadInput struct {
	Source   string
	Name     string
	Email    string
	Phone    string
	PlanName string
	Subject  string
	Body     string
	DeviceID string
}

// Submit guarda el lead y dispara la notificacion por correo sin bloquear la respuesta.
func (s *LeadService) Submit(ctx context.Context, input LeadInput) (domain.Lead, error) {
	if s.leads == nil {
		return domain.Lead{}, errors.New("lead service not configured")
	}

	lead, err := s.normalize(input)
	if err != nil {
		return domain.Lead{}, err
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return domain.Lead{}, fmt.Errorf("store lead: %w", err)
	}

	s.logger.Info("lead stored",
		zap.String("lead_id", lead.ID),
		zap.String("source", lead.Source),
	)
	s.notify(lead)
	return lead, nil
}

// Wait bloquea hasta que terminan las notificaciones en curso.
func (s *LeadService) Wait() {
	s.pending.Wait()
}

func (s *LeadService) normalize(input LeadInput) (domain.Lead, error) {
	lead := domain.Lead{
		Source:   strings.TrimSpace(input.Source),
		Name:     strings.TrimSpace(input.Name),
		Email:    normalizeEmail(input.Email),
		PlanName: strings.TrimSpace(input.PlanName),
		Subject:  strings.TrimSpace(input.Subject),
		Body:     strings.TrimSpace(input.Body),
		DeviceID: input.DeviceID,
	}

	switch lead.Source {
	case domain.LeadSourceContact, domain.LeadSourceIdea, domain.LeadSourceApprovedIdea:
		if lead.Name == "" {
			return domain.Lead{}, fmt.Errorf("%w: name is required", ErrInvalidLead)
		}
	case domain.LeadSourceChat:
		if lead.Name == "" {
			lead.Name = "Guest"
		}
	default:
		return domain.Lead{}, fmt.Errorf("%w: unknown source %q", ErrInvalidLead, lead.Source)
	}
	if lead.Body == "" {
		return domain.Lead{}, fmt.Errorf("%w: message is required", ErrInvalidLead)
	}

	if raw := strings.TrimSpace(input.Email); raw != "" && !strings.Contains(lead.Email, "@") {
		return domain.Lead{}, ErrInvalidEmail
	}
	if raw := strings.TrimSpace(input.Phone); raw != "" {
		phone, ok := normalizePhone(raw)
		if !ok {
			return domain.Lead{}, ErrInvalidPhone
		}
		lead.Phone = phone
	}

	switch lead.Source {
	case domain.LeadSourceIdea, domain.LeadSourceApprovedIdea:
		if lead.Phone == "" {
			return domain.Lead{}, ErrInvalidPhone
		}
	case domain.LeadSourceContact:
		if lead.Phone == "" && lead.Email == "" {
			return domain.Lead{}, fmt.Errorf("%w: email or phone is required", ErrInvalidLead)
		}
	}

	lead.ID = uuid.NewString()
	lead.CreatedAt = s.now().UTC()
	return lead, nil
}

func (s *LeadService) notify(lead domain.Lead) {
	if s.sender == nil || s.notifyTo == "" {
		return
	}
	msg := email.Message{
		To:      s.notifyTo,
		ReplyTo: lead.Email,
		Subject: leadSubject(lead),
		Body:    leadBody(lead),
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Warn("lead notification failed", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}()
}

func leadSubject(lead domain.Lead) string {
	if lead.Subject != "" {
		return fmt.Sprintf("New %s lead: %s", lead.Source, lead.Subject)
	}
	return fmt.Sprintf("New %s lead from %s", lead.Source, lead.Name)
}

func leadBody(lead domain.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	if lead.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	}
	if lead.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", lead.Phone)
	}
	if lead.PlanName != "" {
		fmt.Fprintf(&b, "Plan: %s\n", lead.PlanName)
	}
	b.WriteString("\n")
	b.WriteString(lead.Body)
	return b.String()
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// normalizePhone conserva un "+" inicial y los digitos; acepta entre 7 y 15 digitos.
func normalizePhone(v string) (string, bool) {
	var b strings.Builder
	digits := 0
	for i, r := range strings.TrimSpace(v) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	if digits < 7 || digits > 15 {
		return "", false
	}
	return b.String(), true
}
