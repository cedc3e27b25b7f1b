package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"tyforge-web/internal/chat"
	"tyforge-web/internal/llm"
)

var ErrEmptyInterests = errors.New("interests are required")

// IdeaResult es la idea devuelta a la pagina del generador.
type IdeaResult struct {
	Idea     string `json:"idea"`
	Fallback bool   `json:"fallback"`
}

// IdeaService genera ideas de proyecto con el servicio de chat o con plantillas locales.
type IdeaService struct {
	logger  *zap.Logger
	client  llm.ChatClient
	breaker *chat.QuotaBreaker
	model   string
	pick    func(n int) int
}

func NewIdeaService(logger *zap.Logger, client llm.ChatClient, breaker *chat.QuotaBreaker, model string) *IdeaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdeaService{
		logger:  logger,
		client:  client,
		breaker: breaker,
		model:   model,
		pick:    rand.IntN,
	}
}

// Generate nunca falla por el servicio remoto: cualquier error termina en una idea de respaldo.
func (s *IdeaService) Generate(ctx context.Context, interests string) (IdeaResult, error) {
	interests = strings.TrimSpace(interests)
	if interests == "" {
		return IdeaResult{}, ErrEmptyInterests
	}

	if s.client == nil {
		return IdeaResult{Idea: s.randomIdea(interests), Fallback: true}, nil
	}
	if s.breaker != nil && !s.breaker.Acquire() {
		s.logger.Info("idea quota open, using fallback")
		return IdeaResult{Idea: s.matchedIdea(interests), Fallback: true}, nil
	}

	idea, err := s.client.GenerateIdea(ctx, interests, llm.IdeaOptions.WithModel(s.model))
	if err == nil {
		if idea = cleanIdeaText(idea); idea != "" {
			return IdeaResult{Idea: idea}, nil
		}
		err = llm.ErrEmptyResponse
	}

	var httpErr *llm.HTTPError
	switch {
	case llm.IsQuotaError(err):
		if s.breaker != nil {
			s.breaker.MarkExceeded()
		}
		s.logger.Warn("idea quota exceeded", zap.Error(err))
		return IdeaResult{Idea: s.matchedIdea(interests), Fallback: true}, nil
	case errors.Is(err, llm.ErrEmptyResponse), errors.As(err, &httpErr):
		s.logger.Warn("idea service returned no idea", zap.Error(err))
		return IdeaResult{Idea: s.matchedIdea(interests), Fallback: true}, nil
	default:
		s.logger.Warn("idea request failed", zap.Error(err))
		return IdeaResult{Idea: s.randomIdea(interests), Fallback: true}, nil
	}
}

func ideaTemplates(interests string) []string {
	return []string{
		fmt.Sprintf("Build a smart task management app using React and Firebase with AI-powered priority suggestions based on %s interests.", interests),
		fmt.Sprintf("Create an IoT-based home automation system using Arduino/Raspberry Pi focusing on %s with mobile app integration.", interests),
		fmt.Sprintf("Develop a machine learning project for %s using Python, TensorFlow, and Flask for web deployment.", interests),
		fmt.Sprintf("Design a full-stack e-commerce platform for %s using MERN stack with payment gateway integration.", interests),
		fmt.Sprintf("Build a real-time chat application with %s focus using Socket.io, Node.js, and React with MongoDB.", interests),
	}
}

// orden de evaluacion de palabras clave -> plantilla
var ideaKeywords = []struct {
	keywords []string
	index    int
}{
	{[]string{"ai", "machine learning"}, 2},
	{[]string{"web", "react"}, 0},
	{[]string{"iot", "arduino"}, 1},
	{[]string{"commerce", "business"}, 3},
	{[]string{"chat", "real-time"}, 4},
}

func fallbackIdea(interests string, pick func(int) int) string {
	templates := ideaTemplates(interests)
	lower := strings.ToLower(interests)
	for _, k := range ideaKeywords {
		if containsAnyFold(lower, k.keywords) {
			return templates[k.index]
		}
	}
	return templates[pick(len(templates))]
}

// matchedIdea elige la plantilla que coincide con los intereses, o una al azar.
func (s *IdeaService) matchedIdea(interests string) string {
	return fallbackIdea(interests, s.pick)
}

func (s *IdeaService) randomIdea(interests string) string {
	templates := ideaTemplates(interests)
	return templates[s.pick(len(templates))]
}

func containsAnyFold(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
