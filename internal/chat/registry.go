package chat

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"tyforge-web/internal/domain"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Registry guarda las conversaciones abiertas de cada pestaña.
type Registry struct {
	cfg Config

	mu    sync.Mutex
	convs map[string]map[string]*Assistant
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Breaker == nil {
		cfg.Breaker = NewQuotaBreaker(0, 0)
	}
	return &Registry{cfg: cfg, convs: make(map[string]map[string]*Assistant)}
}

// Open inicia una conversacion nueva para el plan. Reabrir siempre empieza de cero.
func (r *Registry) Open(owner string, plan domain.Plan) *Assistant {
	a := NewAssistant(uuid.NewString(), plan, r.cfg)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.convs[owner] == nil {
		r.convs[owner] = make(map[string]*Assistant)
	}
	r.convs[owner][a.ID()] = a
	return a
}

func (r *Registry) Get(owner, id string) (*Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.convs[owner][id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return a, nil
}

// Close descarta la transcripcion.
func (r *Registry) Close(owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	convs, ok := r.convs[owner]
	if !ok {
		return ErrConversationNotFound
	}
	if _, ok := convs[id]; !ok {
		return ErrConversationNotFound
	}
	delete(convs, id)
	if len(convs) == 0 {
		delete(r.convs, owner)
	}
	return nil
}

// CloseOwner descarta todas las conversaciones de una pestaña.
func (r *Registry) CloseOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.convs[owner])
	delete(r.convs, owner)
	return n
}

// Breaker expone el breaker compartido, tambien usado por el generador de ideas.
func (r *Registry) Breaker() *QuotaBreaker {
	return r.cfg.Breaker
}
