// Package session mantiene el estado de autenticacion de cada pestaña del navegador.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/storage"
)

var (
	// ErrLoginSuperseded se devuelve cuando otro login o un logout posterior invalido este intento.
	ErrLoginSuperseded = errors.New("login superseded by a newer session operation")

	ErrMissingCredentials = errors.New("email and password are required")
)

const restoreTimeout = 15 * time.Second

// Store es el session store de una pestaña. Todas las pestañas de un dispositivo comparten la clave de storage.
type Store struct {
	deviceID string
	tabID    string
	key      string
	origin   string // marca las escrituras propias para descartarlas en Observe
	storage  storage.TokenStorage
	auth     Authenticator
	header   AuthHeader
	logger   *zap.Logger

	// commitMu serializa las escrituras en storage con la lectura que valida eventos de otras pestañas.
	commitMu sync.Mutex

	mu         sync.Mutex
	state      domain.AuthState
	user       *domain.User
	loading    bool
	generation uint64
	pending    string
	subs       map[int]chan domain.SessionSnapshot
	nextSub    int

	restoreOnce sync.Once
	restored    chan struct{}
}

type StoreConfig struct {
	DeviceID string
	TabID    string
	Storage  storage.TokenStorage
	Auth     Authenticator
	Header   AuthHeader
	Logger   *zap.Logger
}

func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		deviceID: cfg.DeviceID,
		tabID:    cfg.TabID,
		key:      storage.TokenKey(cfg.DeviceID),
		origin:   uuid.NewString(),
		storage:  cfg.Storage,
		auth:     cfg.Auth,
		header:   cfg.Header,
		logger:   logger.With(zap.String("device_id", cfg.DeviceID), zap.String("tab_id", cfg.TabID)),
		state:    domain.AuthUninitialized,
		subs:     make(map[int]chan domain.SessionSnapshot),
		restored: make(chan struct{}),
	}
}

// Snapshot devuelve una copia de solo lectura del estado actual.
func (s *Store) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		State:         s.state,
		Authenticated: s.user != nil,
		Loading:       s.loading || s.state == domain.AuthUninitialized,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Restore valida el token persistido una sola vez; llamadas concurrentes esperan a la primera.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		// El restore sobrevive a la request que lo disparo para no borrar un token valido por una cancelacion.
		go s.restore(context.WithoutCancel(ctx))
	})
	select {
	case <-s.restored:
	case <-ctx.Done():
	}
}

func (s *Store) restore(ctx context.Context) {
	defer close(s.restored)
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	gen := s.begin()

	token, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("session restore: storage read failed", zap.Error(err))
	}
	if err != nil || !ok || strings.TrimSpace(token) == "" {
		s.finishAnonymous(ctx, gen, false)
		return
	}

	s.header.SetAuthToken(token)
	user, err := s.auth.Identity(ctx, token)
	if err != nil {
		s.logger.Warn("session restore failed, clearing token", zap.Error(err))
		s.finishAnonymous(ctx, gen, true)
		return
	}
	if s.finishAuthenticated(gen, user) {
		s.logger.Info("session restored", zap.String("user_id", user.ID))
	}
}

// Login intercambia credenciales por token e identidad. Solo el ultimo intento iniciado modifica el estado.
func (s *Store) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrMissingCredentials
	}
	// Un login explicito reemplaza al restore pendiente: un Restore posterior no debe invalidarlo.
	s.skipRestore()
	gen := s.begin()

	s.commitMu.Lock()
	if err := s.storage.Remove(storage.WithOrigin(ctx, s.origin), s.key); err != nil {
		s.logger.Warn("login: clear previous token failed", zap.Error(err))
	}
	s.header.ClearAuthToken()
	s.commitMu.Unlock()

	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return s.failLogin(ctx, gen, err)
	}

	s.commitMu.Lock()
	if !s.isLatest(gen) {
		s.commitMu.Unlock()
		return ErrLoginSuperseded
	}
	if err := s.storage.Set(ctx, s.key, token); err != nil {
		s.commitMu.Unlock()
		return s.failLogin(ctx, gen, fmt.Errorf("store token: %w", err))
	}
	s.header.SetAuthToken(token)
	s.commitMu.Unlock()

	user, err := s.auth.Identity(ctx, token)
	if err != nil {
		return s.failLogin(ctx, gen, err)
	}
	if !s.finishAuthenticated(gen, user) {
		return ErrLoginSuperseded
	}
	s.logger.Info("session login", zap.String("user_id", user.ID))
	return nil
}

func (s *Store) skipRestore() {
	s.restoreOnce.Do(func() { close(s.restored) })
}

func (s *Store) failLogin(ctx context.Context, gen uint64, cause error) error {
	if !s.finishAnonymous(ctx, gen, true) {
		return ErrLoginSuperseded
	}
	s.logger.Info("session login failed", zap.Error(cause))
	return cause
}

// Logout limpia token, header y usuario en forma sincronica. Es idempotente e invalida logins en curso.
func (s *Store) Logout(ctx context.Context) {
	s.skipRestore()
	gen := s.begin()
	s.finishAnonymous(ctx, gen, true)
	s.logger.Info("session logout")
}

// Observe consume los cambios de storage hasta que ctx termina. Una remocion del token hecha
// por otra pestaña aplica la misma transicion que Logout sin llamar al backend. Las remociones
// propias ya aplicaron su transicion y se ignoran.
func (s *Store) Observe(ctx context.Context) error {
	changes, err := s.storage.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch storage: %w", err)
	}

	// Las remociones se coalescen: handleRemoval relee storage, y el lector de eventos
	// nunca espera a commitMu mientras storage le esta entregando cambios.
	removals := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-removals:
				s.handleRemoval(ctx)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-changes:
			if change.Key != s.key || !change.Removed || change.Origin == s.origin {
				continue
			}
			select {
			case removals <- struct{}{}:
			default:
			}
		}
	}
}

func (s *Store) handleRemoval(ctx context.Context) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	// El evento puede llegar despues de que un login de esta misma pestaña volvio a escribir el token.
	if token, ok, err := s.storage.Get(ctx, s.key); err == nil && ok && token != "" {
		return
	}
	s.header.ClearAuthToken()

	s.mu.Lock()
	changed := s.user != nil
	s.user = nil
	if !s.loading && s.state != domain.AuthUninitialized && s.state != domain.AuthAnonymous {
		s.state = domain.AuthAnonymous
		changed = true
	}
	if changed {
		s.publishLocked()
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info("session cleared by another tab")
	}
}

// SetPendingRedirect recuerda la ruta protegida que disparo el redirect al login.
func (s *Store) SetPendingRedirect(path string) {
	s.mu.Lock()
	s.pending = path
	s.mu.Unlock()
}

// ConsumePendingRedirect devuelve y descarta la ruta pendiente.
func (s *Store) ConsumePendingRedirect() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.pending
	s.pending = ""
	return path, path != ""
}

// Subscribe entrega el snapshot actual y cada transicion posterior. Si el lector se atrasa
// se conserva el snapshot mas reciente.
func (s *Store) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.loading = true
	s.state = domain.AuthLoading
	s.publishLocked()
	return s.generation
}

func (s *Store) isLatest(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

func (s *Store) finishAuthenticated(gen uint64, user *domain.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	u := *user
	s.user = &u
	s.loading = false
	s.state = domain.AuthAuthenticated
	s.publishLocked()
	return true
}

// finishAnonymous aplica la transicion a anonimo si gen sigue siendo la ultima operacion.
func (s *Store) finishAnonymous(ctx context.Context, gen uint64, clearToken bool) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if !s.isLatest(gen) {
		return false
	}
	if clearToken {
		if err := s.storage.Remove(storage.WithOrigin(ctx, s.origin), s.key); err != nil {
			s.logger.Warn("clear token failed", zap.Error(err))
		}
	}
	s.header.ClearAuthToken()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.user = nil
	s.loading = false
	s.state = domain.AuthAnonymous
	s.publishLocked()
	return true
}

func (s *Store) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
