package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/storage"
)

// ClientFactory crea el cliente REST de una pestaña. tokens lee el token del dispositivo.
type ClientFactory func(tokens apiclient.TokenSource) *apiclient.Client

// Tab agrupa el store y el cliente REST de una pestaña.
type Tab struct {
	DeviceID string
	TabID    string
	Store    *Store
	Client   *apiclient.Client

	registry *Registry
	cancel   context.CancelFunc
	lastSeen time.Time
	holds    int
}

// Hold marca la pestaña como en uso mientras un socket sigue abierto: EvictIdle no la
// descarta hasta que se llama a release, que ademas cuenta como actividad.
func (t *Tab) Hold() (release func()) {
	r := t.registry
	r.mu.Lock()
	t.holds++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			t.holds--
			t.lastSeen = r.now()
			r.mu.Unlock()
		})
	}
}

// Registry mantiene un Store por (dispositivo, pestaña) y descarta los inactivos.
type Registry struct {
	storage   storage.TokenStorage
	newClient ClientFactory
	idleTTL   time.Duration
	logger    *zap.Logger
	now       func() time.Time
	onEvict   func(deviceID, tabID string)

	mu   sync.Mutex
	tabs map[string]*Tab
}

func NewRegistry(store storage.TokenStorage, newClient ClientFactory, idleTTL time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		storage:   store,
		newClient: newClient,
		idleTTL:   idleTTL,
		logger:    logger,
		now:       time.Now,
		tabs:      make(map[string]*Tab),
	}
}

// OnEvict registra un callback que corre cuando una pestaña inactiva se descarta.
func (r *Registry) OnEvict(fn func(deviceID, tabID string)) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

func tabKey(deviceID, tabID string) string {
	return deviceID + "|" + tabID
}

// Tab devuelve la pestaña, creandola con su observador de storage si no existe.
func (r *Registry) Tab(deviceID, tabID string) *Tab {
	key := tabKey(deviceID, tabID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if tab, ok := r.tabs[key]; ok {
		tab.lastSeen = r.now()
		return tab
	}

	storageKey := storage.TokenKey(deviceID)
	tokens := func(ctx context.Context) (string, error) {
		token, _, err := r.storage.Get(ctx, storageKey)
		return token, err
	}
	client := r.newClient(tokens)
	store := NewStore(StoreConfig{
		DeviceID: deviceID,
		TabID:    tabID,
		Storage:  r.storage,
		Auth:     NewBackendAuthenticator(client),
		Header:   client,
		Logger:   r.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	tab := &Tab{
		DeviceID: deviceID,
		TabID:    tabID,
		Store:    store,
		Client:   client,
		registry: r,
		cancel:   cancel,
		lastSeen: r.now(),
	}
	r.tabs[key] = tab

	go func() {
		if err := store.Observe(ctx); err != nil {
			r.logger.Warn("session observer stopped", zap.String("device_id", deviceID), zap.String("tab_id", tabID), zap.Error(err))
		}
	}()
	return tab
}

// Len devuelve cuantas pestañas estan vivas.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// EvictIdle descarta las pestañas sin actividad durante mas de idleTTL. Las retenidas con Hold se conservan.
func (r *Registry) EvictIdle() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []*Tab
	for key, tab := range r.tabs {
		if tab.holds == 0 && tab.lastSeen.Before(cutoff) {
			evicted = append(evicted, tab)
			delete(r.tabs, key)
		}
	}
	onEvict := r.onEvict
	r.mu.Unlock()

	for _, tab := range evicted {
		tab.cancel()
		if onEvict != nil {
			onEvict(tab.DeviceID, tab.TabID)
		}
	}
	if len(evicted) > 0 {
		r.logger.Info("idle tabs evicted", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run ejecuta EvictIdle periodicamente hasta que ctx termina.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle()
		}
	}
}

// Close detiene todos los observadores.
func (r *Registry) Close() {
	r.mu.Lock()
	tabs := r.tabs
	r.tabs = make(map[string]*Tab)
	r.mu.Unlock()
	for _, tab := range tabs {
		tab.cancel()
	}
}
