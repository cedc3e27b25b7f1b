package storage

import (
	"context"
	"strings"
	"sync"
)

type memoryWatcher struct {
	ch  chan Change
	ctx context.Context
}

// fanOut entrega change a cada observador vivo. Un observador cuyo ctx
// termino se salta sin bloquear a los demas.
func fanOut(targets []*memoryWatcher, change Change) {
	for _, w := range targets {
		select {
		case w.ch <- change:
		case <-w.ctx.Done():
		}
	}
}

type memoryStorage struct {
	mu       sync.Mutex
	items    map[string]string
	watchers map[*memoryWatcher]struct{}
	sealer   *Sealer
}

// NewMemoryStorage crea un storage en memoria para un solo proceso.
func NewMemoryStorage(sealer *Sealer) TokenStorage {
	return &memoryStorage{
		items:    make(map[string]string),
		watchers: make(map[*memoryWatcher]struct{}),
		sealer:   sealer,
	}
}

func (s *memoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.Lock()
	sealed, ok := s.items[key]
	s.mu.Unlock()
	if !ok {
		return "", false, nil
	}
	value, err := s.sealer.Open(sealed)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *memoryStorage) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[key] = sealed
	s.mu.Unlock()
	s.notify(Change{Key: key, Origin: originFrom(ctx)})
	return nil
}

func (s *memoryStorage) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	_, existed := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	// Como localStorage, borrar una clave inexistente no dispara eventos.
	if existed {
		s.notify(Change{Key: key, Removed: true, Origin: originFrom(ctx)})
	}
	return nil
}

func (s *memoryStorage) Watch(ctx context.Context) (<-chan Change, error) {
	w := &memoryWatcher{ch: make(chan Change, 16), ctx: ctx}
	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
	}()
	return w.ch, nil
}

func (s *memoryStorage) notify(change Change) {
	s.mu.Lock()
	targets := make([]*memoryWatcher, 0, len(s.watchers))
	for w := range s.watchers {
		targets = append(targets, w)
	}
	s.mu.Unlock()
	fanOut(targets, change)
}
