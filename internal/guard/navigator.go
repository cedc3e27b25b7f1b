package guard

import (
	"context"
	"sync"

	"tyforge-web/internal/domain"
)

// Navigator emite una navegacion al login cuando la pestaña pierde la sesion.
type Navigator struct {
	mu       sync.Mutex
	location string
	wasAuth  bool
}

func NewNavigator(location string) *Navigator {
	return &Navigator{location: location}
}

// SetLocation registra la ruta que la pestaña esta mostrando.
func (n *Navigator) SetLocation(path string) {
	n.mu.Lock()
	n.location = path
	n.mu.Unlock()
}

func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// Observe procesa un snapshot y devuelve el destino si hay que navegar.
// Solo la transicion autenticado -> no autenticado navega, y nunca si ya esta en el login.
func (n *Navigator) Observe(snap domain.SessionSnapshot) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	was := n.wasAuth
	n.wasAuth = snap.Authenticated
	if !was || snap.Authenticated {
		return "", false
	}
	if isLoginPath(n.location) {
		return "", false
	}
	n.location = LoginPath
	return LoginPath, true
}

// Run consume snapshots hasta que ctx termina o el canal se cierra.
func (n *Navigator) Run(ctx context.Context, snapshots <-chan domain.SessionSnapshot, navigate func(path string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if target, ok := n.Observe(snap); ok {
				navigate(target)
			}
		}
	}
}
