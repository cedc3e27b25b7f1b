// Package storage emula el almacenamiento persistente local del navegador del lado del servidor.
package storage

import (
	"context"
	"errors"
)

// TokenStorage guarda valores por clave y notifica cambios a los observadores.
type TokenStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Watch entrega cada cambio hasta que ctx termina. El canal no se cierra.
	Watch(ctx context.Context) (<-chan Change, error)
}

// Change describe una escritura observada. El valor nunca viaja en el evento.
// Origin identifica a quien escribio, si lo declaro con WithOrigin.
type Change struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
	Origin  string `json:"origin,omitempty"`
}

type originKey struct{}

// WithOrigin marca las escrituras hechas con ctx para que su autor pueda
// reconocer y descartar sus propios eventos.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func originFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

var ErrEmptyKey = errors.New("storage key is empty")

// TokenKey es la unica clave que guarda el bearer token de un dispositivo.
func TokenKey(deviceID string) string {
	return "device:" + deviceID + ":token"
}
