package session

import (
	"context"
	"fmt"
	"strings"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/domain"
)

// Authenticator intercambia credenciales por un token y un token por una identidad.
// Permite cambiar el backend REST por un proveedor de auth hospedado sin tocar el store.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Identity(ctx context.Context, token string) (*domain.User, error)
}

// AuthHeader es el header Authorization por defecto del cliente de la pestaña.
type AuthHeader interface {
	SetAuthToken(token string)
	ClearAuthToken()
}

type backendAuthenticator struct {
	client *apiclient.Client
}

// NewBackendAuthenticator usa /api/login y /api/me del backend REST.
func NewBackendAuthenticator(client *apiclient.Client) Authenticator {
	return &backendAuthenticator{client: client}
}

func (a *backendAuthenticator) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := a.client.Login(ctx, email, password)
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Identity fija el token en la request para no depender de lo que otra pestaña escriba en storage.
func (a *backendAuthenticator) Identity(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("identity: empty token")
	}
	return a.client.WithToken(token).Me(ctx)
}
