package domain

// AuthState es la etiqueta de estado del session store.
type AuthState string

const (
	AuthUninitialized AuthState = "uninitialized"
	AuthLoading       AuthState = "loading"
	AuthAuthenticated AuthState = "authenticated"
	AuthAnonymous     AuthState = "anonymous"
)

// SessionSnapshot es la vista de solo lectura que consumen guard y paginas.
// Authenticated siempre equivale a User != nil.
type SessionSnapshot struct {
	State         AuthState `json:"state"`
	User          *User     `json:"user,omitempty"`
	Authenticated bool      `json:"authenticated"`
	Loading       bool      `json:"loading"`
}
