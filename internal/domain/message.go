package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage es un turno de la conversacion del asistente.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
