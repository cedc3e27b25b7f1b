package domain

// Order es un pedido del usuario registrado en el backend.
type Order struct {
	ID          string `json:"id"`
	ServiceType string `json:"service_type"`
	Amount      int    `json:"amount"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	FilePath  string `json:"file_path,omitempty"`
	CreatedAt string `json:"created_at"`
}

type Synopsis struct {
	ID           string `json:"id"`
	FileName     string `json:"file_name"`
	OriginalName string `json:"original_name"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

type Meeting struct {
	ID          string `json:"id"`
	ScheduledAt string `json:"scheduled_at"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
}

// ProjectIdea es la idea que el usuario registra durante el setup del proyecto.
type ProjectIdea struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	IdeaGenerated bool   `json:"idea_generated"`
}

type AdminRequest struct {
	RequestType string `json:"request_type"`
	Description string `json:"description"`
}

// ActionResult es la respuesta generica de las operaciones de escritura del backend.
type ActionResult struct {
	Message   string `json:"message"`
	ID        string `json:"id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	NextStep  string `json:"next_step,omitempty"`
}
