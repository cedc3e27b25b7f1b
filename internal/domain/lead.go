package domain

import "time"

const (
	LeadSourceContact      = "contact"
	LeadSourceIdea         = "idea"
	LeadSourceApprovedIdea = "approved_idea"
	LeadSourceChat         = "chat"
)

// Lead es un contacto capturado por formularios o por el chat finalizado.
type Lead struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	PlanName  string    `json:"plan_name,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	DeviceID  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
