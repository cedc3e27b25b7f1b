package domain

import "strings"

// Plan es informacion de referencia inmutable elegida para iniciar un chat.
type Plan struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Price        string   `json:"price"`
	Features     []string `json:"features"`
	Category     string   `json:"category,omitempty"`
	BlogIncluded bool     `json:"blog_included,omitempty"`
	MaxProjects  int      `json:"max_projects,omitempty"`
	SupportLevel string   `json:"support_level,omitempty"`
}

const (
	PlanCategorySoftware = "software"
	PlanCategoryHardware = "hardware"
)

// IsSoftware decide por la categoria cuando el backend la envia; si falta, busca "software" en el nombre.
func (p Plan) IsSoftware() bool {
	if category := strings.TrimSpace(p.Category); category != "" {
		return strings.EqualFold(category, PlanCategorySoftware)
	}
	return strings.Contains(strings.ToLower(p.Name), PlanCategorySoftware)
}

// Service es un servicio adicional que puede sumarse a un plan.
type Service struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int    `json:"price"`
	Category    string `json:"category"`
	IsAddon     bool   `json:"is_addon"`
}

type PlanSelection struct {
	PlanID           string   `json:"plan_id"`
	SelectedServices []string `json:"selected_services"`
}
