package service

import (
	"strings"

	"tyforge-web/internal/domain"
)

// builtinPlans es el catalogo que se sirve cuando el backend no responde.
var builtinPlans = []domain.Plan{
	{
		ID:          "software-basic",
		Name:        "Basic Plan",
		Description: "Code review and improvement advice",
		Price:       "₹1,499",
		Category:    domain.PlanCategorySoftware,
		Features: []string{
			"Project advice and consultation",
			"Code review and improvements",
			"Technical guidance",
			"Email support",
		},
	},
	{
		ID:          "software-standard",
		Name:        "Standard Plan",
		Description: "Complete full-stack web app with up to 4 pages",
		Price:       "₹5,000",
		Category:    domain.PlanCategorySoftware,
		Features: []string{
			"Full-stack web application",
			"Maximum 4 pages",
			"Basic authentication",
			"Database integration",
			"Responsive design",
			"Technical documentation",
		},
	},
	{
		ID:          "software-premium",
		Name:        "Premium Plan",
		Description: "Advanced full-stack app with 8+ pages and complete documentation",
		Price:       "₹9,000",
		Category:    domain.PlanCategorySoftware,
		Features: []string{
			"Full-stack web application",
			"8+ pages included",
			"Complete login/signup system",
			"Client preferred database",
			"Advanced features",
			"Complete documentation",
			"System diagrams included",
			"Priority support",
		},
	},
	{
		ID:          "hardware-basic",
		Name:        "Basic Plan",
		Description: "Simple hardware project with basic sensors",
		Price:       "₹1,500",
		Category:    domain.PlanCategoryHardware,
		Features: []string{
			"Up to 4 sensors maximum",
			"Basic code for hardware",
			"No internet connectivity",
			"No cloud dashboard",
			"Components NOT included",
			"You buy components yourself",
		},
	},
	{
		ID:          "hardware-standard",
		Name:        "Standard Plan",
		Description: "Advanced project with cloud connectivity",
		Price:       "₹5,000",
		Category:    domain.PlanCategoryHardware,
		Features: []string{
			"Up to 9 sensors",
			"Blynk cloud connectivity",
			"We source components at best prices",
			"Internet connectivity included",
			"Cloud dashboard setup",
			"Components NOT included",
		},
	},
	{
		ID:          "hardware-premium",
		Name:        "Premium Plan",
		Description: "Complex IoT project with full documentation",
		Price:       "₹9,000",
		Category:    domain.PlanCategoryHardware,
		Features: []string{
			"15+ sensors supported",
			"Blynk cloud integration",
			"WiFi connectivity",
			"API data connections",
			"Complex project architecture",
			"Complete documentation",
			"Components NOT included",
		},
	},
}

// BuiltinPlans devuelve una copia del catalogo incorporado.
func BuiltinPlans() []domain.Plan {
	out := make([]domain.Plan, len(builtinPlans))
	for i, p := range builtinPlans {
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

// FindPlan busca un plan por id, o por nombre y categoria cuando el id no coincide.
func FindPlan(plans []domain.Plan, id, name, category string) (domain.Plan, bool) {
	id = strings.TrimSpace(id)
	if id != "" {
		for _, p := range plans {
			if p.ID == id {
				return p, true
			}
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Plan{}, false
	}
	for _, p := range plans {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		if category == "" || strings.EqualFold(p.Category, category) {
			return p, true
		}
	}
	return domain.Plan{}, false
}
