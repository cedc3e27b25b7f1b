package domain

// User es la identidad devuelta por el backend en GET /api/me.
// CreatedAt se conserva tal cual lo envia el backend (ISO 8601 sin zona).
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Phone       string `json:"phone"`
	CreatedAt   string `json:"created_at"`
}

// SignupStatus refleja el avance del onboarding de un usuario.
type SignupStatus struct {
	SignupStep          string `json:"signup_step"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	SelectedPlanID      string `json:"selected_plan_id,omitempty"`
}

type ProfileUpdate struct {
	DisplayName string `json:"name"`
	Phone       string `json:"phone"`
}
