package service

import (
	"fmt"
	"net/url"
	"strings"

	"tyforge-web/internal/domain"
)

const (
	whatsAppBase   = "https://wa.me/"
	inquiryFooter  = "[This message was generated from the tyforge]"
	contactEmail   = "pravinpatil90939@gmail.com"
	contactSubject = "TY Project Inquiry"
)

// WhatsAppNumbers son los destinos por categoria de plan.
type WhatsAppNumbers struct {
	Software string
	Hardware string
}

func (n WhatsAppNumbers) forPlan(plan domain.Plan) string {
	if plan.IsSoftware() {
		return n.Software
	}
	return n.Hardware
}

// InquiryMessage arma el texto que se envia por WhatsApp al finalizar un chat.
func InquiryMessage(plan domain.Plan, summary string) string {
	return fmt.Sprintf("*New %s Inquiry*\n\n%s\n\n%s", plan.Name, summary, inquiryFooter)
}

// BuildWhatsAppLink devuelve el deep link hacia el numero de la categoria del plan.
func BuildWhatsAppLink(plan domain.Plan, summary string, numbers WhatsAppNumbers) string {
	return whatsAppLink(numbers.forPlan(plan), InquiryMessage(plan, summary))
}

// LastSystemContent devuelve el contenido del ultimo mensaje de sistema de la conversacion.
func LastSystemContent(messages []domain.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleSystem {
			return messages[i].Content
		}
	}
	return ""
}

// ContactChannel es un canal de contacto directo de la pagina de contacto.
type ContactChannel struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ContactChannels lista los enlaces de la pagina de contacto.
func ContactChannels(numbers WhatsAppNumbers) []ContactChannel {
	return []ContactChannel{
		{Label: "hardware", URL: whatsAppLink(numbers.Hardware, "Hi Pravin! I need help with my TY hardware project.")},
		{Label: "software", URL: whatsAppLink(numbers.Software, "Hi Akhilesh! I need help with my TY software project.")},
		{Label: "support", URL: whatsAppLink(numbers.Hardware, "Hi! I need help with my TY project.")},
		{Label: "email", URL: "mailto:" + contactEmail + "?subject=" + encodeURIComponent(contactSubject)},
	}
}

func whatsAppLink(number, text string) string {
	number = strings.TrimPrefix(strings.TrimSpace(number), "+")
	return whatsAppBase + number + "?text=" + encodeURIComponent(text)
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapa igual que el navegador para que el texto llegue intacto a WhatsApp.
func encodeURIComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
