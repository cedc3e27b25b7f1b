package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const wrapWidth = 80

var (
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("3"))
)

// newRenderer devuelve una funcion que pinta markdown. Sin renderer, o con plain, devuelve el texto tal cual.
func newRenderer(plain bool) func(string) string {
	if plain {
		return strings.TrimSpace
	}
	// estilo fijo: WithAutoStyle consulta al terminal y puede bloquear
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return strings.TrimSpace
	}
	return func(md string) string {
		md = strings.TrimSpace(md)
		if md == "" {
			return ""
		}
		out, err := r.Render(md)
		if err != nil {
			return md
		}
		return strings.Trim(out, "\n")
	}
}
