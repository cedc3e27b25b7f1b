package service

import (
	"regexp"
	"strings"
)

var (
	fenceStart = regexp.MustCompile("(?is)^\\s*```[a-z]*\\s*")
	fenceEnd   = regexp.MustCompile("(?is)\\s*```\\s*$")
	ideaLabel  = regexp.MustCompile(`(?i)^\s*(project\s+)?idea\s*:\s*`)
)

// cleanIdeaText quita fences, BOM, comillas envolventes y el prefijo "Idea:" de la respuesta remota.
func cleanIdeaText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "\uFEFF")
	s = fenceStart.ReplaceAllString(s, "")
	s = fenceEnd.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = ideaLabel.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
