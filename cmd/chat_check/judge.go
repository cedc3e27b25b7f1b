package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/llm"
)

// judgeResponse es la salida JSON del juez.
type judgeResponse struct {
	Reasoning      string `json:"reasoning"`
	RelevanceScore int    `json:"relevance_score"`
	FocusScore     int    `json:"focus_score"`
}

// heuristics son chequeos locales que no dependen del juez.
type heuristics struct {
	Questions    int
	MentionsPlan bool
	PromptLeak   bool
	OffTopic     bool
}

var promptLeakSignals = []string{
	"system prompt",
	"you are a helpful",
	"as an ai language model",
	"my instructions",
}

var offTopicSignals = []string{
	"recipe",
	"weather",
	"stock price",
	"horoscope",
}

func analyze(plan domain.Plan, reply string) heuristics {
	l := strings.ToLower(reply)
	h := heuristics{
		Questions:    strings.Count(reply, "?"),
		MentionsPlan: strings.Contains(l, strings.ToLower(plan.Name)),
	}
	for _, s := range promptLeakSignals {
		if strings.Contains(l, s) {
			h.PromptLeak = true
			break
		}
	}
	for _, s := range offTopicSignals {
		if strings.Contains(l, s) {
			h.OffTopic = true
			break
		}
	}
	return h
}

func (h heuristics) String() string {
	return fmt.Sprintf("preguntas=%d menciona_plan=%t fuga_prompt=%t fuera_de_tema=%t",
		h.Questions, h.MentionsPlan, h.PromptLeak, h.OffTopic)
}

func evaluateReply(ctx context.Context, judge llm.ChatClient, plan domain.Plan, sc Scenario, input, reply string) (judgeResponse, error) {
	h := analyze(plan, reply)
	prompt := buildJudgePrompt(plan, h, input, reply, sc.Expected)

	raw, err := judge.Complete(ctx, []domain.ChatMessage{{Role: domain.RoleUser, Content: prompt}}, llm.ChatOptions)
	if err != nil {
		return judgeResponse{}, err
	}

	jsonStr := extractFirstJSONObject(raw)
	if jsonStr == "" {
		return judgeResponse{}, fmt.Errorf("judge returned no json: %q", raw)
	}

	var jr judgeResponse
	if err := json.Unmarshal([]byte(jsonStr), &jr); err != nil {
		return judgeResponse{}, fmt.Errorf("parse judge json: %w (raw=%q)", err, jsonStr)
	}

	jr.RelevanceScore = clamp1to5(jr.RelevanceScore)
	jr.FocusScore = clamp1to5(jr.FocusScore)

	// una respuesta que filtra el prompt nunca es relevante
	if h.PromptLeak {
		jr.RelevanceScore = 1
	}
	if h.Questions > 2 && jr.FocusScore > 3 {
		jr.FocusScore = 3
	}
	return jr, nil
}

func clamp1to5(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func buildJudgePrompt(plan domain.Plan, h heuristics, input, reply, expected string) string {
	return fmt.Sprintf(
		`You are reviewing a sales assistant that collects project requirements for a student project plan.

Plan: %s (%s)
Features: %s
Local checks: %s

User message: %q
Assistant reply: %q
Expected behavior: %s

Score from 1 to 5:
1) relevance: does the reply stay on the project and the selected plan?
2) focus: does it ask for one missing detail at a time, without long lists?

Answer ONLY with JSON (no markdown):
{
  "reasoning": "...",
  "relevance_score": 0,
  "focus_score": 0
}`,
		plan.Name, plan.Price, strings.Join(plan.Features, ", "), h, input, reply, expected,
	)
}

// extractFirstJSONObject devuelve el primer objeto {...} balanceado.
func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
