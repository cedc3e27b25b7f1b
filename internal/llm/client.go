package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tyforge-web/internal/domain"
)

// HTTPClient implementa ChatClient contra el proxy de chat (/chat, /summarize, /generate-idea).
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando al servicio de chat.
func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
		logger:  logger,
	}
}

func (c *HTTPClient) Complete(ctx context.Context, messages []domain.ChatMessage, opts Options) (string, error) {
	reqBody := chatRequest{
		Messages:    make([]chatMessage, 0, len(messages)),
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	var cr chatResponse
	if err := c.post(ctx, "/chat", reqBody, &cr); err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", fmt.Errorf("llm api error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

func (c *HTTPClient) Summarize(ctx context.Context, text string, opts Options) (string, error) {
	reqBody := summarizeRequest{
		Text:        text,
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, "/summarize", reqBody, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(out.Summary), nil
}

func (c *HTTPClient) GenerateIdea(ctx context.Context, interests string, opts Options) (string, error) {
	reqBody := ideaRequest{
		Interests:   interests,
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	var out struct {
		Idea string `json:"idea"`
	}
	if err := c.post(ctx, "/generate-idea", reqBody, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Idea) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(out.Idea), nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in any, out any) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("llm error response", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type summarizeRequest struct {
	Text        string  `json:"text"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type ideaRequest struct {
	Interests   string  `json:"interests"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
