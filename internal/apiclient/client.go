package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TokenSource lee el bearer token desde el almacenamiento persistente antes de cada request.
type TokenSource func(ctx context.Context) (string, error)

type authHeader struct {
	mu    sync.RWMutex
	token string
}

// Client envuelve la API REST del backend con base URL y token preconfigurados.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	tokens  TokenSource
	header  *authHeader
	fixed   string
}

// NewClient construye un cliente apuntando al backend. httpClient puede compartirse entre clientes.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
		tokens:  tokens,
		header:  &authHeader{},
	}
}

// SetAuthToken fija el header Authorization por defecto.
func (c *Client) SetAuthToken(token string) {
	c.header.mu.Lock()
	c.header.token = strings.TrimSpace(token)
	c.header.mu.Unlock()
}

// ClearAuthToken elimina el header Authorization por defecto.
func (c *Client) ClearAuthToken() {
	c.header.mu.Lock()
	c.header.token = ""
	c.header.mu.Unlock()
}

// AuthToken devuelve el header por defecto vigente.
func (c *Client) AuthToken() string {
	c.header.mu.RLock()
	defer c.header.mu.RUnlock()
	return c.header.token
}

// WithToken devuelve una copia que envia exactamente ese token, ignorando storage y header.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL: c.baseURL,
		http:    c.http,
		logger:  c.logger,
		header:  &authHeader{},
		fixed:   strings.TrimSpace(token),
	}
}

// APIError representa una respuesta no exitosa del backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend http error: status=%d", e.Status)
	}
	return fmt.Sprintf("backend http error: status=%d: %s", e.Status, e.Detail)
}

// IsUnauthorized indica token invalido, vencido o credenciales rechazadas.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// StatusCode devuelve el status del backend o 0 si el error no vino del backend.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func (c *Client) resolveToken(ctx context.Context) string {
	if c.fixed != "" {
		return c.fixed
	}
	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			c.logger.Warn("token source failed", zap.Error(err))
		} else if strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token)
		}
	}
	return c.AuthToken()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string, auth bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		if token := c.resolveToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, auth bool) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType, auth)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Debug("backend error response",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		return &APIError{Status: resp.StatusCode, Detail: decodeDetail(respBody)}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// decodeDetail extrae el campo detail de FastAPI; si no es texto devuelve el cuerpo recortado.
func decodeDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return text
		}
		return string(payload.Detail)
	}
	return truncate(strings.TrimSpace(string(body)), maxDetailBytes)
}

const maxDetailBytes = 200

// truncate corta text a lo sumo en limit bytes sin partir una runa.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
