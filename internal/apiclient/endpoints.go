package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"tyforge-web/internal/domain"
)

// TokenResponse es la respuesta de /api/login y /api/signup.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id,omitempty"`
	SignupStep  string `json:"signup_step,omitempty"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// backendPlan refleja el precio entero que envia el backend.
type backendPlan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        int      `json:"price"`
	Features     []string `json:"features"`
	BlogIncluded bool     `json:"blog_included"`
	MaxProjects  int      `json:"max_projects"`
	SupportLevel string   `json:"support_level"`
}

// Download es un archivo servido por el backend. El llamador debe cerrar Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", in, &out, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, fmt.Errorf("login response without access token")
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/signup", req, &out, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, fmt.Errorf("signup response without access token")
	}
	return &out, nil
}

// Me obtiene la identidad asociada al token vigente.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Plans lista los planes; el precio se formatea en rupias.
func (c *Client) Plans(ctx context.Context) ([]domain.Plan, error) {
	var raw []backendPlan
	if err := c.doJSON(ctx, http.MethodGet, "/api/plans", nil, &raw, false); err != nil {
		return nil, err
	}
	plans := make([]domain.Plan, 0, len(raw))
	for _, p := range raw {
		plan := domain.Plan{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        FormatPrice(p.Price),
			Features:     trimFeatures(p.Features),
			BlogIncluded: p.BlogIncluded,
			MaxProjects:  p.MaxProjects,
			SupportLevel: p.SupportLevel,
		}
		if plan.IsSoftware() {
			plan.Category = domain.PlanCategorySoftware
		} else {
			plan.Category = domain.PlanCategoryHardware
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// FormatPrice formatea un precio entero como lo muestran las paginas.
func FormatPrice(amount int) string {
	return fmt.Sprintf("₹%d", amount)
}

func trimFeatures(features []string) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (c *Client) Services(ctx context.Context) ([]domain.Service, error) {
	var out []domain.Service
	if err := c.doJSON(ctx, http.MethodGet, "/api/services", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SelectPlan(ctx context.Context, sel domain.PlanSelection) (*domain.ActionResult, error) {
	if sel.SelectedServices == nil {
		sel.SelectedServices = []string{}
	}
	return c.action(ctx, http.MethodPost, "/api/select-plan", sel)
}

func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := c.doJSON(ctx, http.MethodGet, "/api/orders", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Projects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Synopses(ctx context.Context) ([]domain.Synopsis, error) {
	var out []domain.Synopsis
	if err := c.doJSON(ctx, http.MethodGet, "/api/synopsis", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadSynopsis sube un PDF como multipart con el campo file.
func (c *Client) UploadSynopsis(ctx context.Context, filename string, content io.Reader) (*domain.ActionResult, error) {
	return c.upload(ctx, "/api/synopsis/upload", filename, content)
}

func (c *Client) CreateProjectIdea(ctx context.Context, idea domain.ProjectIdea) (*domain.ActionResult, error) {
	return c.action(ctx, http.MethodPost, "/api/create-project-idea", idea)
}

// UploadProjectSynopsis asocia el PDF al proyecto y completa el onboarding en el backend.
func (c *Client) UploadProjectSynopsis(ctx context.Context, projectID, filename string, content io.Reader) (*domain.ActionResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	return c.upload(ctx, "/api/upload-synopsis/"+url.PathEscape(projectID), filename, content)
}

func (c *Client) Meetings(ctx context.Context) ([]domain.Meeting, error) {
	var out []domain.Meeting
	if err := c.doJSON(ctx, http.MethodGet, "/api/meetings", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BookMeeting(ctx context.Context) (*domain.ActionResult, error) {
	return c.action(ctx, http.MethodPost, "/api/meetings/book", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.ActionResult, error) {
	return c.action(ctx, http.MethodPut, "/api/update-profile", update)
}

func (c *Client) RequestAdminHelp(ctx context.Context, req domain.AdminRequest) (*domain.ActionResult, error) {
	return c.action(ctx, http.MethodPost, "/api/request-admin-help", req)
}

func (c *Client) SignupStatus(ctx context.Context) (*domain.SignupStatus, error) {
	var out domain.SignupStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/signup-status", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteOnboarding(ctx context.Context) (*domain.ActionResult, error) {
	return c.action(ctx, http.MethodPost, "/api/complete-onboarding", nil)
}

// DownloadBlackBook abre el PDF publico del black book sin leerlo en memoria.
func (c *Client) DownloadBlackBook(ctx context.Context) (*Download, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/blackbook/download", nil, "", false)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Status: resp.StatusCode, Detail: decodeDetail(body)}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Download{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Filename:      "BlackBook.pdf",
	}, nil
}

// Health consulta el endpoint de salud del backend.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil, false)
}

func (c *Client) action(ctx context.Context, method, path string, in any) (*domain.ActionResult, error) {
	var out domain.ActionResult
	if err := c.doJSON(ctx, method, path, in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) upload(ctx context.Context, path, filename string, content io.Reader) (*domain.ActionResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, writer.FormDataContentType(), true)
	if err != nil {
		return nil, err
	}
	var out domain.ActionResult
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
