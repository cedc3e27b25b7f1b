package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/service"
	"tyforge-web/internal/session"
)

const defaultLoginRedirect = "/dashboard"

// SessionHandler expone el session store de la pestaña: estado, login, logout y signup.
type SessionHandler struct {
	logger      *zap.Logger
	limiter     service.LoginRateLimiter
	restoreWait time.Duration
}

func NewSessionHandler(logger *zap.Logger, limiter service.LoginRateLimiter, restoreWait time.Duration) *SessionHandler {
	if limiter == nil {
		limiter = service.NewLoginRateLimiter(service.DefaultLoginWindow, service.DefaultLoginMax)
	}
	if restoreWait <= 0 {
		restoreWait = 2 * time.Second
	}
	return &SessionHandler{
		logger:      logger,
		limiter:     limiter,
		restoreWait: restoreWait,
	}
}

// GetSession maneja GET /api/session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	h.restore(c.Request.Context(), tab.Store)
	c.JSON(http.StatusOK, gin.H{"session": tab.Store.Snapshot()})
}

// Login maneja POST /api/login.
func (h *SessionHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": session.ErrMissingCredentials.Error()})
		return
	}
	tab, ok := requireTab(c)
	if !ok {
		return
	}

	if !h.limiter.Allow(service.LoginLimitKey(tab.DeviceID, req.Email)) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": service.ErrRateLimited.Error()})
		return
	}

	if err := tab.Store.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		h.loginFailed(c, err)
		return
	}

	redirect, ok := tab.Store.ConsumePendingRedirect()
	if !ok {
		redirect = defaultLoginRedirect
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  tab.Store.Snapshot(),
		"redirect": redirect,
	})
}

// Logout maneja POST /api/logout. Es idempotente.
func (h *SessionHandler) Logout(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	tab.Store.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"session": tab.Store.Snapshot()})
}

// Signup maneja POST /api/signup: crea la cuenta y abre la sesion con las mismas credenciales.
func (h *SessionHandler) Signup(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Phone    string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, password and name are required"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidEmail.Error()})
		return
	}
	tab, ok := requireTab(c)
	if !ok {
		return
	}

	created, err := tab.Client.Signup(c.Request.Context(), apiclient.SignupRequest{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
	})
	if err != nil {
		if status := apiclient.StatusCode(err); status >= 400 && status < 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": backendDetail(err)})
			return
		}
		respondBackendError(c, nil, h.logger, "signup", err)
		return
	}

	if err := tab.Store.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		h.loginFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session":     tab.Store.Snapshot(),
		"signup_step": created.SignupStep,
	})
}

func (h *SessionHandler) loginFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrLoginSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apiclient.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": backendDetail(err)})
	default:
		h.logger.Warn("login failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (h *SessionHandler) restore(ctx context.Context, store *session.Store) {
	ctx, cancel := context.WithTimeout(ctx, h.restoreWait)
	defer cancel()
	store.Restore(ctx)
}

// backendDetail devuelve el texto que el backend puso en detail, o el error completo.
func backendDetail(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
