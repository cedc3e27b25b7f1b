package http

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/domain"
	"tyforge-web/internal/service"
)

const maxUploadBytes = 10 << 20

// PortalHandler atiende las paginas que son un formulario o listado contra el backend.
type PortalHandler struct {
	logger *zap.Logger
	public *apiclient.Client
}

// NewPortalHandler recibe un cliente sin token para las rutas publicas.
func NewPortalHandler(logger *zap.Logger, public *apiclient.Client) *PortalHandler {
	return &PortalHandler{logger: logger, public: public}
}

// Health maneja GET /health.
func (h *PortalHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	backend := "ok"
	if err := h.public.Health(ctx); err != nil {
		backend = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": backend})
}

// Plans maneja GET /api/plans. Si el backend falla se sirve el catalogo incorporado.
func (h *PortalHandler) Plans(c *gin.Context) {
	plans, err := h.public.Plans(c.Request.Context())
	if err != nil || len(plans) == 0 {
		if err != nil {
			h.logger.Warn("backend plans unavailable, serving builtin catalog", zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"plans": service.BuiltinPlans(), "source": "builtin"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans, "source": "backend"})
}

// Services maneja GET /api/services.
func (h *PortalHandler) Services(c *gin.Context) {
	services, err := h.public.Services(c.Request.Context())
	if err != nil {
		respondBackendError(c, nil, h.logger, "list services", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

// BlackBook maneja GET /api/black-book y reenvia el PDF sin cargarlo en memoria.
func (h *PortalHandler) BlackBook(c *gin.Context) {
	dl, err := h.public.DownloadBlackBook(c.Request.Context())
	if err != nil {
		respondBackendError(c, nil, h.logger, "black book download", err)
		return
	}
	defer dl.Body.Close()
	c.DataFromReader(http.StatusOK, dl.ContentLength, dl.ContentType, dl.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, dl.Filename),
	})
}

// Dashboard maneja GET /api/dashboard.
func (h *PortalHandler) Dashboard(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orders, err := tab.Client.Orders(ctx)
	if err != nil {
		respondBackendError(c, tab, h.logger, "dashboard orders", err)
		return
	}
	projects, err := tab.Client.Projects(ctx)
	if err != nil {
		respondBackendError(c, tab, h.logger, "dashboard projects", err)
		return
	}
	meetings, err := tab.Client.Meetings(ctx)
	if err != nil {
		respondBackendError(c, tab, h.logger, "dashboard meetings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":     tab.Store.Snapshot().User,
		"orders":   orders,
		"projects": projects,
		"meetings": meetings,
	})
}

// Orders maneja GET /api/orders.
func (h *PortalHandler) Orders(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	orders, err := tab.Client.Orders(c.Request.Context())
	if err != nil {
		respondBackendError(c, tab, h.logger, "list orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Projects maneja GET /api/projects.
func (h *PortalHandler) Projects(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	projects, err := tab.Client.Projects(c.Request.Context())
	if err != nil {
		respondBackendError(c, tab, h.logger, "list projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Synopses maneja GET /api/synopsis.
func (h *PortalHandler) Synopses(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	synopses, err := tab.Client.Synopses(c.Request.Context())
	if err != nil {
		respondBackendError(c, tab, h.logger, "list synopses", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synopses": synopses})
}

// UploadSynopsis maneja POST /api/synopsis. Solo acepta PDF.
func (h *PortalHandler) UploadSynopsis(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	filename, file, ok := h.pdfUpload(c)
	if !ok {
		return
	}
	defer file.Close()

	res, err := tab.Client.UploadSynopsis(c.Request.Context(), filename, file)
	if err != nil {
		respondBackendError(c, tab, h.logger, "upload synopsis", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Meetings maneja GET /api/meetings.
func (h *PortalHandler) Meetings(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	meetings, err := tab.Client.Meetings(c.Request.Context())
	if err != nil {
		respondBackendError(c, tab, h.logger, "list meetings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}

// BookMeeting maneja POST /api/meetings.
func (h *PortalHandler) BookMeeting(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	res, err := tab.Client.BookMeeting(c.Request.Context())
	if err != nil {
		respondBackendError(c, tab, h.logger, "book meeting", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Profile maneja GET /api/profile con el usuario que ya tiene el store.
func (h *PortalHandler) Profile(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": tab.Store.Snapshot().User})
}

// UpdateProfile maneja PUT /api/profile.
func (h *PortalHandler) UpdateProfile(c *gin.Context) {
	var req domain.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.DisplayName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	res, err := tab.Client.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		respondBackendError(c, tab, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SelectPlan maneja POST /api/select-plan.
func (h *PortalHandler) SelectPlan(c *gin.Context) {
	var req domain.PlanSelection
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PlanID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	if req.SelectedServices == nil {
		req.SelectedServices = []string{}
	}
	res, err := tab.Client.SelectPlan(c.Request.Context(), req)
	if err != nil {
		respondBackendError(c, tab, h.logger, "select plan", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateProjectIdea maneja POST /api/project-setup.
func (h *PortalHandler) CreateProjectIdea(c *gin.Context) {
	var req domain.ProjectIdea
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and description are required"})
		return
	}
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	res, err := tab.Client.CreateProjectIdea(c.Request.Context(), req)
	if err != nil {
		respondBackendError(c, tab, h.logger, "create project idea", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// UploadProjectSynopsis maneja POST /api/project-setup/:id/synopsis.
func (h *PortalHandler) UploadProjectSynopsis(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	filename, file, ok := h.pdfUpload(c)
	if !ok {
		return
	}
	defer file.Close()

	res, err := tab.Client.UploadProjectSynopsis(c.Request.Context(), c.Param("id"), filename, file)
	if err != nil {
		respondBackendError(c, tab, h.logger, "upload project synopsis", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RequestAdminHelp maneja POST /api/request-admin-help.
func (h *PortalHandler) RequestAdminHelp(c *gin.Context) {
	var req domain.AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.RequestType = strings.TrimSpace(req.RequestType)
	if req.RequestType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_type is required"})
		return
	}
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	res, err := tab.Client.RequestAdminHelp(c.Request.Context(), req)
	if err != nil {
		respondBackendError(c, tab, h.logger, "request admin help", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Onboarding maneja GET /api/onboarding.
func (h *PortalHandler) Onboarding(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	status, err := tab.Client.SignupStatus(c.Request.Context())
	if err != nil {
		respondBackendError(c, tab, h.logger, "signup status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// CompleteOnboarding maneja POST /api/onboarding.
func (h *PortalHandler) CompleteOnboarding(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	res, err := tab.Client.CompleteOnboarding(c.Request.Context())
	if err != nil {
		respondBackendError(c, tab, h.logger, "complete onboarding", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// pdfUpload valida el campo "file": tiene que ser un PDF dentro del limite de tamaño.
func (h *PortalHandler) pdfUpload(c *gin.Context) (string, multipart.File, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", nil, false
	}
	name := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if !strings.EqualFold(filepath.Ext(name), ".pdf") || (contentType != "" && contentType != "application/pdf" && contentType != "application/octet-stream") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF files are allowed"})
		return "", nil, false
	}
	file, err := header.Open()
	if err != nil {
		h.logger.Warn("open upload failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return "", nil, false
	}
	return name, file, true
}
