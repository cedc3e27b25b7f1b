package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/service"
)

// LeadHandler atiende los formularios publicos: contacto, generador de ideas e ideas aprobadas.
type LeadHandler struct {
	logger  *zap.Logger
	leads   *service.LeadService
	ideas   *service.IdeaService
	numbers service.WhatsAppNumbers
}

func NewLeadHandler(logger *zap.Logger, leads *service.LeadService, ideas *service.IdeaService, numbers service.WhatsAppNumbers) *LeadHandler {
	return &LeadHandler{
		logger:  logger,
		leads:   leads,
		ideas:   ideas,
		numbers: numbers,
	}
}

// ContactChannels maneja GET /api/contact.
func (h *LeadHandler) ContactChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": service.ContactChannels(h.numbers)})
}

// Contact maneja POST /api/contact.
func (h *LeadHandler) Contact(c *gin.Context) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid contact request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.submit(c, service.LeadInput{
		Source:  domain.LeadSourceContact,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Body:    req.Message,
	})
}

// GenerateIdea maneja POST /api/ideas/generate.
func (h *LeadHandler) GenerateIdea(c *gin.Context) {
	var req struct {
		Interests string `json:"interests"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	res, err := h.ideas.Generate(c.Request.Context(), req.Interests)
	if err != nil {
		if errors.Is(err, service.ErrEmptyInterests) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("generate idea failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate idea"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// SubmitIdea maneja POST /api/ideas.
func (h *LeadHandler) SubmitIdea(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		Phone     string `json:"phone"`
		Interests string `json:"interests"`
		Idea      string `json:"idea"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.submit(c, service.LeadInput{
		Source:  domain.LeadSourceIdea,
		Name:    req.Name,
		Phone:   req.Phone,
		Subject: req.Interests,
		Body:    req.Idea,
	})
}

// SubmitApprovedIdea maneja POST /api/approved-ideas.
func (h *LeadHandler) SubmitApprovedIdea(c *gin.Context) {
	var req struct {
		Name         string `json:"name"`
		Phone        string `json:"phone"`
		ApprovedIdea string `json:"approved_idea"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.submit(c, service.LeadInput{
		Source: domain.LeadSourceApprovedIdea,
		Name:   req.Name,
		Phone:  req.Phone,
		Body:   req.ApprovedIdea,
	})
}

func (h *LeadHandler) submit(c *gin.Context, input service.LeadInput) {
	if tab, ok := CurrentTab(c); ok {
		input.DeviceID = tab.DeviceID
	}
	lead, err := h.leads.Submit(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLead),
			errors.Is(err, service.ErrInvalidPhone),
			errors.Is(err, service.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("store lead failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit form"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead_id": lead.ID, "status": "received"})
}
