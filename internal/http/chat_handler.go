package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/chat"
	"tyforge-web/internal/domain"
	"tyforge-web/internal/service"
)

// ChatHandler mantiene dependencias para el asistente de chat de los planes.
type ChatHandler struct {
	logger  *zap.Logger
	chats   *chat.Registry
	leads   *service.LeadService
	public  *apiclient.Client
	numbers service.WhatsAppNumbers
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(
	logger *zap.Logger,
	chats *chat.Registry,
	leads *service.LeadService,
	public *apiclient.Client,
	numbers service.WhatsAppNumbers,
) *ChatHandler {
	return &ChatHandler{
		logger:  logger,
		chats:   chats,
		leads:   leads,
		public:  public,
		numbers: numbers,
	}
}

// Open maneja POST /api/chat. Abrir siempre empieza una conversacion nueva.
func (h *ChatHandler) Open(c *gin.Context) {
	var req struct {
		PlanID   string       `json:"plan_id"`
		PlanName string       `json:"plan_name"`
		Category string       `json:"category"`
		Plan     *domain.Plan `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid open chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	tab, ok := requireTab(c)
	if !ok {
		return
	}

	plan, ok := h.resolvePlan(c.Request.Context(), req.Plan, req.PlanID, req.PlanName, req.Category)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
		return
	}

	conv := h.chats.Open(ChatOwner(tab.DeviceID, tab.TabID), plan)
	h.logger.Info("chat opened", zap.String("conversation_id", conv.ID()), zap.String("plan", plan.Name))
	c.JSON(http.StatusCreated, gin.H{"conversation": conv.State()})
}

// Get maneja GET /api/chat/:id.
func (h *ChatHandler) Get(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv.State()})
}

// Send maneja POST /api/chat/:id/messages.
func (h *ChatHandler) Send(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv, ok := h.conversation(c)
	if !ok {
		return
	}

	turn, err := conv.Send(c.Request.Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, chat.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("chat send failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"turn":         turn,
		"conversation": conv.State(),
	})
}

// Dismiss maneja POST /api/chat/:id/dismiss.
func (h *ChatHandler) Dismiss(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	conv.Dismiss()
	c.JSON(http.StatusOK, gin.H{"conversation": conv.State()})
}

// Finalize maneja POST /api/chat/:id/finalize: resume, guarda el lead y devuelve el deep link.
func (h *ChatHandler) Finalize(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	tab, _ := CurrentTab(c)

	var redirectURL string
	res, err := conv.Finalize(c.Request.Context(), func(ctx context.Context, res chat.FinalizeResult) error {
		summary := service.LastSystemContent(res.Messages)
		redirectURL = service.BuildWhatsAppLink(res.Plan, summary, h.numbers)
		h.storeLead(ctx, tab.DeviceID, res, summary)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrCannotFinalize), errors.Is(err, chat.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("chat finalize failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not finalize chat"})
		}
		return
	}

	_ = h.chats.Close(ChatOwner(tab.DeviceID, tab.TabID), conv.ID())
	c.JSON(http.StatusOK, gin.H{
		"redirect_url": redirectURL,
		"summary":      res.Summary,
		"messages":     res.Messages,
	})
}

// Close maneja DELETE /api/chat/:id y descarta la transcripcion.
func (h *ChatHandler) Close(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	if err := h.chats.Close(ChatOwner(tab.DeviceID, tab.TabID), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Quota maneja GET /api/chat/quota.
func (h *ChatHandler) Quota(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"quota": h.chats.Breaker().Status()})
}

func (h *ChatHandler) conversation(c *gin.Context) (*chat.Assistant, bool) {
	tab, ok := requireTab(c)
	if !ok {
		return nil, false
	}
	conv, err := h.chats.Get(ChatOwner(tab.DeviceID, tab.TabID), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return conv, true
}

// resolvePlan acepta el plan completo o lo busca por id o nombre en el backend y en el catalogo incorporado.
func (h *ChatHandler) resolvePlan(ctx context.Context, plan *domain.Plan, id, name, category string) (domain.Plan, bool) {
	if plan != nil && plan.Name != "" {
		return *plan, true
	}
	if h.public != nil {
		if plans, err := h.public.Plans(ctx); err == nil {
			if p, ok := service.FindPlan(plans, id, name, category); ok {
				return p, true
			}
		} else {
			h.logger.Warn("backend plans unavailable for chat", zap.Error(err))
		}
	}
	return service.FindPlan(service.BuiltinPlans(), id, name, category)
}

// el lead del chat no bloquea el deep link: WhatsApp es el canal de pedido.
func (h *ChatHandler) storeLead(ctx context.Context, deviceID string, res chat.FinalizeResult, summary string) {
	if h.leads == nil {
		return
	}
	_, err := h.leads.Submit(ctx, service.LeadInput{
		Source:   domain.LeadSourceChat,
		Name:     res.UserName,
		PlanName: res.Plan.Name,
		Subject:  res.Plan.Name + " inquiry",
		Body:     summary,
		DeviceID: deviceID,
	})
	if err != nil {
		h.logger.Warn("chat lead not stored", zap.Error(err))
	}
}
