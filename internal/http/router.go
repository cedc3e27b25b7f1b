package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/guard"
)

// Handlers agrupa los handlers que monta el router.
type Handlers struct {
	Session *SessionHandler
	Portal  *PortalHandler
	Chat    *ChatHandler
	Leads   *LeadHandler
	Events  *EventsHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
// identity resuelve la pestaña de cada request y protect es el guard de las paginas privadas.
func NewRouter(
	logger *zap.Logger,
	origins []string,
	identity gin.HandlerFunc,
	protect gin.HandlerFunc,
	h Handlers,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y CORS para el origen del frontend.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(origins))

	r.GET("/health", h.Portal.Health)

	api := r.Group("/api", noStoreMiddleware(), identity)
	api.GET("/session", h.Session.GetSession)
	api.POST("/login", h.Session.Login)
	api.POST("/logout", h.Session.Logout)
	api.POST("/signup", h.Session.Signup)

	api.GET("/plans", h.Portal.Plans)
	api.GET("/services", h.Portal.Services)
	api.GET("/black-book", h.Portal.BlackBook)

	api.GET("/contact", h.Leads.ContactChannels)
	api.POST("/contact", h.Leads.Contact)
	api.POST("/ideas/generate", h.Leads.GenerateIdea)
	api.POST("/ideas", h.Leads.SubmitIdea)
	api.POST("/approved-ideas", h.Leads.SubmitApprovedIdea)

	chat := api.Group("/chat")
	chat.POST("", h.Chat.Open)
	chat.GET("/quota", h.Chat.Quota)
	chat.GET("/:id", h.Chat.Get)
	chat.POST("/:id/messages", h.Chat.Send)
	chat.POST("/:id/dismiss", h.Chat.Dismiss)
	chat.POST("/:id/finalize", h.Chat.Finalize)
	chat.DELETE("/:id", h.Chat.Close)

	private := api.Group("", protect)
	private.GET("/dashboard", h.Portal.Dashboard)
	private.GET("/orders", h.Portal.Orders)
	private.GET("/projects", h.Portal.Projects)
	private.GET("/synopsis", h.Portal.Synopses)
	private.POST("/synopsis", h.Portal.UploadSynopsis)
	private.GET("/meetings", h.Portal.Meetings)
	private.POST("/meetings", h.Portal.BookMeeting)
	private.GET("/profile", h.Portal.Profile)
	private.PUT("/profile", h.Portal.UpdateProfile)
	private.POST("/select-plan", h.Portal.SelectPlan)
	private.POST("/project-setup", h.Portal.CreateProjectIdea)
	private.POST("/project-setup/:id/synopsis", h.Portal.UploadProjectSynopsis)
	private.POST("/request-admin-help", h.Portal.RequestAdminHelp)
	private.GET("/onboarding", h.Portal.Onboarding)
	private.POST("/onboarding", h.Portal.CompleteOnboarding)

	r.GET("/ws/session", identity, h.Events.Session)

	return r
}

// OriginPatterns adapta FRONTEND_ORIGINS a los patrones de host del websocket.
func OriginPatterns(origins []string) []string {
	return originHosts(origins)
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// noStoreMiddleware evita que el navegador cachee respuestas que dependen de la sesion.
func noStoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-store")
		c.Next()
	}
}

// corsMiddleware habilita credenciales solo para origenes explicitos.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		explicit := false
		wildcard := false
		for _, o := range allowedOrigins {
			if o == "*" {
				wildcard = true
			}
			if o != "*" && o == origin {
				explicit = true
			}
		}

		if origin != "" && (explicit || wildcard) {
			header := c.Writer.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type, "+TabHeaderName+", "+guard.PagePathHeader+", X-Requested-With")
			header.Add("Vary", "Origin")
			if explicit {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
