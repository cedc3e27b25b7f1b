package http

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/service"
	"tyforge-web/internal/session"
)

const (
	DeviceCookieName = "tyforge_device"
	TabHeaderName    = "X-Tab-ID"
	DefaultTabID     = "default"

	tabContextKey = "session_tab"
)

var tabIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// IdentityMiddleware identifica el navegador por su cookie firmada y la pestaña por X-Tab-ID,
// y deja en el contexto la pestaña del registry.
func IdentityMiddleware(devices *service.DeviceTokenService, tabs *session.Registry, secureCookie bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if devices == nil || tabs == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "device identity not configured"})
			c.Abort()
			return
		}

		deviceID := ""
		if cookie, err := c.Cookie(DeviceCookieName); err == nil {
			if id, err := devices.Parse(cookie); err == nil {
				deviceID = id
			}
		}
		if deviceID == "" {
			id, token, err := devices.Issue()
			if err != nil {
				logger.Error("device token issue failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not establish device identity"})
				c.Abort()
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(DeviceCookieName, token, int(devices.TTL().Seconds()), "/", "", secureCookie, true)
			deviceID = id
		}

		c.Set(tabContextKey, tabs.Tab(deviceID, tabIDFromRequest(c)))
		c.Next()
	}
}

// CurrentTab obtiene la pestaña resuelta por IdentityMiddleware.
func CurrentTab(c *gin.Context) (*session.Tab, bool) {
	val, ok := c.Get(tabContextKey)
	if !ok {
		return nil, false
	}
	tab, ok := val.(*session.Tab)
	return tab, ok && tab != nil
}

// CurrentStore adapta CurrentTab al resolver del guard.
func CurrentStore(c *gin.Context) *session.Store {
	tab, ok := CurrentTab(c)
	if !ok {
		return nil
	}
	return tab.Store
}

// ChatOwner es la clave de dueño de las conversaciones de una pestaña.
func ChatOwner(deviceID, tabID string) string {
	return deviceID + "|" + tabID
}

// el websocket del navegador no puede enviar headers: se acepta tambien ?tab_id=
func tabIDFromRequest(c *gin.Context) string {
	id := c.GetHeader(TabHeaderName)
	if id == "" {
		id = c.Query("tab_id")
	}
	id = strings.TrimSpace(id)
	if id == "" || !tabIDPattern.MatchString(id) {
		return DefaultTabID
	}
	return id
}
