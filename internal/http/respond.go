package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/guard"
	"tyforge-web/internal/session"
)

// respondBackendError traduce un fallo del backend. Un 401/403 invalida la sesion de la pestaña
// y responde con el redirect al login; el resto es 502 sin tocar el estado previo.
func respondBackendError(c *gin.Context, tab *session.Tab, logger *zap.Logger, op string, err error) {
	if apiclient.IsUnauthorized(err) && tab != nil {
		tab.Store.Logout(c.Request.Context())
		decision := guard.Decide(tab.Store.Snapshot(), guard.PagePath(c))
		tab.Store.SetPendingRedirect(decision.From)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": decision.Location})
		return
	}
	logger.Warn(op+" failed", zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func requireTab(c *gin.Context) (*session.Tab, bool) {
	tab, ok := CurrentTab(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session not available"})
		return nil, false
	}
	return tab, true
}
