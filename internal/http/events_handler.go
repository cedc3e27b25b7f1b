package http

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/guard"
)

const eventWriteTimeout = 5 * time.Second

// sessionEvent es lo que la pestaña recibe por el socket de sesion.
type sessionEvent struct {
	Type     string                  `json:"type"`
	Session  *domain.SessionSnapshot `json:"session,omitempty"`
	Location string                  `json:"location,omitempty"`
}

// clientEvent es lo que la pestaña envia: la ruta que esta mostrando.
type clientEvent struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// EventsHandler empuja a cada pestaña sus snapshots de sesion y la navegacion forzada al login.
type EventsHandler struct {
	logger         *zap.Logger
	originPatterns []string
}

func NewEventsHandler(logger *zap.Logger, originPatterns []string) *EventsHandler {
	return &EventsHandler{logger: logger, originPatterns: originPatterns}
}

// Session maneja GET /ws/session.
func (h *EventsHandler) Session(c *gin.Context) {
	tab, ok := requireTab(c)
	if !ok {
		return
	}
	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "session ended")

	logger := h.logger.With(zap.String("device_id", tab.DeviceID), zap.String("tab_id", tab.TabID))
	logger.Debug("session socket opened")

	// La pestaña sigue viva mientras el socket este abierto aunque no haga requests.
	release := tab.Hold()
	defer release()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	snapshots, unsubscribe := tab.Store.Subscribe()
	defer unsubscribe()

	nav := guard.NewNavigator(c.Query("path"))
	var writeMu sync.Mutex
	write := func(ev sessionEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		wctx, wcancel := context.WithTimeout(ctx, eventWriteTimeout)
		defer wcancel()
		return ws.Write(wctx, websocket.MessageText, data)
	}

	go h.readLoop(ctx, cancel, ws, nav, logger)
	go tab.Store.Restore(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("session socket closed")
			return
		case snap := <-snapshots:
			if err := write(sessionEvent{Type: "snapshot", Session: &snap}); err != nil {
				logger.Debug("session socket write failed", zap.Error(err))
				return
			}
			if target, ok := nav.Observe(snap); ok {
				if err := write(sessionEvent{Type: "navigate", Location: target}); err != nil {
					logger.Debug("session socket write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func (h *EventsHandler) readLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, nav *guard.Navigator, logger *zap.Logger) {
	defer cancel()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				logger.Debug("session socket read error", zap.Error(err))
			}
			return
		}
		var ev clientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type == "location" && ev.Path != "" {
			nav.SetLocation(ev.Path)
		}
	}
}

// originHosts convierte los origenes permitidos en patrones de host para websocket.Accept.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
