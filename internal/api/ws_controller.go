package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSController upgrades /api/ws connections and registers them with the hub
type WSController struct {
	hub      *Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewWSController accepts any origin when origins is empty
func NewWSController(hub *Hub, origins []string, log *zap.Logger) *WSController {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &WSController{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return len(allowed) == 0 || allowed[r.Header.Get("Origin")]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeWS streams invoice events; client messages are read only to detect disconnects
func (wc *WSController) ServeWS(c *gin.Context) {
	conn, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	wc.hub.AddClient(conn)
	wc.log.Info("websocket client connected", zap.Int("clients", wc.hub.ClientsCount()))
	defer func() {
		wc.hub.RemoveClient(conn)
		wc.log.Info("websocket client disconnected", zap.Int("clients", wc.hub.ClientsCount()))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wc.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}
