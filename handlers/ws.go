package handlers

import (
	"encoding/json"
	"time"

	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
	"go.uber.org/zap"
)

// WSHandler pushes rate table changes to connected clients.
type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 4 * 1024

	// Keep-Alive Configuration (Critical for Railway/Cloud hosting)
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		utils.Logger().Info("✅ Rates client connected", zap.String("ip", utils.MaskIP(s.Request.RemoteAddr)))
	})

	m.HandleDisconnect(func(s *melody.Session) {
		utils.Logger().Info("🔌 Rates client disconnected")
	})

	m.HandleError(func(s *melody.Session, err error) {
		utils.Logger().Warn("❌ WebSocket error", zap.Error(err))
	})

	return &WSHandler{M: m}
}

// HandleWS upgrades GET /ws/rates.
func (h *WSHandler) HandleWS(c *gin.Context) {
	if err := h.M.HandleRequest(c.Writer, c.Request); err != nil {
		utils.Logger().Warn("❌ Failed to upgrade websocket", zap.Error(err))
	}
}

// PublishRatesUpdated broadcasts an import result to every client.
func (h *WSHandler) PublishRatesUpdated(event models.RatesUpdatedEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		utils.Logger().Warn("⚠️ Failed to encode rates event", zap.Error(err))
		return
	}
	if err := h.M.Broadcast(msg); err != nil {
		utils.Logger().Warn("⚠️ Error broadcasting rates update", zap.Error(err))
	}
}

func (h *WSHandler) Close() error {
	return h.M.Close()
}
