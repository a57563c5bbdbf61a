package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/monitoring"
	"github.com/llm-monitor/backend/pkg/logger"
)

const pingInterval = 30 * time.Second

type WebSocketHandler struct {
	events *monitoring.Broadcaster
}

func NewWebSocketHandler(events *monitoring.Broadcaster) *WebSocketHandler {
	return &WebSocketHandler{events: events}
}

// Upgrade only lets websocket handshakes through to the stream route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// StreamProgress forwards monitoring progress events to the client until it
// disconnects. Incoming messages are read only to notice the close.
func (h *WebSocketHandler) StreamProgress(c *websocket.Conn) {
	events, unsubscribe := h.events.Subscribe()
	logger.Info("Progress stream connected", zap.Int("subscribers", h.events.Subscribers()))

	defer func() {
		unsubscribe()
		c.Close()
		logger.Info("Progress stream closed")
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := c.WriteJSON(fiber.Map{"type": "connected", "time": time.Now().UTC()}); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(e); err != nil {
				logger.Debug("Progress stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
