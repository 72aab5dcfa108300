package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"trading-backbone/src/models"
	"trading-backbone/src/registry"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// WebSocket endpoint
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

// handleWebSocket authenticates the ?token= query parameter, upgrades the
// connection and hands it to the registry. Browsers cannot set headers on
// websocket handshakes, hence the query parameter.
func (s *Server) handleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token query parameter required"})
		return
	}

	subject, err := s.coordinator.Tokens.VerifyAccess(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Error("WebSocket upgrade failed for %s: %v", subject, err)
		return
	}

	client := registry.NewClient(s.registry, conn, subject, s.Logger)
	s.registry.Connect(client)

	go client.WritePump()
	client.ReadPump(s.handleClientMessage)
}

// -----------------------------------------------------------------------------
// Client message dispatch
// -----------------------------------------------------------------------------

func (s *Server) handleClientMessage(client *registry.Client, raw []byte) {
	var cmd models.MWsCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.sendEvent(client, &models.MWsEvent{
			Type:    models.WsTypeError,
			Message: "Invalid message format",
		})
		return
	}

	switch cmd.Type {
	case "subscribe_stock":
		if err := s.registry.Subscribe(client.Subject(), cmd.StockName); err != nil {
			s.sendEvent(client, &models.MWsEvent{
				Type:    models.WsTypeSubscriptionError,
				Message: "Stock name is required",
			})
		}

	case "unsubscribe_stock":
		s.registry.Unsubscribe(client.Subject(), cmd.StockName)

	case "get_subscriptions":
		s.sendEvent(client, &models.MWsEvent{
			Type:          models.WsTypeSubscriptionsList,
			Subscriptions: s.registry.Subscriptions(client.Subject()),
		})

	case "ping":
		s.sendEvent(client, &models.MWsEvent{
			Type:      models.WsTypePong,
			Timestamp: cmd.Timestamp,
		})

	default:
		s.sendEvent(client, &models.MWsEvent{
			Type:    models.WsTypeError,
			Message: fmt.Sprintf("Unknown message type: %s", cmd.Type),
		})
	}
}

// -----------------------------------------------------------------------------

func (s *Server) sendEvent(client *registry.Client, event *models.MWsEvent) {
	if err := client.Send(event); err != nil {
		s.Logger.Warning("Failed to queue %s event for %s: %v", event.Type, client.Subject(), err)
	}
}
