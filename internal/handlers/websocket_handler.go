package handlers

import (
	"log"
	"net/http"

	"battle-service/config"
	ws "battle-service/internal/websocket"
	"battle-service/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins in prod
	},
}

type WebSocketHandler struct {
	hub    *ws.Hub
	config *config.Config
}

func NewWebSocketHandler(hub *ws.Hub, cfg *config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		config: cfg,
	}
}

// HandleWebSocket upgrades a connection into a room-scoped battle
// channel. The invite token must name the room being joined; the room
// itself decides joinability once the join event arrives.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	roomID := c.Query("room_id")
	inviteToken := c.Query("invite_token")

	if roomID == "" || inviteToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing room_id or invite_token"})
		return
	}

	claims, err := token.ValidateInviteToken(inviteToken, h.config.Battle.InviteSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid invite token"})
		return
	}
	if claims.RoomID != roomID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invite token is for a different room"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, uuid.NewString(), roomID)

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
