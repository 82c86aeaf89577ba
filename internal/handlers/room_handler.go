package handlers

import (
	"log"
	"net/http"

	"battle-service/config"
	"battle-service/internal/battle"
	"battle-service/internal/models"
	"battle-service/internal/store"
	"battle-service/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoomHandler struct {
	store  store.Store
	config *config.Config
}

func NewRoomHandler(roomStore store.Store, cfg *config.Config) *RoomHandler {
	return &RoomHandler{
		store:  roomStore,
		config: cfg,
	}
}

type createRoomRequest struct {
	FieldSlug        string `json:"field_slug" binding:"required"`
	MaxPlayers       int    `json:"max_players"`
	TimeLimitType    string `json:"time_limit_type"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
}

type createRoomResponse struct {
	RoomID      string `json:"room_id"`
	InviteToken string `json:"invite_token"`
}

// CreateRoom mints a waiting room and its invite token. This is the
// only writer of a room's initial state; everything after creation
// happens over the websocket channel.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID := uuid.NewString()
	inviteToken, err := token.GenerateInviteToken(roomID, h.config.Battle.InviteSecret, h.config.Battle.InviteLifetime)
	if err != nil {
		log.Printf("Failed to generate invite token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	room := battle.NewRoom(battle.RoomParams{
		RoomID:      roomID,
		InviteToken: inviteToken,
		Settings: models.RoomSettings{
			FieldSlug:        req.FieldSlug,
			MaxPlayers:       req.MaxPlayers,
			TimeLimitType:    req.TimeLimitType,
			TimeLimitSeconds: req.TimeLimitSeconds,
		},
	})
	h.store.Set(room)

	log.Printf("Room created: room=%s, field=%s", roomID, req.FieldSlug)

	c.JSON(http.StatusCreated, createRoomResponse{
		RoomID:      roomID,
		InviteToken: inviteToken,
	})
}

// GetRoom reports joinability for the lobby screen.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("id")

	room, ok := h.store.Get(roomID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	res := battle.ValidateJoin(room)
	c.JSON(http.StatusOK, gin.H{
		"room_id":      room.RoomID,
		"status":       room.Status,
		"joinable":     res.OK,
		"participants": len(room.Participants),
		"max_players":  room.Settings.MaxPlayers,
		"field_slug":   room.Settings.FieldSlug,
	})
}
