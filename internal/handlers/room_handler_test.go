package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle-service/config"
	"battle-service/internal/store"
	"battle-service/pkg/token"
)

func testRouter() (*gin.Engine, *store.MemoryStore, *config.Config) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Battle.InviteSecret = "test-secret"
	cfg.Battle.InviteLifetime = time.Minute

	roomStore := store.NewMemoryStore()
	handler := NewRoomHandler(roomStore, cfg)

	router := gin.New()
	router.POST("/rooms", handler.CreateRoom)
	router.GET("/rooms/:id", handler.GetRoom)
	return router, roomStore, cfg
}

func TestCreateRoom(t *testing.T) {
	router, roomStore, cfg := testRouter()

	body := `{"field_slug":"algorithms","max_players":2,"time_limit_type":"short"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		RoomID      string `json:"room_id"`
		InviteToken string `json:"invite_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RoomID)
	require.NotEmpty(t, resp.InviteToken)

	claims, err := token.ValidateInviteToken(resp.InviteToken, cfg.Battle.InviteSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.RoomID, claims.RoomID)

	room, ok := roomStore.Get(resp.RoomID)
	require.True(t, ok)
	assert.Equal(t, "waiting", room.Status)
	assert.Equal(t, 2, room.Settings.MaxPlayers)
	assert.Empty(t, room.Participants)
}

func TestCreateRoomMissingField(t *testing.T) {
	router, _, _ := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoom(t *testing.T) {
	router, _, _ := testRouter()

	body := `{"field_slug":"algorithms"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		RoomID string `json:"room_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/rooms/"+resp.RoomID, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var info struct {
		Joinable bool   `json:"joinable"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.True(t, info.Joinable)
	assert.Equal(t, "waiting", info.Status)
}

func TestGetRoomNotFound(t *testing.T) {
	router, _, _ := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rooms/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
