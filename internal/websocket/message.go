package websocket

import (
	"encoding/json"
	"time"

	"battle-service/internal/models"
)

type EventType string

const (
	// Client -> Server
	EventJoin         EventType = "join"
	EventReady        EventType = "ready"
	EventLeave        EventType = "leave"
	EventUpdateRoom   EventType = "updateRoom"
	EventStart        EventType = "start"
	EventRestart      EventType = "restart"
	EventSubmitAnswer EventType = "submitAnswer"
	EventPing         EventType = "ping"

	// Server -> Client
	EventConnected           EventType = "connected"
	EventParticipantsUpdated EventType = "participantsUpdated"
	EventRoomUpdated         EventType = "roomUpdated"
	EventState               EventType = "state"
	EventQuiz                EventType = "quiz"
	EventResult              EventType = "result"
	EventFinish              EventType = "finish"
	EventInvalid             EventType = "invalid"
	EventError               EventType = "error"
	EventPong                EventType = "pong"
)

type Message struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// InboundMessage defers payload decoding to the matching handler.
type InboundMessage struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	RoomID      string  `json:"room_id"`
	UserID      *string `json:"user_id,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Avatar      string  `json:"avatar,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"room_id"`
}

type UpdateRoomPayload struct {
	RoomID           string `json:"room_id"`
	FieldSlug        string `json:"field_slug"`
	MaxPlayers       int    `json:"max_players"`
	TimeLimitType    string `json:"time_limit_type"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
}

type SubmitAnswerPayload struct {
	RoomID string `json:"room_id"`
	QuizID string `json:"quiz_id"`
	Answer string `json:"answer"`
}

type ConnectedPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
}

type ParticipantsUpdatedPayload struct {
	RoomID            string            `json:"room_id"`
	Participants      []ParticipantView `json:"participants"`
	ReadyParticipants []string          `json:"ready_participants"`
}

type ParticipantView struct {
	ParticipantID string  `json:"participant_id"`
	UserID        *string `json:"user_id,omitempty"`
	DisplayName   string  `json:"display_name"`
	Avatar        string  `json:"avatar,omitempty"`
	Score         int     `json:"score"`
	IsHost        bool    `json:"is_host"`
	IsConnected   bool    `json:"is_connected"`
}

type RoomUpdatedPayload struct {
	RoomID           string `json:"room_id"`
	FieldSlug        string `json:"field_slug"`
	MaxPlayers       int    `json:"max_players"`
	TimeLimitType    string `json:"time_limit_type"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
}

type StatePayload struct {
	RoomID           string                `json:"room_id"`
	Status           string                `json:"status"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	Rankings         []models.RankingEntry `json:"rankings"`
}

type QuizPayload struct {
	RoomID   string    `json:"room_id"`
	QuizID   string    `json:"quiz_id"`
	Question string    `json:"question"`
	Options  []string  `json:"options,omitempty"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	EndsAt   time.Time `json:"ends_at"`
}

type ResultPayload struct {
	RoomID     string             `json:"room_id"`
	QuizID     string             `json:"quiz_id"`
	IsCorrect  bool               `json:"is_correct"`
	ScoreDelta int                `json:"score_delta"`
	TotalScore int                `json:"total_score"`
	QuizResult *models.QuizResult `json:"quiz_result,omitempty"`
}

type FinishPayload struct {
	RoomID   string                `json:"room_id"`
	Rankings []models.RankingEntry `json:"rankings"`
	Rewards  []RewardView          `json:"rewards"`
}

type RewardView struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
}

type InvalidPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
