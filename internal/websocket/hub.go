package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"battle-service/internal/battle"
	"battle-service/internal/constants"
	"battle-service/internal/models"
	"battle-service/internal/quiz"
	"battle-service/internal/reward"
	"battle-service/internal/scheduler"
	"battle-service/internal/store"
)

// Hub is the session orchestrator. It is the only component with I/O
// and time side effects: every inbound event is validated, run through
// a pure transition, persisted and then broadcast. Per-room mutexes
// serialize client events against timer callbacks; Quiz Supplier calls
// are never made while a room lock is held.
type Hub struct {
	clients    map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	store    store.Store
	supplier quiz.Supplier
	rewards  reward.Publisher
	sched    *scheduler.Scheduler

	roomMu    sync.Mutex
	roomLocks map[string]*sync.Mutex

	dispatch map[EventType]func(*Client, json.RawMessage)

	revealWindow time.Duration
	quizCount    int
}

func NewHub(roomStore store.Store, supplier quiz.Supplier, rewards reward.Publisher, quizCount int) *Hub {
	if quizCount <= 0 {
		quizCount = constants.DefaultQuizCount
	}
	h := &Hub{
		clients:      make(map[string]map[*Client]bool),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		store:        roomStore,
		supplier:     supplier,
		rewards:      rewards,
		roomLocks:    make(map[string]*sync.Mutex),
		revealWindow: constants.ResultRevealWindow,
		quizCount:    quizCount,
	}
	h.sched = scheduler.New(h.onTimerFired)

	// Explicit dispatch table; one handler per inbound event.
	h.dispatch = map[EventType]func(*Client, json.RawMessage){
		EventJoin:         h.handleJoin,
		EventReady:        h.handleReady,
		EventLeave:        h.handleLeave,
		EventUpdateRoom:   h.handleUpdateRoom,
		EventStart:        h.handleStart,
		EventRestart:      h.handleRestart,
		EventSubmitAnswer: h.handleSubmitAnswer,
		EventPing:         h.handlePing,
	}
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop releases every armed timer. Used on shutdown.
func (h *Hub) Stop() {
	h.sched.Stop()
}

func (h *Hub) registerClient(client *Client) {
	h.subscribe(client)

	log.Printf("Client registered: participant=%s, room=%s", client.ParticipantID, client.RoomID)

	client.SendEvent(EventConnected, ConnectedPayload{
		RoomID:        client.RoomID,
		ParticipantID: client.ParticipantID,
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if clients, ok := h.clients[client.RoomID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.Send)
			if len(clients) == 0 {
				delete(h.clients, client.RoomID)
			}
			log.Printf("Client unregistered: participant=%s, room=%s", client.ParticipantID, client.RoomID)
		}
	}
	h.mu.Unlock()

	// A dropped socket and an explicit leave take the same path. This
	// keys off the participant record, not the subscriber set: a
	// connection that sent leave and then rejoined is no longer in the
	// set it was first registered under, but its death must still
	// reach the room. leaveRoom no-ops when the participant is gone.
	h.leaveRoom(client)
}

// Dispatch routes an inbound message to its handler. Unknown events
// are an error to the sender only.
func (h *Hub) Dispatch(client *Client, msg InboundMessage) {
	handler, ok := h.dispatch[msg.Type]
	if !ok {
		client.SendError(constants.CodeInvalidState, fmt.Sprintf("unknown event: %s", msg.Type))
		return
	}
	handler(client, msg.Payload)
}

// lockRoom returns the mutex serializing all state changes for one
// room. Timer callbacks and client events share it.
func (h *Hub) lockRoom(roomID string) *sync.Mutex {
	h.roomMu.Lock()
	defer h.roomMu.Unlock()

	m, ok := h.roomLocks[roomID]
	if !ok {
		m = &sync.Mutex{}
		h.roomLocks[roomID] = m
	}
	return m
}

// RoomLock exposes the per-room mutex so the expiry sweeper can
// serialize deletions against live handlers.
func (h *Hub) RoomLock(roomID string) sync.Locker {
	return h.lockRoom(roomID)
}

// ReleaseRoom drops everything the hub tracks for a room id. The
// expiry sweeper calls this right after deleting the room, while still
// holding the room's lock.
func (h *Hub) ReleaseRoom(roomID string) {
	h.sched.Cancel(roomID)

	h.roomMu.Lock()
	delete(h.roomLocks, roomID)
	h.roomMu.Unlock()

	h.mu.Lock()
	delete(h.clients, roomID)
	h.mu.Unlock()
}

func (h *Hub) handleJoin(c *Client, raw json.RawMessage) {
	var p JoinPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			c.SendError(constants.CodeInvalidState, "invalid join payload")
			return
		}
	}

	mu := h.lockRoom(c.RoomID)
	mu.Lock()
	defer mu.Unlock()

	room, ok := h.store.Get(c.RoomID)
	if !ok {
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}

	if room.Participant(c.ParticipantID) != nil {
		// second join on the same connection; just resend the roster
		h.subscribe(c)
		c.SendEvent(EventParticipantsUpdated, participantsPayload(room))
		return
	}

	if res := battle.ValidateJoin(room); !res.OK {
		c.SendError(res.Code, res.Message)
		return
	}

	c.UserID = p.UserID
	c.DisplayName = p.DisplayName
	if c.DisplayName == "" {
		c.DisplayName = "guest-" + shortID(c.ParticipantID)
	}
	c.Avatar = p.Avatar

	next := battle.ApplyJoin(room, models.Participant{
		ParticipantID: c.ParticipantID,
		UserID:        c.UserID,
		DisplayName:   c.DisplayName,
		Avatar:        c.Avatar,
		JoinedAt:      time.Now(),
	})
	h.store.Set(next)

	// A connection that left earlier dropped out of the subscriber
	// set; joining puts it back so broadcasts and the disconnect path
	// see it again.
	h.subscribe(c)

	h.broadcast(c.RoomID, EventParticipantsUpdated, participantsPayload(next))
}

func (h *Hub) subscribe(c *Client) {
	h.mu.Lock()
	if h.clients[c.RoomID] == nil {
		h.clients[c.RoomID] = make(map[*Client]bool)
	}
	h.clients[c.RoomID][c] = true
	h.mu.Unlock()
}

func (h *Hub) handleReady(c *Client, _ json.RawMessage) {
	mu := h.lockRoom(c.RoomID)
	mu.Lock()
	defer mu.Unlock()

	room, ok := h.store.Get(c.RoomID)
	if !ok {
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}

	if res := battle.ValidateReady(room, c.ParticipantID); !res.OK {
		c.SendError(res.Code, res.Message)
		return
	}

	next := battle.ApplyReady(room, c.ParticipantID)
	h.store.Set(next)

	h.broadcast(c.RoomID, EventParticipantsUpdated, participantsPayload(next))
}

func (h *Hub) handleLeave(c *Client, _ json.RawMessage) {
	h.mu.Lock()
	if clients, ok := h.clients[c.RoomID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.clients, c.RoomID)
		}
	}
	h.mu.Unlock()

	h.leaveRoom(c)
}

// leaveRoom routes both explicit leaves and disconnects. Abandoning an
// unanswered round costs the leaver the incorrect-answer penalty.
func (h *Hub) leaveRoom(c *Client) {
	mu := h.lockRoom(c.RoomID)
	mu.Lock()
	defer mu.Unlock()

	room, ok := h.store.Get(c.RoomID)
	if !ok {
		return
	}
	if room.Participant(c.ParticipantID) == nil {
		return
	}

	penalty := 0
	if room.Status == constants.RoomStatusInProgress {
		if quizID := currentQuizID(room); quizID != "" && !battle.HasSubmitted(room, c.ParticipantID, quizID) {
			penalty = constants.ScoreDeltaIncorrect
		}
	}

	next := battle.ApplyLeave(room, c.ParticipantID, time.Now(), penalty)
	h.store.Set(next)

	if next.IsTerminal() {
		h.sched.Cancel(c.RoomID)
	}

	h.broadcast(c.RoomID, EventParticipantsUpdated, participantsPayload(next))

	if next.Status == constants.RoomStatusInvalid && room.Status != constants.RoomStatusInvalid {
		h.broadcast(c.RoomID, EventInvalid, InvalidPayload{
			RoomID: c.RoomID,
			Reason: "not enough participants",
		})
		h.broadcast(c.RoomID, EventState, statePayload(next, time.Now()))
	}
}

func (h *Hub) handleUpdateRoom(c *Client, raw json.RawMessage) {
	var p UpdateRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.SendError(constants.CodeInvalidState, "invalid updateRoom payload")
		return
	}

	mu := h.lockRoom(c.RoomID)
	mu.Lock()
	defer mu.Unlock()

	room, ok := h.store.Get(c.RoomID)
	if !ok {
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}

	if res := battle.ValidateUpdateRoom(room, c.ParticipantID); !res.OK {
		c.SendError(res.Code, res.Message)
		return
	}

	settings := models.RoomSettings{
		FieldSlug:        p.FieldSlug,
		MaxPlayers:       p.MaxPlayers,
		TimeLimitType:    p.TimeLimitType,
		TimeLimitSeconds: p.TimeLimitSeconds,
	}
	if settings.TimeLimitSeconds <= 0 {
		settings.TimeLimitSeconds = timeLimitFor(settings.TimeLimitType)
	}

	next := battle.ApplyUpdateRoom(room, settings)
	h.store.Set(next)

	h.broadcast(c.RoomID, EventRoomUpdated, RoomUpdatedPayload{
		RoomID:           next.RoomID,
		FieldSlug:        next.Settings.FieldSlug,
		MaxPlayers:       next.Settings.MaxPlayers,
		TimeLimitType:    next.Settings.TimeLimitType,
		TimeLimitSeconds: next.Settings.TimeLimitSeconds,
	})
}

func (h *Hub) handleRestart(c *Client, _ json.RawMessage) {
	mu := h.lockRoom(c.RoomID)
	mu.Lock()
	defer mu.Unlock()

	room, ok := h.store.Get(c.RoomID)
	if !ok {
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}

	if res := battle.ValidateRestart(room); !res.OK {
		c.SendError(res.Code, res.Message)
		return
	}

	next := battle.ApplyRestart(room)
	h.store.Set(next)
	h.sched.Cancel(c.RoomID)

	h.broadcast(c.RoomID, EventState, statePayload(next, time.Now()))
	h.broadcast(c.RoomID, EventParticipantsUpdated, participantsPayload(next))
}

func (h *Hub) handlePing(c *Client, _ json.RawMessage) {
	c.SendEvent(EventPong, nil)
}

func (h *Hub) broadcast(roomID string, eventType EventType, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[roomID] {
		client.SendEvent(eventType, payload)
	}
}

func participantsPayload(room models.Room) ParticipantsUpdatedPayload {
	views := make([]ParticipantView, len(room.Participants))
	for i, p := range room.Participants {
		views[i] = ParticipantView{
			ParticipantID: p.ParticipantID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			Avatar:        p.Avatar,
			Score:         p.Score,
			IsHost:        p.IsHost,
			IsConnected:   p.IsConnected,
		}
	}
	return ParticipantsUpdatedPayload{
		RoomID:            room.RoomID,
		Participants:      views,
		ReadyParticipants: append([]string{}, room.ReadyParticipants...),
	}
}

func statePayload(room models.Room, now time.Time) StatePayload {
	return StatePayload{
		RoomID:           room.RoomID,
		Status:           room.Status,
		RemainingSeconds: remainingSeconds(room, now),
		Rankings:         battle.Rankings(room),
	}
}

// remainingSeconds derives the countdown from the persisted deadline
// stamps rather than any in-memory timer state.
func remainingSeconds(room models.Room, now time.Time) int {
	var deadline *time.Time
	switch {
	case room.QuizEndsAt != nil:
		deadline = room.QuizEndsAt
	case room.ResultEndsAt != nil:
		deadline = room.ResultEndsAt
	default:
		return 0
	}

	remaining := int(deadline.Sub(now).Round(time.Second).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func currentQuizID(room models.Room) string {
	if room.CurrentQuizIndex < 0 || room.CurrentQuizIndex >= len(room.QuizIDs) {
		return ""
	}
	return room.QuizIDs[room.CurrentQuizIndex]
}

func timeLimitFor(timeLimitType string) int {
	switch timeLimitType {
	case constants.TimeLimitTypeShort:
		return 10
	case constants.TimeLimitTypeLong:
		return 40
	default:
		return constants.DefaultTimeLimitSeconds
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
