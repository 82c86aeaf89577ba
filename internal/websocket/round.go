package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"battle-service/internal/battle"
	"battle-service/internal/constants"
	"battle-service/internal/models"
	"battle-service/internal/scheduler"
)

// The quiz-round driver. Rounds advance exclusively through scheduled
// callbacks; client events can at most pull a deadline forward. Every
// callback re-reads the room from the store and no-ops when the room
// state is not the one it was armed for.

func (h *Hub) handleStart(c *Client, _ json.RawMessage) {
	mu := h.lockRoom(c.RoomID)
	mu.Lock()
	room, ok := h.store.Get(c.RoomID)
	if !ok {
		mu.Unlock()
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}
	if res := battle.ValidateStart(room, c.ParticipantID); !res.OK {
		mu.Unlock()
		c.SendError(res.Code, res.Message)
		return
	}
	fieldSlug := room.Settings.FieldSlug
	mu.Unlock()

	// Supplier call with no lock held; the room is re-validated below.
	quizIDs, err := h.supplier.SelectQuizSet(context.Background(), fieldSlug, h.quizCount)
	if err != nil {
		log.Printf("Failed to select quiz set for room %s: %v", c.RoomID, err)
		c.SendError(constants.CodeInvalidState, "quizzes unavailable")
		return
	}
	if len(quizIDs) == 0 {
		c.SendError(constants.CodeInvalidState, "no quizzes available for this field")
		return
	}

	mu.Lock()
	room, ok = h.store.Get(c.RoomID)
	if !ok {
		mu.Unlock()
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}
	if res := battle.ValidateStart(room, c.ParticipantID); !res.OK {
		mu.Unlock()
		c.SendError(res.Code, res.Message)
		return
	}

	next := battle.ApplyStart(room, time.Now(), quizIDs)
	h.store.Set(next)
	h.broadcast(c.RoomID, EventState, statePayload(next, time.Now()))
	mu.Unlock()

	log.Printf("Battle started: room=%s, quizzes=%d", c.RoomID, len(quizIDs))
	h.sendCurrentQuiz(c.RoomID, 0)
}

func (h *Hub) handleSubmitAnswer(c *Client, raw json.RawMessage) {
	var p SubmitAnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.SendError(constants.CodeInvalidState, "invalid submitAnswer payload")
		return
	}

	room, ok := h.store.Get(c.RoomID)
	if !ok {
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}
	if res := validateSubmission(room, c.ParticipantID, p.QuizID); !res.OK {
		c.SendError(res.Code, res.Message)
		return
	}

	// Grade with no lock held.
	grade, err := h.supplier.GradeSubmission(context.Background(), p.QuizID, p.Answer)
	if err != nil {
		log.Printf("Failed to grade quiz %s: %v", p.QuizID, err)
		c.SendError(constants.CodeInvalidState, "quiz unavailable")
		return
	}
	if grade == nil {
		c.SendError(constants.CodeInvalidState, "quiz not found")
		return
	}

	mu := h.lockRoom(c.RoomID)
	mu.Lock()
	defer mu.Unlock()

	// The room may have moved on while grading was in flight.
	room, ok = h.store.Get(c.RoomID)
	if !ok {
		c.SendError(constants.CodeRoomNotFound, "room not found")
		return
	}
	if res := validateSubmission(room, c.ParticipantID, p.QuizID); !res.OK {
		c.SendError(res.Code, res.Message)
		return
	}
	participant := room.Participant(c.ParticipantID)
	if participant == nil {
		c.SendError(constants.CodeInvalidState, "participant is not in the room")
		return
	}

	delta := constants.ScoreDeltaIncorrect
	if grade.IsCorrect {
		delta = constants.ScoreDeltaCorrect
	}

	next := battle.ApplySubmission(room, c.ParticipantID, models.Submission{
		QuizID:     p.QuizID,
		IsCorrect:  grade.IsCorrect,
		ScoreDelta: delta,
		TotalScore: participant.Score + delta,
		QuizResult: &models.QuizResult{
			Explanation:     grade.Explanation,
			CanonicalAnswer: grade.CanonicalAnswer,
		},
		SubmittedAt: time.Now(),
	})
	h.store.Set(next)

	h.broadcast(c.RoomID, EventState, statePayload(next, time.Now()))

	// Once everyone still connected has answered, pull the round
	// deadline forward; the index still only moves in the scheduled
	// callback.
	if allSubmitted(next, p.QuizID) {
		h.sched.Schedule(c.RoomID, time.Now(), scheduler.KindRoundTimeout, next.CurrentQuizIndex)
	}
}

func validateSubmission(room models.Room, participantID, quizID string) battle.Result {
	if room.Status == constants.RoomStatusWaiting {
		return battle.Result{Code: constants.CodeGameNotStarted, Message: "game has not started"}
	}
	if room.Status != constants.RoomStatusInProgress {
		return battle.Result{Code: constants.CodeInvalidState, Message: "game is not running"}
	}
	if quizID == "" || quizID != currentQuizID(room) {
		return battle.Result{Code: constants.CodeInvalidState, Message: "not the current quiz"}
	}
	if battle.HasSubmitted(room, participantID, quizID) {
		return battle.Result{Code: constants.CodeInvalidState, Message: "already submitted"}
	}
	return battle.Result{OK: true}
}

func allSubmitted(room models.Room, quizID string) bool {
	for _, p := range room.Participants {
		if p.IsConnected && !battle.HasSubmitted(room, p.ParticipantID, quizID) {
			return false
		}
	}
	return len(room.Participants) > 0
}

// sendCurrentQuiz delivers the quiz at the given index and arms the
// round-timeout timer. A missing quiz is broadcast as a non-fatal
// error and the driver stops advancing until the room is restarted.
func (h *Hub) sendCurrentQuiz(roomID string, quizIndex int) {
	room, ok := h.store.Get(roomID)
	if !ok || room.Status != constants.RoomStatusInProgress || room.CurrentQuizIndex != quizIndex {
		return
	}
	quizID := currentQuizID(room)
	if quizID == "" {
		return
	}

	view, err := h.supplier.GetQuizByID(context.Background(), quizID)
	if err != nil {
		log.Printf("Failed to fetch quiz %s for room %s: %v", quizID, roomID, err)
		h.broadcast(roomID, EventError, ErrorPayload{
			Code:    constants.CodeInvalidState,
			Message: "quiz unavailable",
		})
		return
	}
	if view == nil {
		log.Printf("Quiz %s not found for room %s", quizID, roomID)
		h.broadcast(roomID, EventError, ErrorPayload{
			Code:    constants.CodeInvalidState,
			Message: "quiz not found",
		})
		return
	}

	mu := h.lockRoom(roomID)
	mu.Lock()
	defer mu.Unlock()

	room, ok = h.store.Get(roomID)
	if !ok || room.Status != constants.RoomStatusInProgress || room.CurrentQuizIndex != quizIndex {
		return
	}

	now := time.Now()
	endsAt := now.Add(time.Duration(room.Settings.TimeLimitSeconds) * time.Second)
	next := room.Clone()
	next.QuizEndsAt = &endsAt
	next.ResultEndsAt = nil
	h.store.Set(next)

	h.broadcast(roomID, EventQuiz, QuizPayload{
		RoomID:   roomID,
		QuizID:   view.ID,
		Question: view.Question,
		Options:  view.Options,
		Index:    quizIndex,
		Total:    next.TotalQuizzes,
		EndsAt:   endsAt,
	})

	h.sched.Schedule(roomID, endsAt, scheduler.KindRoundTimeout, quizIndex)
}

func (h *Hub) onTimerFired(f scheduler.Fired) {
	switch f.Kind {
	case scheduler.KindRoundTimeout:
		h.closeRound(f.RoomID, f.QuizIndex)
	case scheduler.KindNextQuiz:
		h.sendCurrentQuiz(f.RoomID, f.QuizIndex)
	}
}

// closeRound ends the answering window for one quiz index: it fills
// in forced submissions for everyone who never answered, then either
// finishes the game or opens the reveal window for the next round.
func (h *Hub) closeRound(roomID string, quizIndex int) {
	mu := h.lockRoom(roomID)
	mu.Lock()
	defer mu.Unlock()

	room, ok := h.store.Get(roomID)
	if !ok || room.Status != constants.RoomStatusInProgress || room.CurrentQuizIndex != quizIndex {
		return
	}
	quizID := currentQuizID(room)
	if quizID == "" {
		return
	}

	now := time.Now()

	// Normalize: every connected participant gets a submission for the
	// round before scoring proceeds.
	for _, p := range room.Participants {
		if p.IsConnected && !battle.HasSubmitted(room, p.ParticipantID, quizID) {
			forced := battle.ForcedSubmission(*room.Participant(p.ParticipantID), quizID, now)
			room = battle.ApplySubmission(room, p.ParticipantID, forced)
		}
	}

	nextIndex := quizIndex + 1
	if nextIndex >= room.TotalQuizzes {
		finished := battle.ApplyFinish(room, now)
		h.store.Set(finished)
		h.sched.Cancel(roomID)

		rankings := battle.Rankings(finished)
		rewards := winnerRewards(rankings)
		h.broadcast(roomID, EventFinish, FinishPayload{
			RoomID:   roomID,
			Rankings: rankings,
			Rewards:  rewards,
		})

		log.Printf("Battle finished: room=%s, participants=%d", roomID, len(finished.Participants))
		go h.publishRewards(roomID, rewards)
		return
	}

	next := room.Clone()
	resultEndsAt := now.Add(h.revealWindow)
	next.CurrentQuizIndex = nextIndex
	next.QuizEndsAt = nil
	next.ResultEndsAt = &resultEndsAt
	h.store.Set(next)

	h.sendRoundResults(next, quizID)
	h.broadcast(roomID, EventState, statePayload(next, now))

	h.sched.Schedule(roomID, resultEndsAt, scheduler.KindNextQuiz, nextIndex)
}

// sendRoundResults delivers each participant's own result for the
// closed round to their connection only.
func (h *Hub) sendRoundResults(room models.Room, quizID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[room.RoomID] {
		p := room.Participant(client.ParticipantID)
		if p == nil {
			continue
		}
		for _, sub := range p.Submissions {
			if sub.QuizID != quizID {
				continue
			}
			client.SendEvent(EventResult, ResultPayload{
				RoomID:     room.RoomID,
				QuizID:     quizID,
				IsCorrect:  sub.IsCorrect,
				ScoreDelta: sub.ScoreDelta,
				TotalScore: sub.TotalScore,
				QuizResult: sub.QuizResult,
			})
			break
		}
	}
}

// winnerRewards credits every first-ranked participant with a known
// user id. Guests place in rankings but earn nothing.
func winnerRewards(rankings []models.RankingEntry) []RewardView {
	if len(rankings) == 0 {
		return nil
	}

	topScore := rankings[0].Score
	var rewards []RewardView
	for _, entry := range rankings {
		if entry.Score != topScore {
			break
		}
		if entry.UserID == nil {
			continue
		}
		rewards = append(rewards, RewardView{
			UserID: *entry.UserID,
			Amount: constants.DefaultWinnerCoins,
		})
	}
	return rewards
}

func (h *Hub) publishRewards(roomID string, rewards []RewardView) {
	if h.rewards == nil || len(rewards) == 0 {
		return
	}

	userIDs := make([]string, len(rewards))
	for i, r := range rewards {
		userIDs[i] = r.UserID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.rewards.CreditWinners(ctx, roomID, userIDs, constants.DefaultWinnerCoins); err != nil {
		log.Printf("Failed to publish rewards for room %s: %v", roomID, err)
	}
}
