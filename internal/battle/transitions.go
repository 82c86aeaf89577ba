package battle

import (
	"sort"
	"time"

	"battle-service/internal/constants"
	"battle-service/internal/models"
)

// Pure room transitions. None of these touch the store, the clock or
// any I/O; the current time is always passed in by the caller. Each
// mutating transition takes the room by value and returns the next
// state, leaving the input untouched.

type RoomParams struct {
	RoomID      string
	InviteToken string
	Settings    models.RoomSettings
}

// NewRoom builds the initial waiting room with no participants. The
// HTTP creation endpoint is the only caller.
func NewRoom(params RoomParams) models.Room {
	settings := params.Settings
	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = constants.DefaultMaxPlayers
	}
	if settings.TimeLimitSeconds <= 0 {
		settings.TimeLimitSeconds = constants.DefaultTimeLimitSeconds
	}
	if settings.TimeLimitType == "" {
		settings.TimeLimitType = constants.TimeLimitTypeNormal
	}
	return models.Room{
		RoomID:            params.RoomID,
		Status:            constants.RoomStatusWaiting,
		Settings:          settings,
		Participants:      []models.Participant{},
		ReadyParticipants: []string{},
		InviteToken:       params.InviteToken,
	}
}

func ValidateJoin(room models.Room) Result {
	if room.InviteExpired || room.Status != constants.RoomStatusWaiting {
		return roomNotJoinable()
	}
	if len(room.Participants) >= room.Settings.MaxPlayers {
		return roomFull()
	}
	return ok()
}

// ApplyJoin appends the participant in join order. The first joiner of
// a hostless room becomes host.
func ApplyJoin(room models.Room, participant models.Participant) models.Room {
	next := room.Clone()
	if next.HostParticipantID == "" {
		next.HostParticipantID = participant.ParticipantID
	}
	participant.IsHost = participant.ParticipantID == next.HostParticipantID
	participant.IsConnected = true
	next.Participants = append(next.Participants, participant)
	return next
}

func ValidateUpdateRoom(room models.Room, requesterID string) Result {
	if room.Status != constants.RoomStatusWaiting {
		return invalidState("settings can only change while waiting")
	}
	if room.HostParticipantID != requesterID {
		return notHost()
	}
	return ok()
}

// ApplyUpdateRoom replaces the settings wholesale, with the same
// nonpositive-value defaulting as NewRoom. MaxPlayers never drops below
// the current roster, so an update cannot strand a room unjoinable.
func ApplyUpdateRoom(room models.Room, settings models.RoomSettings) models.Room {
	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = constants.DefaultMaxPlayers
	}
	if settings.MaxPlayers < len(room.Participants) {
		settings.MaxPlayers = len(room.Participants)
	}
	if settings.TimeLimitSeconds <= 0 {
		settings.TimeLimitSeconds = constants.DefaultTimeLimitSeconds
	}
	if settings.TimeLimitType == "" {
		settings.TimeLimitType = constants.TimeLimitTypeNormal
	}
	next := room.Clone()
	next.Settings = settings
	return next
}

func ValidateReady(room models.Room, participantID string) Result {
	if room.Status != constants.RoomStatusWaiting {
		return alreadyStarted()
	}
	p := room.Participant(participantID)
	if p == nil || !p.IsConnected {
		return invalidState("participant is not in the room")
	}
	return ok()
}

// ApplyReady records a readiness acknowledgement. Idempotent.
func ApplyReady(room models.Room, participantID string) models.Room {
	next := room.Clone()
	for _, id := range next.ReadyParticipants {
		if id == participantID {
			return next
		}
	}
	next.ReadyParticipants = append(next.ReadyParticipants, participantID)
	return next
}

// ApplyLeave marks the participant as gone, applies the abandonment
// penalty, removes disconnected participants from the live list and
// re-derives the host. A room left with fewer than two participants
// flips to invalid unless it was already terminal.
func ApplyLeave(room models.Room, participantID string, now time.Time, penaltyScore int) models.Room {
	next := room.Clone()

	for i := range next.Participants {
		if next.Participants[i].ParticipantID == participantID {
			left := now
			next.Participants[i].IsConnected = false
			next.Participants[i].LeftAt = &left
			next.Participants[i].Score += penaltyScore
			break
		}
	}

	remaining := next.Participants[:0]
	for _, p := range next.Participants {
		if p.IsConnected {
			remaining = append(remaining, p)
		}
	}
	next.Participants = remaining

	// Host goes to the earliest remaining joiner when the host left.
	if next.Participant(next.HostParticipantID) == nil {
		next.HostParticipantID = ""
		if len(next.Participants) > 0 {
			next.HostParticipantID = next.Participants[0].ParticipantID
		}
	}
	for i := range next.Participants {
		next.Participants[i].IsHost = next.Participants[i].ParticipantID == next.HostParticipantID
	}

	ready := next.ReadyParticipants[:0]
	for _, id := range next.ReadyParticipants {
		if p := next.Participant(id); p != nil && p.IsConnected {
			ready = append(ready, id)
		}
	}
	next.ReadyParticipants = ready

	if len(next.Participants) < constants.MinPlayersToStart && !next.IsTerminal() {
		next.Status = constants.RoomStatusInvalid
		ended := now
		next.EndedAt = &ended
	}
	return next
}

func ValidateStart(room models.Room, requesterID string) Result {
	if room.Status != constants.RoomStatusWaiting {
		return alreadyStarted()
	}
	if room.HostParticipantID != requesterID {
		return notHost()
	}
	if len(room.Participants) < constants.MinPlayersToStart {
		return invalidState("need at least 2 participants to start")
	}
	return ok()
}

func ApplyStart(room models.Room, now time.Time, quizIDs []string) models.Room {
	next := room.Clone()
	started := now
	next.Status = constants.RoomStatusInProgress
	next.InviteExpired = true
	next.ReadyParticipants = []string{}
	next.StartedAt = &started
	next.EndedAt = nil
	next.CurrentQuizIndex = 0
	next.QuizIDs = append([]string(nil), quizIDs...)
	next.TotalQuizzes = len(quizIDs)
	return next
}

func ValidateRestart(room models.Room) Result {
	if !room.IsTerminal() {
		return invalidState("room is not finished")
	}
	return ok()
}

// ApplyRestart returns a terminal room to the lobby. Participants and
// settings survive; quiz bookkeeping and the deadline stamps do not.
func ApplyRestart(room models.Room) models.Room {
	next := room.Clone()
	next.Status = constants.RoomStatusWaiting
	next.InviteExpired = false
	next.StartedAt = nil
	next.EndedAt = nil
	next.CurrentQuizIndex = 0
	next.TotalQuizzes = 0
	next.QuizIDs = nil
	next.QuizEndsAt = nil
	next.ResultEndsAt = nil
	next.ReadyParticipants = []string{}
	for i := range next.Participants {
		next.Participants[i].Score = 0
		next.Participants[i].Submissions = nil
	}
	return next
}

func ApplyFinish(room models.Room, now time.Time) models.Room {
	next := room.Clone()
	ended := now
	next.Status = constants.RoomStatusFinished
	next.EndedAt = &ended
	next.QuizEndsAt = nil
	next.ResultEndsAt = nil
	return next
}

// ApplySubmission records an already-graded submission. The caller
// computed the score; this only appends and overwrites the
// participant's total.
func ApplySubmission(room models.Room, participantID string, sub models.Submission) models.Room {
	next := room.Clone()
	p := next.Participant(participantID)
	if p == nil {
		return next
	}
	p.Submissions = append(p.Submissions, sub)
	p.Score = sub.TotalScore
	return next
}

// HasSubmitted reports whether the participant already has a recorded
// submission for the quiz. Duplicates must never double-count.
func HasSubmitted(room models.Room, participantID, quizID string) bool {
	p := room.Participant(participantID)
	if p == nil {
		return false
	}
	for _, s := range p.Submissions {
		if s.QuizID == quizID {
			return true
		}
	}
	return false
}

// ForcedSubmission synthesizes the incorrect answer recorded for a
// participant who let the round time out.
func ForcedSubmission(p models.Participant, quizID string, now time.Time) models.Submission {
	return models.Submission{
		QuizID:      quizID,
		IsCorrect:   false,
		ScoreDelta:  constants.ScoreDeltaIncorrect,
		TotalScore:  p.Score + constants.ScoreDeltaIncorrect,
		SubmittedAt: now,
	}
}

// Rankings sorts participants by score descending. The sort is stable
// and the participant list is join-ordered, so ties keep join order.
func Rankings(room models.Room) []models.RankingEntry {
	ordered := append([]models.Participant(nil), room.Participants...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	entries := make([]models.RankingEntry, len(ordered))
	for i, p := range ordered {
		entries[i] = models.RankingEntry{
			Rank:          i + 1,
			ParticipantID: p.ParticipantID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
		}
	}
	return entries
}
