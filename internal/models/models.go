package models

import (
	"time"

	"battle-service/internal/constants"
)

// Room is the full state of one battle session. The store always holds
// the complete object; transitions produce a new copy rather than
// mutating in place.
type Room struct {
	RoomID            string        `json:"room_id"`
	HostParticipantID string        `json:"host_participant_id"`
	Status            string        `json:"status"` // "waiting", "in_progress", "finished", "invalid"
	Settings          RoomSettings  `json:"settings"`
	Participants      []Participant `json:"participants"` // join order
	ReadyParticipants []string      `json:"ready_participants"`

	InviteToken   string `json:"invite_token"`
	InviteExpired bool   `json:"invite_expired"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	CurrentQuizIndex int      `json:"current_quiz_index"`
	TotalQuizzes     int      `json:"total_quizzes"`
	QuizIDs          []string `json:"quiz_ids"`

	QuizEndsAt   *time.Time `json:"quiz_ends_at,omitempty"`
	ResultEndsAt *time.Time `json:"result_ends_at,omitempty"`
}

type RoomSettings struct {
	FieldSlug        string `json:"field_slug"`
	MaxPlayers       int    `json:"max_players"`
	TimeLimitType    string `json:"time_limit_type"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
}

type Participant struct {
	ParticipantID string       `json:"participant_id"`
	UserID        *string      `json:"user_id,omitempty"` // nil for guests
	DisplayName   string       `json:"display_name"`
	Avatar        string       `json:"avatar,omitempty"`
	Score         int          `json:"score"`
	Submissions   []Submission `json:"submissions"`
	IsConnected   bool         `json:"is_connected"`
	IsHost        bool         `json:"is_host"`
	JoinedAt      time.Time    `json:"joined_at"`
	LeftAt        *time.Time   `json:"left_at,omitempty"`
}

type Submission struct {
	QuizID      string      `json:"quiz_id"`
	IsCorrect   bool        `json:"is_correct"`
	ScoreDelta  int         `json:"score_delta"`
	TotalScore  int         `json:"total_score"`
	QuizResult  *QuizResult `json:"quiz_result,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// QuizResult carries the reveal shown to a participant after a round.
// Forced submissions have no explanation attached.
type QuizResult struct {
	Explanation     string `json:"explanation,omitempty"`
	CanonicalAnswer string `json:"canonical_answer,omitempty"`
}

type RankingEntry struct {
	Rank          int     `json:"rank"`
	ParticipantID string  `json:"participant_id"`
	UserID        *string `json:"user_id,omitempty"`
	DisplayName   string  `json:"display_name"`
	Score         int     `json:"score"`
}

// Clone deep-copies the room so callers can derive a next state without
// aliasing slices held by the store.
func (r Room) Clone() Room {
	next := r
	next.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		cp := p
		cp.Submissions = append([]Submission(nil), p.Submissions...)
		next.Participants[i] = cp
	}
	next.ReadyParticipants = append([]string(nil), r.ReadyParticipants...)
	next.QuizIDs = append([]string(nil), r.QuizIDs...)
	return next
}

// Participant returns a pointer into the room's participant list, or nil.
func (r *Room) Participant(participantID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].ParticipantID == participantID {
			return &r.Participants[i]
		}
	}
	return nil
}

func (r *Room) IsTerminal() bool {
	return r.Status == constants.RoomStatusFinished || r.Status == constants.RoomStatusInvalid
}
