package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle-service/internal/constants"
	"battle-service/internal/models"
)

func testRoom(maxPlayers int) models.Room {
	return NewRoom(RoomParams{
		RoomID:      "room-1",
		InviteToken: "tok",
		Settings: models.RoomSettings{
			FieldSlug:        "algorithms",
			MaxPlayers:       maxPlayers,
			TimeLimitType:    constants.TimeLimitTypeNormal,
			TimeLimitSeconds: 20,
		},
	})
}

func participant(id string) models.Participant {
	return models.Participant{
		ParticipantID: id,
		DisplayName:   "player " + id,
		JoinedAt:      time.Now(),
	}
}

func joined(maxPlayers int, ids ...string) models.Room {
	room := testRoom(maxPlayers)
	for _, id := range ids {
		room = ApplyJoin(room, participant(id))
	}
	return room
}

func assertHostInvariant(t *testing.T, room models.Room) {
	t.Helper()
	hosts := 0
	for _, p := range room.Participants {
		if p.IsHost {
			hosts++
			assert.Equal(t, room.HostParticipantID, p.ParticipantID)
		}
	}
	if len(room.Participants) > 0 {
		assert.Equal(t, 1, hosts, "exactly one host expected")
	} else {
		assert.Zero(t, hosts)
	}
}

func TestNewRoomDefaults(t *testing.T) {
	room := NewRoom(RoomParams{RoomID: "r", InviteToken: "t"})

	assert.Equal(t, constants.RoomStatusWaiting, room.Status)
	assert.Empty(t, room.Participants)
	assert.Equal(t, constants.DefaultMaxPlayers, room.Settings.MaxPlayers)
	assert.Equal(t, constants.DefaultTimeLimitSeconds, room.Settings.TimeLimitSeconds)
	assert.False(t, room.InviteExpired)
}

func TestJoinFullRoom(t *testing.T) {
	// Scenario: maxPlayers 2, two joins succeed, third is rejected.
	room := testRoom(2)

	require.True(t, ValidateJoin(room).OK)
	room = ApplyJoin(room, participant("p1"))
	require.True(t, ValidateJoin(room).OK)
	room = ApplyJoin(room, participant("p2"))

	res := ValidateJoin(room)
	assert.False(t, res.OK)
	assert.Equal(t, constants.CodeRoomFull, res.Code)
	assertHostInvariant(t, room)
}

func TestJoinRejectedOutsideWaiting(t *testing.T) {
	room := joined(4, "p1", "p2")
	room = ApplyStart(room, time.Now(), []string{"q1"})

	res := ValidateJoin(room)
	assert.False(t, res.OK)
	assert.Equal(t, constants.CodeRoomNotJoinable, res.Code)
}

func TestJoinRejectedWhenInviteExpired(t *testing.T) {
	room := testRoom(4)
	room.InviteExpired = true

	res := ValidateJoin(room)
	assert.False(t, res.OK)
	assert.Equal(t, constants.CodeRoomNotJoinable, res.Code)
}

func TestFirstJoinerBecomesHost(t *testing.T) {
	room := joined(4, "p1", "p2")

	assert.Equal(t, "p1", room.HostParticipantID)
	assert.True(t, room.Participants[0].IsHost)
	assert.False(t, room.Participants[1].IsHost)
}

func TestUpdateRoomValidation(t *testing.T) {
	room := joined(4, "p1", "p2")

	assert.True(t, ValidateUpdateRoom(room, "p1").OK)

	res := ValidateUpdateRoom(room, "p2")
	assert.Equal(t, constants.CodeNotHost, res.Code)

	started := ApplyStart(room, time.Now(), []string{"q1"})
	res = ValidateUpdateRoom(started, "p1")
	assert.Equal(t, constants.CodeInvalidState, res.Code)
}

func TestApplyUpdateRoomReplacesSettings(t *testing.T) {
	room := joined(4, "p1")
	next := ApplyUpdateRoom(room, models.RoomSettings{
		FieldSlug:        "networks",
		MaxPlayers:       2,
		TimeLimitType:    constants.TimeLimitTypeShort,
		TimeLimitSeconds: 10,
	})

	assert.Equal(t, "networks", next.Settings.FieldSlug)
	assert.Equal(t, 2, next.Settings.MaxPlayers)
	// original untouched
	assert.Equal(t, "algorithms", room.Settings.FieldSlug)
}

func TestApplyUpdateRoomFloorsMaxPlayers(t *testing.T) {
	room := joined(4, "p1", "p2")

	next := ApplyUpdateRoom(room, models.RoomSettings{FieldSlug: "networks", MaxPlayers: 0})
	assert.Equal(t, constants.DefaultMaxPlayers, next.Settings.MaxPlayers,
		"nonpositive max players falls back to the default")
	assert.Equal(t, constants.DefaultTimeLimitSeconds, next.Settings.TimeLimitSeconds)
	assert.Equal(t, constants.TimeLimitTypeNormal, next.Settings.TimeLimitType)

	next = ApplyUpdateRoom(room, models.RoomSettings{FieldSlug: "networks", MaxPlayers: 1})
	assert.Equal(t, 2, next.Settings.MaxPlayers,
		"max players never drops below the current roster")
	assert.Equal(t, constants.CodeRoomFull, ValidateJoin(next).Code,
		"the room stays exactly full, not over-full")
}

func TestReadyIdempotentAndSubsetInvariant(t *testing.T) {
	room := joined(4, "p1", "p2")

	require.True(t, ValidateReady(room, "p1").OK)
	room = ApplyReady(room, "p1")
	room = ApplyReady(room, "p1")
	assert.Equal(t, []string{"p1"}, room.ReadyParticipants)

	res := ValidateReady(room, "ghost")
	assert.Equal(t, constants.CodeInvalidState, res.Code)

	// cleared on start
	started := ApplyStart(room, time.Now(), []string{"q1"})
	assert.Empty(t, started.ReadyParticipants)

	// pruned on leave
	room = ApplyReady(room, "p2")
	left := ApplyLeave(room, "p1", time.Now(), 0)
	for _, id := range left.ReadyParticipants {
		p := left.Participant(id)
		require.NotNil(t, p)
		assert.True(t, p.IsConnected)
	}
}

func TestStartValidation(t *testing.T) {
	t.Run("non-host cannot start", func(t *testing.T) {
		// Scenario: start by non-host fails, room stays waiting.
		room := joined(4, "p1", "p2")
		res := ValidateStart(room, "p2")
		assert.False(t, res.OK)
		assert.Equal(t, constants.CodeNotHost, res.Code)
		assert.Equal(t, constants.RoomStatusWaiting, room.Status)
	})

	t.Run("needs two players", func(t *testing.T) {
		room := joined(4, "p1")
		res := ValidateStart(room, "p1")
		assert.Equal(t, constants.CodeInvalidState, res.Code)
	})

	t.Run("already started", func(t *testing.T) {
		room := joined(4, "p1", "p2")
		room = ApplyStart(room, time.Now(), []string{"q1"})
		res := ValidateStart(room, "p1")
		assert.Equal(t, constants.CodeGameAlreadyStarted, res.Code)
	})
}

func TestApplyStart(t *testing.T) {
	room := joined(4, "p1", "p2")
	room = ApplyReady(room, "p2")
	now := time.Now()

	next := ApplyStart(room, now, []string{"q1", "q2", "q3"})

	assert.Equal(t, constants.RoomStatusInProgress, next.Status)
	assert.True(t, next.InviteExpired)
	assert.Empty(t, next.ReadyParticipants)
	require.NotNil(t, next.StartedAt)
	assert.Equal(t, now, *next.StartedAt)
	assert.Zero(t, next.CurrentQuizIndex)
	assert.Equal(t, 3, next.TotalQuizzes)
	assert.Equal(t, []string{"q1", "q2", "q3"}, next.QuizIDs)
}

func TestLeaveReassignsHost(t *testing.T) {
	room := joined(4, "p1", "p2", "p3")

	next := ApplyLeave(room, "p1", time.Now(), 0)

	assert.Len(t, next.Participants, 2)
	assert.Equal(t, "p2", next.HostParticipantID, "earliest remaining joiner takes host")
	assertHostInvariant(t, next)
	assert.Nil(t, next.Participant("p1"))
}

func TestHostLeaveInProgressInvalidatesRoom(t *testing.T) {
	// Scenario: host leaves a 2-player in_progress room.
	room := joined(2, "p1", "p2")
	room = ApplyStart(room, time.Now(), []string{"q1", "q2"})

	next := ApplyLeave(room, "p1", time.Now(), constants.ScoreDeltaIncorrect)

	assert.Equal(t, constants.RoomStatusInvalid, next.Status)
	assert.Equal(t, "p2", next.HostParticipantID)
	require.NotNil(t, next.EndedAt)
	assertHostInvariant(t, next)
}

func TestLeavePenaltyApplied(t *testing.T) {
	room := joined(4, "p1", "p2", "p3")
	room.Participants[1].Score = 20

	next := ApplyLeave(room, "p2", time.Now(), constants.ScoreDeltaIncorrect)

	// p2 is pruned from the live list, but the penalty landed before
	// the prune so a rejoin under the same identity would not resurrect
	// the unpenalized score.
	assert.Nil(t, next.Participant("p2"))
	assert.Len(t, next.Participants, 2)
	assert.Equal(t, constants.RoomStatusWaiting, next.Status)
}

func TestLeaveTerminalRoomStaysTerminal(t *testing.T) {
	room := joined(2, "p1", "p2")
	room = ApplyStart(room, time.Now(), []string{"q1"})
	room = ApplyFinish(room, time.Now())
	endedAt := *room.EndedAt

	next := ApplyLeave(room, "p1", time.Now().Add(time.Second), 0)

	assert.Equal(t, constants.RoomStatusFinished, next.Status)
	assert.Equal(t, endedAt, *next.EndedAt, "finish timestamp must not move")
}

func TestRestart(t *testing.T) {
	room := joined(4, "p1", "p2")

	res := ValidateRestart(room)
	assert.Equal(t, constants.CodeInvalidState, res.Code, "waiting room cannot restart")

	room = ApplyStart(room, time.Now(), []string{"q1", "q2"})
	room.Participants[0].Score = 30
	room = ApplyFinish(room, time.Now())

	require.True(t, ValidateRestart(room).OK)
	next := ApplyRestart(room)

	assert.Equal(t, constants.RoomStatusWaiting, next.Status)
	assert.False(t, next.InviteExpired)
	assert.Nil(t, next.StartedAt)
	assert.Nil(t, next.EndedAt)
	assert.Nil(t, next.QuizEndsAt)
	assert.Zero(t, next.CurrentQuizIndex)
	assert.Empty(t, next.QuizIDs)
	assert.Len(t, next.Participants, 2, "participants survive restart")
	assert.Equal(t, "algorithms", next.Settings.FieldSlug, "settings survive restart")
	assert.Zero(t, next.Participants[0].Score)
	assert.Empty(t, next.Participants[0].Submissions)
}

func TestApplySubmissionRecordsWithoutRecomputing(t *testing.T) {
	room := joined(4, "p1", "p2")
	room = ApplyStart(room, time.Now(), []string{"q1"})

	sub := models.Submission{
		QuizID:      "q1",
		IsCorrect:   true,
		ScoreDelta:  constants.ScoreDeltaCorrect,
		TotalScore:  10,
		SubmittedAt: time.Now(),
	}
	next := ApplySubmission(room, "p1", sub)

	p := next.Participant("p1")
	require.NotNil(t, p)
	assert.Equal(t, 10, p.Score)
	require.Len(t, p.Submissions, 1)
	assert.True(t, HasSubmitted(next, "p1", "q1"))
	assert.False(t, HasSubmitted(next, "p2", "q1"))

	// unknown participant is a no-op
	same := ApplySubmission(next, "ghost", sub)
	assert.Len(t, same.Participants, 2)
}

func TestForcedSubmission(t *testing.T) {
	// Scenario: timed-out participant gets a synthesized incorrect
	// submission with the standard penalty.
	p := participant("p1")
	p.Score = 10

	sub := ForcedSubmission(p, "q2", time.Now())

	assert.False(t, sub.IsCorrect)
	assert.Equal(t, constants.ScoreDeltaIncorrect, sub.ScoreDelta)
	assert.Equal(t, 0, sub.TotalScore)
	assert.Nil(t, sub.QuizResult)
}

func TestRankingsStableTieBreak(t *testing.T) {
	room := joined(4, "p1", "p2", "p3", "p4")
	room.Participants[0].Score = 10
	room.Participants[1].Score = 30
	room.Participants[2].Score = 10
	room.Participants[3].Score = -10

	rankings := Rankings(room)

	require.Len(t, rankings, 4)
	assert.Equal(t, "p2", rankings[0].ParticipantID)
	assert.Equal(t, "p1", rankings[1].ParticipantID, "join order breaks the tie")
	assert.Equal(t, "p3", rankings[2].ParticipantID)
	assert.Equal(t, "p4", rankings[3].ParticipantID)
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, 4, rankings[3].Rank)
}

func TestTransitionsDoNotAliasInput(t *testing.T) {
	room := joined(4, "p1", "p2")
	next := ApplyJoin(room, participant("p3"))
	next.Participants[0].Score = 99

	assert.Zero(t, room.Participants[0].Score, "input room must stay untouched")
}
