package constants

import "time"

const (
	RoomStatusWaiting    = "waiting"
	RoomStatusInProgress = "in_progress"
	RoomStatusFinished   = "finished"
	RoomStatusInvalid    = "invalid"
)

const (
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeRoomNotJoinable    = "ROOM_NOT_JOINABLE"
	CodeRoomFull           = "ROOM_FULL"
	CodeNotHost            = "NOT_HOST"
	CodeGameAlreadyStarted = "GAME_ALREADY_STARTED"
	CodeGameNotStarted     = "GAME_NOT_STARTED"
	CodeInvalidState       = "INVALID_STATE"
)

const (
	TimeLimitTypeShort  = "short"
	TimeLimitTypeNormal = "normal"
	TimeLimitTypeLong   = "long"
)

const (
	// Score movement per graded answer. A wrong or forced answer
	// costs the same amount a correct one earns.
	ScoreDeltaCorrect   = 10
	ScoreDeltaIncorrect = -10

	MinPlayersToStart = 2
)

const (
	ResultRevealWindow = 5 * time.Second

	DefaultQuizCount        = 10
	DefaultTimeLimitSeconds = 20
	DefaultMaxPlayers       = 4

	DefaultRoomRetention  = 10 * time.Minute
	DefaultSweepInterval  = 1 * time.Minute
	DefaultInviteLifetime = 30 * time.Minute
)

const (
	RewardQueueName    = "battle.rewards"
	DefaultWinnerCoins = 50
)
