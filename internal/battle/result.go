package battle

import "battle-service/internal/constants"

// Result is the outcome of validating an intent against the current
// room state. Failures carry one of the closed set of codes in
// internal/constants and are surfaced only to the requesting connection.
type Result struct {
	OK      bool
	Code    string
	Message string
}

func ok() Result {
	return Result{OK: true}
}

func fail(code, message string) Result {
	return Result{Code: code, Message: message}
}

func roomNotJoinable() Result {
	return fail(constants.CodeRoomNotJoinable, "room is not accepting participants")
}

func roomFull() Result {
	return fail(constants.CodeRoomFull, "room is full")
}

func notHost() Result {
	return fail(constants.CodeNotHost, "only the host may do this")
}

func alreadyStarted() Result {
	return fail(constants.CodeGameAlreadyStarted, "game has already started")
}

func invalidState(message string) Result {
	return fail(constants.CodeInvalidState, message)
}
