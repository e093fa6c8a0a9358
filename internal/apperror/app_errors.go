package apperror

import "errors"

var (
	ErrLobbyNotFound    = errors.New("lobby not found")
	ErrGameNotFound     = errors.New("game not found")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrTemplateNotFound = errors.New("game template not found")

	ErrLobbyLockedOrFull = errors.New("lobby is locked or full")

	ErrInvalidTemplate = errors.New("template has no playable board")

	ErrNotYourTurn           = errors.New("it's not your turn")
	ErrNotHost               = errors.New("only the host can start the game")
	ErrInvalidMove           = errors.New("move is out of reach or blocked")
	ErrNotEnoughActionPoints = errors.New("not enough action points")
	ErrNotAdjacent           = errors.New("target is not on an adjacent tile")
	ErrNotInCombat           = errors.New("no combat in progress")
	ErrAlreadyInCombat       = errors.New("combat already in progress")
	ErrNoFleeAttemptsLeft    = errors.New("no flee attempts left")
	ErrGameNotStarted        = errors.New("game is not started")
	ErrGameFinished          = errors.New("game is already finished")
)
