package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/usecase"
)

func decodePayload(msg *Message) (*Payload, error) {
	var payload Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	return &payload, nil
}

// errorMessage converts engine errors into the messages clients display.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, apperror.ErrLobbyLockedOrFull):
		return "Lobby is locked or full."
	case errors.Is(err, apperror.ErrLobbyNotFound):
		return "Lobby not found."
	case errors.Is(err, apperror.ErrGameNotFound):
		return "Game not found."
	case errors.Is(err, apperror.ErrNotYourTurn):
		return "It's not your turn."
	case errors.Is(err, apperror.ErrInvalidMove):
		return "That move is out of reach or blocked."
	default:
		return err.Error()
	}
}

func (that *Server) handleCreateLobby(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleCreateLobby")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	if payload.Player == nil || payload.TemplateID == "" {
		that.sendError(cl, msg.Action, "player and templateId are required")
		return nil
	}

	lobby, err := that.lobbies.CreateLobby(ctx, payload.TemplateID)
	if err != nil {
		log.Error("failed to create lobby", "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	lobby, err = that.lobbies.JoinLobby(ctx, lobby.ID, payload.Player)
	if err != nil {
		log.Error("failed to join created lobby", "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	cl.playerID = payload.Player.ID
	cl.playerName = payload.Player.Name
	that.joinRoom(cl, lobby.ID)

	log.Info("lobby created", "lobbyID", lobby.ID, "host", payload.Player.Name)

	return cl.send("lobbyCreated", LobbyPayload{Lobby: lobby, Player: payload.Player})
}

func (that *Server) handleJoinLobby(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleJoinLobby")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	if payload.Player == nil || payload.LobbyID == "" {
		that.sendError(cl, msg.Action, "player and lobbyId are required")
		return nil
	}

	lobby, err := that.lobbies.JoinLobby(ctx, payload.LobbyID, payload.Player)
	if err != nil {
		log.Error("failed to join lobby", "lobbyID", payload.LobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	cl.playerID = payload.Player.ID
	cl.playerName = payload.Player.Name
	that.joinRoom(cl, lobby.ID)

	that.Broadcast(lobby.ID, "playerJoined", LobbyPayload{Lobby: lobby, Player: payload.Player})

	log.Info("player joined lobby", "lobbyID", lobby.ID, "player", payload.Player.Name)

	return nil
}

func (that *Server) handleLeaveLobby(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleLeaveLobby")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}
	playerName := payload.PlayerName
	if playerName == "" {
		playerName = cl.playerName
	}

	lobby, deleted, err := that.lobbies.LeaveLobby(ctx, lobbyID, playerName)
	if err != nil {
		log.Error("failed to leave lobby", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	if deleted {
		that.Broadcast(lobbyID, "lobbyClosed", LobbyPayload{PlayerName: playerName})
		that.closeRoom(lobbyID)
		return nil
	}

	that.leaveRoom(cl)
	that.Broadcast(lobbyID, "playerLeft", LobbyPayload{Lobby: lobby, PlayerName: playerName})

	return nil
}

func (that *Server) handleLockLobby(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleLockLobby")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}

	lobby, err := that.lobbies.LockLobby(ctx, lobbyID)
	if err != nil {
		log.Error("failed to toggle lobby lock", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	event := "lobbyUnlocked"
	if lobby.IsLocked {
		event = "lobbyLocked"
	}
	that.Broadcast(lobby.ID, event, LobbyPayload{Lobby: lobby})

	return nil
}

func (that *Server) handleRequestStart(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleRequestStart")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}

	state, err := that.games.StartGame(ctx, lobbyID, cl.playerID)
	if err != nil {
		log.Error("failed to start game", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	that.Broadcast(lobbyID, "gameStarted", GamePayload{GameState: state})

	log.Info("game started", "lobbyID", lobbyID)

	return nil
}

func (that *Server) handleRequestMovement(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleRequestMovement")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	dest := payload.Destination
	if dest == nil && len(payload.Path) > 0 {
		dest = &payload.Path[len(payload.Path)-1]
	}
	if dest == nil {
		that.sendError(cl, msg.Action, "destination is required")
		return nil
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}

	state, path, err := that.games.ProcessMovement(ctx, lobbyID, cl.playerID, *dest)
	if err != nil {
		log.Error("failed to process movement", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	that.Broadcast(lobbyID, "movementProcessed", MovementPayload{
		GameState:   state,
		PlayerMoved: cl.playerID,
		NewPosition: *dest,
		Path:        path,
	})

	return nil
}

func (that *Server) handleEndTurn(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleEndTurn")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}

	state, err := that.games.EndTurn(ctx, lobbyID, cl.playerID)
	if err != nil {
		log.Error("failed to end turn", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	that.Broadcast(lobbyID, "turnEnded", usecase.TurnPayload{
		GameState:      state,
		CurrentPlayer:  state.CurrentPlayer,
		AvailableMoves: state.AvailableMoves,
	})

	return nil
}

func (that *Server) handleToggleDoor(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleToggleDoor")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	if payload.Position == nil {
		that.sendError(cl, msg.Action, "position is required")
		return nil
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}

	state, err := that.games.ToggleDoor(ctx, lobbyID, cl.playerID, *payload.Position)
	if err != nil {
		log.Error("failed to toggle door", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	that.Broadcast(lobbyID, "doorToggled", GamePayload{GameState: state, Position: payload.Position})

	return nil
}

// handleAttack covers both combat entry and an in-combat strike: outside
// combat it needs a target and opens the fight, inside combat it rolls the
// dice.
func (that *Server) handleAttack(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleAttack")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}

	state, err := that.games.GetGame(ctx, lobbyID)
	if err != nil {
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	if !state.IsInCombat() {
		if payload.TargetID == "" {
			that.sendError(cl, msg.Action, "targetId is required")
			return nil
		}

		state, err = that.games.StartCombat(ctx, lobbyID, cl.playerID, payload.TargetID)
		if err != nil {
			log.Error("failed to start combat", "lobbyID", lobbyID, "error", err)
			that.sendError(cl, msg.Action, errorMessage(err))
			return nil
		}

		that.Broadcast(lobbyID, "combatStarted", usecase.CombatPayload{GameState: state})
		return nil
	}

	state, result, err := that.games.Attack(ctx, lobbyID, cl.playerID)
	if err != nil {
		log.Error("failed to attack", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	that.Broadcast(lobbyID, "attackResult", usecase.CombatPayload{GameState: state, Attack: result})

	if state.IsFinished() {
		that.Broadcast(lobbyID, "gameOver", usecase.GameOverPayload{GameState: state, Winner: state.Winner})
	}

	return nil
}

func (that *Server) handleFlee(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleFlee")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}

	state, result, err := that.games.Flee(ctx, lobbyID, cl.playerID)
	if err != nil {
		log.Error("failed to flee", "lobbyID", lobbyID, "error", err)
		that.sendError(cl, msg.Action, errorMessage(err))
		return nil
	}

	that.Broadcast(lobbyID, "fleeResult", usecase.CombatPayload{GameState: state, Flee: result})

	return nil
}

func (that *Server) handleLeaveGame(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleLeaveGame")

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	lobbyID := payload.LobbyID
	if lobbyID == "" {
		lobbyID = cl.lobbyID
	}
	playerName := payload.PlayerName
	if playerName == "" {
		playerName = cl.playerName
	}

	that.removeFromGame(ctx, cl, lobbyID, playerName, msg.Action)

	log.Info("player left game", "lobbyID", lobbyID, "player", playerName)

	return nil
}

// removeFromGame drops the player from the running game and the lobby roster
// and broadcasts the new state.
func (that *Server) removeFromGame(ctx context.Context, cl *client, lobbyID, playerName, action string) {
	log := that.logger.With("method", "removeFromGame", "lobbyID", lobbyID)

	state, _, err := that.games.RemovePlayer(ctx, lobbyID, playerName)
	if err != nil && !errors.Is(err, apperror.ErrGameNotFound) {
		log.Error("failed to remove player from game", "error", err)
		if action != "" {
			that.sendError(cl, action, errorMessage(err))
		}
		return
	}

	lobby, lobbyErr := that.lobbies.LeaveGame(ctx, lobbyID, playerName)
	if lobbyErr != nil {
		log.Error("failed to update lobby roster", "error", lobbyErr)
	}

	that.leaveRoom(cl)

	that.Broadcast(lobbyID, "playerLeft", LobbyPayload{Lobby: lobby, PlayerName: playerName})

	if state != nil && state.IsFinished() {
		that.Broadcast(lobbyID, "gameOver", usecase.GameOverPayload{GameState: state, Winner: state.Winner})
	}
}

// handleDisconnect cleans up after a dropped connection the same way an
// explicit leave would.
func (that *Server) handleDisconnect(ctx context.Context, cl *client) {
	if cl.lobbyID == "" {
		return
	}

	log := that.logger.With("method", "handleDisconnect", "player", cl.playerName)

	lobbyID := cl.lobbyID

	if _, err := that.games.GetGame(ctx, lobbyID); err == nil {
		that.removeFromGame(ctx, cl, lobbyID, cl.playerName, "")
		log.Info("player disconnected mid-game")
		return
	}

	lobby, deleted, err := that.lobbies.LeaveLobby(ctx, lobbyID, cl.playerName)
	if err != nil {
		log.Error("failed to leave lobby on disconnect", "error", err)
	}

	that.leaveRoom(cl)

	if deleted {
		that.Broadcast(lobbyID, "lobbyClosed", LobbyPayload{PlayerName: cl.playerName})
		that.closeRoom(lobbyID)
		return
	}

	that.Broadcast(lobbyID, "playerLeft", LobbyPayload{Lobby: lobby, PlayerName: cl.playerName})
}

// closeRoom drops every connection binding for a deleted lobby.
func (that *Server) closeRoom(lobbyID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, member := range that.rooms[lobbyID] {
		member.lobbyID = ""
	}
	delete(that.rooms, lobbyID)
}
