package websocket

import (
	"encoding/json"

	"github.com/polygrid/tactics-backend/internal/entity"
)

// Message is the envelope for both directions: an action name and an
// action-specific payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload carries every field an inbound request may set; handlers pick what
// they need and reject what is missing.
type Payload struct {
	LobbyID     string               `json:"lobbyId,omitempty"`
	TemplateID  string               `json:"templateId,omitempty"`
	Player      *entity.Player       `json:"player,omitempty"`
	PlayerName  string               `json:"playerName,omitempty"`
	TargetID    string               `json:"targetId,omitempty"`
	Destination *entity.Coordinates  `json:"destination,omitempty"`
	Position    *entity.Coordinates  `json:"position,omitempty"`
	Path        []entity.Coordinates `json:"path,omitempty"`
}

// LobbyPayload is the body of lobby-level broadcasts.
type LobbyPayload struct {
	Lobby      *entity.GameLobby `json:"lobby,omitempty"`
	Player     *entity.Player    `json:"player,omitempty"`
	PlayerName string            `json:"playerName,omitempty"`
}

// GamePayload is the body of gameStarted and door/roster updates.
type GamePayload struct {
	GameState *entity.GameState   `json:"gameState"`
	Position  *entity.Coordinates `json:"position,omitempty"`
}

// MovementPayload is the body of movementProcessed.
type MovementPayload struct {
	GameState   *entity.GameState    `json:"gameState"`
	PlayerMoved string               `json:"playerMoved"`
	NewPosition entity.Coordinates   `json:"newPosition"`
	Path        []entity.Coordinates `json:"path"`
}

// ErrorPayload is always unicast to the requester, never broadcast. The
// rejected action travels in its own field so the message text stays exactly
// what clients display.
type ErrorPayload struct {
	Action string `json:"action,omitempty"`
	Error  string `json:"error"`
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
