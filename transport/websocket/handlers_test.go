package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/entity"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "locked or full lobby", err: apperror.ErrLobbyLockedOrFull, want: "Lobby is locked or full."},
		{name: "missing lobby", err: apperror.ErrLobbyNotFound, want: "Lobby not found."},
		{name: "missing game", err: apperror.ErrGameNotFound, want: "Game not found."},
		{name: "out of turn", err: apperror.ErrNotYourTurn, want: "It's not your turn."},
		{name: "invalid move", err: apperror.ErrInvalidMove, want: "That move is out of reach or blocked."},
		{name: "unknown error passes through", err: errors.New("boom"), want: "boom"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, errorMessage(test.err))
		})
	}

	t.Run("wrapped sentinel still maps", func(t *testing.T) {
		wrapped := errors.Join(errors.New("failed to get lobby"), apperror.ErrLobbyLockedOrFull)
		assert.Equal(t, "Lobby is locked or full.", errorMessage(wrapped))
	})
}

func TestErrorPayloadShape(t *testing.T) {
	// The rejected action travels in its own field; the message text is
	// exactly what clients display.
	payload := ErrorPayload{Action: "joinLobby", Error: errorMessage(apperror.ErrLobbyLockedOrFull)}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	assert.JSONEq(t, `{"action":"joinLobby","error":"Lobby is locked or full."}`, string(raw))
}

func TestDecodePayload(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		raw := json.RawMessage(`{
			"lobbyId": "1234",
			"templateId": "arena-1",
			"player": {"name": "alice"},
			"destination": {"x": 2, "y": 1},
			"path": [{"x": 1, "y": 1}, {"x": 2, "y": 1}]
		}`)

		payload, err := decodePayload(&Message{Action: "requestMovement", Payload: raw})

		require.NoError(t, err)
		assert.Equal(t, "1234", payload.LobbyID)
		assert.Equal(t, "arena-1", payload.TemplateID)
		require.NotNil(t, payload.Player)
		assert.Equal(t, "alice", payload.Player.Name)
		require.NotNil(t, payload.Destination)
		assert.Equal(t, entity.Coordinates{X: 2, Y: 1}, *payload.Destination)
		assert.Len(t, payload.Path, 2)
	})

	t.Run("empty payload is allowed", func(t *testing.T) {
		payload, err := decodePayload(&Message{Action: "endTurn"})

		require.NoError(t, err)
		assert.Nil(t, payload.Destination)
		assert.Empty(t, payload.LobbyID)
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		_, err := decodePayload(&Message{Action: "joinLobby", Payload: json.RawMessage(`{`)})

		assert.Error(t, err)
	})
}
