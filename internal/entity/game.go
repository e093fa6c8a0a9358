package entity

import (
	"github.com/polygrid/tactics-backend/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusCombat   = "combat"
	StatusFinished = "finished"
)

// CombatState tracks an in-progress fight. While it is set, normal turn
// advancement is suspended and TurnID alternates between the two fighters.
type CombatState struct {
	AttackerID   string         `json:"attacker_id"`
	DefenderID   string         `json:"defender_id"`
	TurnID       string         `json:"turn_id"`
	FleeAttempts map[string]int `json:"flee_attempts,omitempty"`
}

type GameState struct {
	ID      string    `json:"id"`
	Board   [][]int   `json:"board"`
	Players []*Player `json:"players"`

	CurrentPlayer   string                 `json:"current_player"`
	PlayerPositions map[string]Coordinates `json:"player_positions"`
	SpawnPoints     map[string]Coordinates `json:"spawn_points"`
	AvailableMoves  []Coordinates          `json:"available_moves"`

	CurrentPlayerMovementPoints int `json:"current_player_movement_points"`
	CurrentPlayerActionPoints   int `json:"current_player_action_points"`
	TurnCounter                 int `json:"turn_counter"`

	Status string       `json:"status"`
	Combat *CombatState `json:"combat,omitempty"`
	Winner string       `json:"winner,omitempty"`
}

// NewGameState builds the authoritative state for a lobby about to start.
// The board is a deep copy of the template board so a running game never
// mutates the template.
func NewGameState(id string, board [][]int, players []*Player) *GameState {
	copied := make([][]int, len(board))
	for y, row := range board {
		copied[y] = make([]int, len(row))
		copy(copied[y], row)
	}

	return &GameState{
		ID:              id,
		Board:           copied,
		Players:         players,
		PlayerPositions: make(map[string]Coordinates),
		SpawnPoints:     make(map[string]Coordinates),
		Status:          StatusWaiting,
	}
}

// TileAt returns the combined code at pos, or -1 when pos is outside the
// board. Board rows are indexed Board[y][x].
func (that *GameState) TileAt(pos Coordinates) int {
	if that == nil || pos.Y < 0 || pos.Y >= len(that.Board) {
		return -1
	}
	row := that.Board[pos.Y]
	if pos.X < 0 || pos.X >= len(row) {
		return -1
	}
	return row[pos.X]
}

// SetTileAt overwrites the combined code at pos; out-of-bounds writes are
// ignored.
func (that *GameState) SetTileAt(pos Coordinates, code int) {
	if that == nil || pos.Y < 0 || pos.Y >= len(that.Board) {
		return
	}
	if pos.X < 0 || pos.X >= len(that.Board[pos.Y]) {
		return
	}
	that.Board[pos.Y][pos.X] = code
}

func (that *GameState) FindPlayerByID(id string) *Player {
	for _, player := range that.Players {
		if player.ID == id {
			return player
		}
	}
	return nil
}

func (that *GameState) FindPlayerByName(name string) *Player {
	for _, player := range that.Players {
		if player.Name == name {
			return player
		}
	}
	return nil
}

// ActivePlayer returns the player whose turn it is.
func (that *GameState) ActivePlayer() *Player {
	return that.FindPlayerByID(that.CurrentPlayer)
}

func (that *GameState) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *GameState) IsInCombat() bool {
	return that.Status == StatusCombat && that.Combat != nil
}

func (that *GameState) IsFinished() bool {
	return that.Status == StatusFinished
}

// ConfirmOngoingState checks that actions against this game are legal right
// now.
func (that *GameState) ConfirmOngoingState() error {
	switch that.Status {
	case StatusWaiting:
		return apperror.ErrGameNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	default:
		return nil
	}
}

// NextPlayerID walks the live player list round-robin from the current
// player. It returns the current id again when the player is alone.
func (that *GameState) NextPlayerID() string {
	if len(that.Players) == 0 {
		return ""
	}

	current := -1
	for i, player := range that.Players {
		if player.ID == that.CurrentPlayer {
			current = i
			break
		}
	}

	// The current player may already have been removed; resume from the
	// slot their successor shifted into.
	if current == -1 {
		return that.Players[0].ID
	}

	return that.Players[(current+1)%len(that.Players)].ID
}

// RemovePlayerByName drops a player and their position entry. The caller is
// responsible for re-validating CurrentPlayer afterwards.
func (that *GameState) RemovePlayerByName(name string) *Player {
	for i, player := range that.Players {
		if player.Name != name {
			continue
		}
		that.Players = append(that.Players[:i], that.Players[i+1:]...)
		delete(that.PlayerPositions, player.ID)
		delete(that.SpawnPoints, player.ID)
		return player
	}
	return nil
}

// ArePlayersAdjacent reports whether the two players stand on 4-connected
// neighboring tiles.
func (that *GameState) ArePlayersAdjacent(firstID, secondID string) bool {
	first, okFirst := that.PlayerPositions[firstID]
	second, okSecond := that.PlayerPositions[secondID]
	if !okFirst || !okSecond {
		return false
	}

	dx := first.X - second.X
	dy := first.Y - second.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	return dx+dy == 1
}
