package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/config"
	"github.com/polygrid/tactics-backend/internal/entity"
	"github.com/polygrid/tactics-backend/internal/pathfinding"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.GameState) error
	GetByID(ctx context.Context, id string) (*entity.GameState, error)
	DeleteByID(ctx context.Context, id string) error
}

// EventPublisher receives the events the manager generates on its own, i.e.
// without a client request: turn and combat timer expiries. The socket
// gateway implements it.
type EventPublisher interface {
	Publish(lobbyID, event string, payload any)
}

// GameManager owns every running GameState. All mutating entry points
// serialize per lobby through acquire(), which is what upholds the
// single-writer invariant: two clients of the same lobby can never interleave
// a get-mutate-save cycle.
type GameManager struct {
	logger       *slog.Logger
	lobbyRepo    lobbyRepo
	gameRepo     gameRepo
	templateRepo templateRepo
	rules        config.Game

	publisher EventPublisher
	rng       *rand.Rand

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	timers map[string]*time.Timer
}

func NewGameManager(logger *slog.Logger, lobbyRepo lobbyRepo, gameRepo gameRepo, templateRepo templateRepo, rules config.Game) *GameManager {
	return &GameManager{
		logger: logger,

		lobbyRepo:    lobbyRepo,
		gameRepo:     gameRepo,
		templateRepo: templateRepo,
		rules:        rules,

		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		locks:  make(map[string]*sync.Mutex),
		timers: make(map[string]*time.Timer),
	}
}

// SetPublisher wires the gateway in after both sides exist.
func (that *GameManager) SetPublisher(publisher EventPublisher) {
	that.publisher = publisher
}

// SeedRNG makes dice and spawn shuffles deterministic; used by tests.
func (that *GameManager) SeedRNG(seed int64) {
	that.rng = rand.New(rand.NewSource(seed))
}

// acquire takes the per-lobby mutex and returns the release func.
func (that *GameManager) acquire(lobbyID string) func() {
	that.mu.Lock()
	lock, ok := that.locks[lobbyID]
	if !ok {
		lock = &sync.Mutex{}
		that.locks[lobbyID] = lock
	}
	that.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// StartGame turns a lobby into a running game: loads the template board,
// places every player on a spawn tile, orders turns by speed and opens the
// first turn. Host only.
func (that *GameManager) StartGame(ctx context.Context, lobbyID, playerID string) (*entity.GameState, error) {
	defer that.acquire(lobbyID)()

	log := that.logger.With("method", "StartGame", "lobbyID", lobbyID)

	lobby, err := that.lobbyRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}

	host := lobby.Host()
	if host == nil || host.ID != playerID {
		return nil, apperror.ErrNotHost
	}

	template, err := that.templateRepo.GetByID(ctx, lobby.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if len(template.Board) == 0 || len(template.Board[0]) == 0 {
		return nil, apperror.ErrInvalidTemplate
	}

	state := entity.NewGameState(lobbyID, template.Board, lobby.Players)
	that.placePlayers(state, template)

	// Faster players act first; equal speeds keep lobby join order.
	sort.SliceStable(state.Players, func(i, j int) bool {
		return state.Players[i].Speed > state.Players[j].Speed
	})

	state.Status = entity.StatusOngoing
	state.CurrentPlayer = state.Players[0].ID
	state.TurnCounter = 1
	that.beginTurn(state)

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save game state: %w", err)
	}

	that.scheduleTurnTimer(lobbyID)

	log.Info("game started", "players", len(state.Players))

	return state, nil
}

// placePlayers assigns shuffled spawn tiles. A taken or missing spawn falls
// back to the closest free tile around it.
func (that *GameManager) placePlayers(state *entity.GameState, template *entity.GameTemplate) {
	spawns := template.SpawnPoints()
	that.rng.Shuffle(len(spawns), func(i, j int) {
		spawns[i], spawns[j] = spawns[j], spawns[i]
	})

	center := entity.Coordinates{X: len(template.Board[0]) / 2, Y: len(template.Board) / 2}

	for i, player := range state.Players {
		target := center
		if i < len(spawns) {
			target = spawns[i]
		}

		// Occupancy is judged from the placed player's perspective.
		state.CurrentPlayer = player.ID
		spot := pathfinding.FindClosestAvailableSpot(state, target)
		if spot == entity.NoSpot {
			continue
		}

		state.PlayerPositions[player.ID] = spot
		state.SpawnPoints[player.ID] = spot
	}

	state.CurrentPlayer = ""
}

// beginTurn resets the active player's budgets and publishes the reachable
// set. TurnCounter is managed by the callers.
func (that *GameManager) beginTurn(state *entity.GameState) {
	player := state.ActivePlayer()
	if player == nil {
		return
	}

	player.ResetForTurn(that.rules.ActionPointsPerTurn)
	state.CurrentPlayerMovementPoints = player.CurrentMP
	state.CurrentPlayerActionPoints = player.CurrentAP
	state.AvailableMoves = pathfinding.FindReachablePositions(state, state.PlayerPositions[player.ID], player.CurrentMP)
}

// ProcessMovement validates and applies a movement request for the current
// player. It returns the updated state and the tile-by-tile path for client
// animation.
func (that *GameManager) ProcessMovement(ctx context.Context, lobbyID, playerID string, dest entity.Coordinates) (*entity.GameState, []entity.Coordinates, error) {
	defer that.acquire(lobbyID)()

	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game state: %w", err)
	}

	if err = state.ConfirmOngoingState(); err != nil {
		return nil, nil, err
	}
	if state.IsInCombat() {
		return nil, nil, apperror.ErrAlreadyInCombat
	}
	if state.CurrentPlayer != playerID {
		return nil, nil, apperror.ErrNotYourTurn
	}

	player := state.ActivePlayer()
	start, ok := state.PlayerPositions[playerID]
	if player == nil || !ok {
		return nil, nil, apperror.ErrPlayerNotFound
	}

	path := pathfinding.FindShortestPath(state, start, dest, player.CurrentMP)
	if len(path) == 0 {
		return nil, nil, apperror.ErrInvalidMove
	}

	cost := 0.0
	for _, step := range path[1:] {
		cost += pathfinding.GetMovementCost(state, step)
	}

	player.CurrentMP -= int(math.Round(cost))
	state.CurrentPlayerMovementPoints = player.CurrentMP
	state.PlayerPositions[playerID] = dest

	that.pickUpItem(state, player, dest)

	state.AvailableMoves = pathfinding.FindReachablePositions(state, dest, player.CurrentMP)

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, nil, fmt.Errorf("failed to save game state: %w", err)
	}

	return state, path, nil
}

// pickUpItem moves an item object from the landing tile into the player's
// inventory when there is room.
func (that *GameManager) pickUpItem(state *entity.GameState, player *entity.Player, pos entity.Coordinates) {
	tile, object := entity.DecodeTile(state.TileAt(pos))
	if object == entity.ObjectNone || object == entity.ObjectSpawn {
		return
	}

	if player.PickUpItem(int(object)) {
		state.SetTileAt(pos, entity.EncodeTile(tile, entity.ObjectNone))
	}
}

// ToggleDoor opens or closes an adjacent door for one action point.
func (that *GameManager) ToggleDoor(ctx context.Context, lobbyID, playerID string, pos entity.Coordinates) (*entity.GameState, error) {
	defer that.acquire(lobbyID)()

	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}

	if err = state.ConfirmOngoingState(); err != nil {
		return nil, err
	}
	if state.CurrentPlayer != playerID {
		return nil, apperror.ErrNotYourTurn
	}

	player := state.ActivePlayer()
	if player.CurrentAP < 1 {
		return nil, apperror.ErrNotEnoughActionPoints
	}

	current := state.PlayerPositions[playerID]
	if manhattanDistance(current, pos) != 1 {
		return nil, apperror.ErrNotAdjacent
	}

	tile, object := entity.DecodeTile(state.TileAt(pos))
	switch tile {
	case entity.TileDoorClosed:
		state.SetTileAt(pos, entity.EncodeTile(entity.TileDoorOpen, object))
	case entity.TileDoorOpen:
		if pathfinding.IsPositionOccupied(state, pos) {
			return nil, apperror.ErrInvalidMove
		}
		state.SetTileAt(pos, entity.EncodeTile(entity.TileDoorClosed, object))
	default:
		return nil, apperror.ErrInvalidMove
	}

	player.CurrentAP--
	state.CurrentPlayerActionPoints = player.CurrentAP
	state.AvailableMoves = pathfinding.FindReachablePositions(state, current, player.CurrentMP)

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save game state: %w", err)
	}

	return state, nil
}

// EndTurn advances to the next live player. Only the current player may end
// their own turn; the turn timer calls this on their behalf on expiry.
func (that *GameManager) EndTurn(ctx context.Context, lobbyID, playerID string) (*entity.GameState, error) {
	defer that.acquire(lobbyID)()

	return that.endTurnLocked(ctx, lobbyID, playerID)
}

func (that *GameManager) endTurnLocked(ctx context.Context, lobbyID, playerID string) (*entity.GameState, error) {
	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}

	if err = state.ConfirmOngoingState(); err != nil {
		return nil, err
	}
	if state.IsInCombat() {
		return nil, apperror.ErrAlreadyInCombat
	}
	if state.CurrentPlayer != playerID {
		return nil, apperror.ErrNotYourTurn
	}

	state.CurrentPlayer = state.NextPlayerID()
	state.TurnCounter++
	that.beginTurn(state)

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save game state: %w", err)
	}

	that.scheduleTurnTimer(lobbyID)

	return state, nil
}

// RemovePlayer handles abandonment mid-game. The turn passes on when the
// leaver held it, a combat involving the leaver dissolves, and the last
// player standing wins.
func (that *GameManager) RemovePlayer(ctx context.Context, lobbyID, playerName string) (*entity.GameState, *entity.Player, error) {
	defer that.acquire(lobbyID)()

	log := that.logger.With("method", "RemovePlayer", "lobbyID", lobbyID)

	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game state: %w", err)
	}

	leaver := state.FindPlayerByName(playerName)
	if leaver == nil {
		return state, nil, nil
	}

	if state.IsInCombat() && (state.Combat.AttackerID == leaver.ID || state.Combat.DefenderID == leaver.ID) {
		state.Combat = nil
		state.Status = entity.StatusOngoing
	}

	heldTurn := state.CurrentPlayer == leaver.ID
	next := state.NextPlayerID()

	state.RemovePlayerByName(playerName)

	if len(state.Players) <= 1 {
		if len(state.Players) == 1 {
			state.Winner = state.Players[0].Name
		}
		state.Status = entity.StatusFinished
		that.stopTimer(lobbyID)

		if err = that.gameRepo.DeleteByID(ctx, lobbyID); err != nil {
			log.Error("failed to delete finished game", "error", err)
		}

		log.Info("game ended by abandonment", "winner", state.Winner)

		return state, leaver, nil
	}

	if heldTurn {
		state.CurrentPlayer = next
		state.TurnCounter++
		that.beginTurn(state)
		that.scheduleTurnTimer(lobbyID)
	}

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, nil, fmt.Errorf("failed to save game state: %w", err)
	}

	log.Info("player removed from game", "player", playerName)

	return state, leaver, nil
}

// GetGame is a pure lookup.
func (that *GameManager) GetGame(ctx context.Context, lobbyID string) (*entity.GameState, error) {
	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}

	return state, nil
}

// scheduleTurnTimer (re)arms the per-lobby countdown that synthesizes an
// end-turn when the player never acts.
func (that *GameManager) scheduleTurnTimer(lobbyID string) {
	if that.rules.TurnSeconds <= 0 {
		return
	}

	that.armTimer(lobbyID, time.Duration(that.rules.TurnSeconds)*time.Second, func() {
		that.expireTurn(lobbyID)
	})
}

func (that *GameManager) armTimer(lobbyID string, d time.Duration, fire func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[lobbyID]; ok {
		timer.Stop()
	}
	that.timers[lobbyID] = time.AfterFunc(d, fire)
}

func (that *GameManager) stopTimer(lobbyID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[lobbyID]; ok {
		timer.Stop()
		delete(that.timers, lobbyID)
	}
}

// expireTurn is the timer path: it ends the turn exactly as if the current
// player had asked and broadcasts the new turn through the publisher.
func (that *GameManager) expireTurn(lobbyID string) {
	log := that.logger.With("method", "expireTurn", "lobbyID", lobbyID)

	ctx := context.Background()

	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		log.Error("failed to get game state", "error", err)
		return
	}
	if !state.IsOngoing() {
		return
	}

	next, err := that.EndTurn(ctx, lobbyID, state.CurrentPlayer)
	if err != nil {
		log.Error("failed to end expired turn", "error", err)
		return
	}

	if that.publisher != nil {
		that.publisher.Publish(lobbyID, "turnStarted", TurnPayload{
			GameState:      next,
			CurrentPlayer:  next.CurrentPlayer,
			AvailableMoves: next.AvailableMoves,
		})
	}
}

// TurnPayload is the body of turnStarted/turnEnded events.
type TurnPayload struct {
	GameState      *entity.GameState    `json:"gameState"`
	CurrentPlayer  string               `json:"currentPlayer"`
	AvailableMoves []entity.Coordinates `json:"availableMoves"`
}

func manhattanDistance(a, b entity.Coordinates) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
