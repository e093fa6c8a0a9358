package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/entity"
	"github.com/polygrid/tactics-backend/internal/pathfinding"
)

// AttackResult reports one resolved exchange.
type AttackResult struct {
	AttackerID  string `json:"attackerId"`
	DefenderID  string `json:"defenderId"`
	AttackRoll  int    `json:"attackRoll"`
	DefenseRoll int    `json:"defenseRoll"`
	Damage      int    `json:"damage"`
	DefeatedID  string `json:"defeatedId,omitempty"`
	WinnerName  string `json:"winnerName,omitempty"`
}

// FleeResult reports one escape attempt.
type FleeResult struct {
	PlayerID     string `json:"playerId"`
	Success      bool   `json:"success"`
	AttemptsLeft int    `json:"attemptsLeft"`
}

// StartCombat puts the game into the combat sub-state. The acting player must
// hold the turn, stand adjacent to the defender and spend one action point.
// Normal turn advancement (and its timer) is suspended until the fight
// resolves.
func (that *GameManager) StartCombat(ctx context.Context, lobbyID, attackerID, defenderID string) (*entity.GameState, error) {
	defer that.acquire(lobbyID)()

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
	if state.CurrentPlayer != attackerID {
		return nil, apperror.ErrNotYourTurn
	}

	attacker := state.FindPlayerByID(attackerID)
	defender := state.FindPlayerByID(defenderID)
	if attacker == nil || defender == nil {
		return nil, apperror.ErrPlayerNotFound
	}

	if !state.ArePlayersAdjacent(attackerID, defenderID) {
		return nil, apperror.ErrNotAdjacent
	}
	if attacker.CurrentAP < 1 {
		return nil, apperror.ErrNotEnoughActionPoints
	}

	attacker.CurrentAP--
	state.CurrentPlayerActionPoints = attacker.CurrentAP

	state.Status = entity.StatusCombat
	state.Combat = &entity.CombatState{
		AttackerID:   attackerID,
		DefenderID:   defenderID,
		TurnID:       attackerID,
		FleeAttempts: make(map[string]int),
	}

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save game state: %w", err)
	}

	that.scheduleCombatTimer(lobbyID)

	return state, nil
}

// Attack resolves one exchange: attack stat + attack die against defense stat
// + defense die, positive margin becomes damage. A defeat sends the loser
// back to spawn at full life and ends the combat; enough round wins finish
// the whole game.
func (that *GameManager) Attack(ctx context.Context, lobbyID, playerID string) (*entity.GameState, *AttackResult, error) {
	defer that.acquire(lobbyID)()

	return that.attackLocked(ctx, lobbyID, playerID)
}

func (that *GameManager) attackLocked(ctx context.Context, lobbyID, playerID string) (*entity.GameState, *AttackResult, error) {
	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game state: %w", err)
	}

	if !state.IsInCombat() {
		return nil, nil, apperror.ErrNotInCombat
	}
	if state.Combat.TurnID != playerID {
		return nil, nil, apperror.ErrNotYourTurn
	}

	target := that.combatOpponent(state.Combat, playerID)

	striker := state.FindPlayerByID(playerID)
	victim := state.FindPlayerByID(target)
	if striker == nil || victim == nil {
		return nil, nil, apperror.ErrPlayerNotFound
	}

	result := &AttackResult{
		AttackerID:  playerID,
		DefenderID:  target,
		AttackRoll:  striker.Attack + that.rng.Intn(that.rules.AttackDiceSides) + 1,
		DefenseRoll: victim.Defense + that.rng.Intn(that.rules.DefenseDiceSides) + 1,
	}

	if damage := result.AttackRoll - result.DefenseRoll; damage > 0 {
		result.Damage = damage
		victim.Life -= damage
		striker.DamageDealt += damage
		victim.DamageReceived += damage
	}

	if victim.Life <= 0 {
		result.DefeatedID = victim.ID
		that.resolveDefeat(state, striker, victim)

		if state.IsFinished() {
			result.WinnerName = state.Winner
			that.stopTimer(lobbyID)

			if err = that.gameRepo.DeleteByID(ctx, lobbyID); err != nil {
				that.logger.Error("failed to delete finished game", "lobbyID", lobbyID, "error", err)
			}

			return state, result, nil
		}
	} else {
		state.Combat.TurnID = target
		that.scheduleCombatTimer(lobbyID)
	}

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, nil, fmt.Errorf("failed to save game state: %w", err)
	}

	return state, result, nil
}

// resolveDefeat closes the combat, respawns the loser and either finishes
// the game or resumes the interrupted turn.
func (that *GameManager) resolveDefeat(state *entity.GameState, winner, loser *entity.Player) {
	winner.WinCount++
	loser.LoseCount++

	loser.Life = loser.MaxLife
	that.respawn(state, loser)

	state.Combat = nil
	state.Status = entity.StatusOngoing

	if winner.WinCount >= that.rules.WinCountToFinish {
		state.Status = entity.StatusFinished
		state.Winner = winner.Name
		return
	}

	if state.CurrentPlayer == loser.ID {
		// The turn holder lost their own fight; their turn is forfeit.
		state.CurrentPlayer = state.NextPlayerID()
		state.TurnCounter++
		that.beginTurn(state)
	} else {
		that.resumeTurn(state)
	}

	that.scheduleTurnTimer(state.ID)
}

// resumeTurn republishes the reachable set for the interrupted turn holder
// without refilling their budgets.
func (that *GameManager) resumeTurn(state *entity.GameState) {
	player := state.ActivePlayer()
	if player == nil {
		return
	}

	state.CurrentPlayerMovementPoints = player.CurrentMP
	state.CurrentPlayerActionPoints = player.CurrentAP
	state.AvailableMoves = pathfinding.FindReachablePositions(state, state.PlayerPositions[player.ID], player.CurrentMP)
}

// respawn puts the player back on their spawn tile, or the closest free tile
// when something else stands there.
func (that *GameManager) respawn(state *entity.GameState, player *entity.Player) {
	spawn, ok := state.SpawnPoints[player.ID]
	if !ok {
		spawn = entity.Coordinates{X: 0, Y: 0}
	}

	previousCurrent := state.CurrentPlayer
	state.CurrentPlayer = player.ID
	spot := pathfinding.FindClosestAvailableSpot(state, spawn)
	state.CurrentPlayer = previousCurrent

	if spot != entity.NoSpot {
		state.PlayerPositions[player.ID] = spot
	}
}

// Flee rolls the configured escape chance. Success dissolves the combat and
// resumes the turn; failure hands the combat turn to the opponent. Attempts
// are capped per fighter per combat.
func (that *GameManager) Flee(ctx context.Context, lobbyID, playerID string) (*entity.GameState, *FleeResult, error) {
	defer that.acquire(lobbyID)()

	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get game state: %w", err)
	}

	if !state.IsInCombat() {
		return nil, nil, apperror.ErrNotInCombat
	}
	if state.Combat.TurnID != playerID {
		return nil, nil, apperror.ErrNotYourTurn
	}

	attempts := state.Combat.FleeAttempts[playerID]
	if attempts >= that.rules.MaxFleeAttempts {
		return nil, nil, apperror.ErrNoFleeAttemptsLeft
	}
	state.Combat.FleeAttempts[playerID] = attempts + 1

	player := state.FindPlayerByID(playerID)
	if player == nil {
		return nil, nil, apperror.ErrPlayerNotFound
	}
	player.FleeCount++

	result := &FleeResult{
		PlayerID:     playerID,
		Success:      that.rng.Float64() < that.rules.EscapeChance,
		AttemptsLeft: that.rules.MaxFleeAttempts - attempts - 1,
	}

	if result.Success {
		player.AmountEscape++
		state.Combat = nil
		state.Status = entity.StatusOngoing
		that.resumeTurn(state)
		that.scheduleTurnTimer(lobbyID)
	} else {
		state.Combat.TurnID = that.combatOpponent(state.Combat, playerID)
		that.scheduleCombatTimer(lobbyID)
	}

	if err = that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return nil, nil, fmt.Errorf("failed to save game state: %w", err)
	}

	return state, result, nil
}

func (that *GameManager) combatOpponent(combat *entity.CombatState, playerID string) string {
	if combat.AttackerID == playerID {
		return combat.DefenderID
	}
	return combat.AttackerID
}

// scheduleCombatTimer arms the short combat countdown; expiry swings for the
// hesitating fighter.
func (that *GameManager) scheduleCombatTimer(lobbyID string) {
	if that.rules.CombatTurnSeconds <= 0 {
		return
	}

	that.armTimer(lobbyID, time.Duration(that.rules.CombatTurnSeconds)*time.Second, func() {
		that.expireCombatTurn(lobbyID)
	})
}

func (that *GameManager) expireCombatTurn(lobbyID string) {
	log := that.logger.With("method", "expireCombatTurn", "lobbyID", lobbyID)

	ctx := context.Background()

	state, err := that.gameRepo.GetByID(ctx, lobbyID)
	if err != nil {
		log.Error("failed to get game state", "error", err)
		return
	}
	if !state.IsInCombat() {
		return
	}

	next, result, err := that.Attack(ctx, lobbyID, state.Combat.TurnID)
	if err != nil {
		log.Error("failed to auto-attack on combat expiry", "error", err)
		return
	}

	if that.publisher == nil {
		return
	}

	that.publisher.Publish(lobbyID, "attackResult", CombatPayload{GameState: next, Attack: result})

	if next.IsFinished() {
		that.publisher.Publish(lobbyID, "gameOver", GameOverPayload{GameState: next, Winner: next.Winner})
	}
}

// CombatPayload is the body of combatStarted/attackResult/fleeResult events.
type CombatPayload struct {
	GameState *entity.GameState `json:"gameState"`
	Attack    *AttackResult     `json:"attack,omitempty"`
	Flee      *FleeResult       `json:"flee,omitempty"`
}

// GameOverPayload is the body of the gameOver event.
type GameOverPayload struct {
	GameState *entity.GameState `json:"gameState"`
	Winner    string            `json:"winner"`
}
