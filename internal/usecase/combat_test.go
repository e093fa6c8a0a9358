package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/config"
	"github.com/polygrid/tactics-backend/internal/entity"
)

// combatSetup starts a two player game and pins the fighters onto adjacent
// tiles.
func combatSetup(t *testing.T, rules config.Game) (*GameManager, *entity.GameState, *entity.Player, *entity.Player) {
	t.Helper()

	manager, _, state := startedGameWithRules(t, rules, "alice", "bob")

	attacker := state.ActivePlayer()
	defender := state.Players[1]
	if defender.ID == attacker.ID {
		defender = state.Players[0]
	}

	state.PlayerPositions[attacker.ID] = entity.Coordinates{X: 1, Y: 1}
	state.PlayerPositions[defender.ID] = entity.Coordinates{X: 1, Y: 2}

	return manager, state, attacker, defender
}

func TestStartCombat(t *testing.T) {
	ctx := context.Background()

	t.Run("enters the combat sub-state and spends an action point", func(t *testing.T) {
		manager, state, attacker, defender := combatSetup(t, testRules())

		updated, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)

		require.NoError(t, err)
		assert.Equal(t, entity.StatusCombat, updated.Status)
		require.NotNil(t, updated.Combat)
		assert.Equal(t, attacker.ID, updated.Combat.AttackerID)
		assert.Equal(t, defender.ID, updated.Combat.DefenderID)
		assert.Equal(t, attacker.ID, updated.Combat.TurnID)
		assert.Equal(t, 0, attacker.CurrentAP)
	})

	t.Run("requires adjacency", func(t *testing.T) {
		manager, state, attacker, defender := combatSetup(t, testRules())

		state.PlayerPositions[defender.ID] = entity.Coordinates{X: 3, Y: 3}

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)

		assert.ErrorIs(t, err, apperror.ErrNotAdjacent)
	})

	t.Run("requires the turn", func(t *testing.T) {
		manager, state, attacker, defender := combatSetup(t, testRules())

		_, err := manager.StartCombat(ctx, state.ID, defender.ID, attacker.ID)

		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("requires an action point", func(t *testing.T) {
		manager, state, attacker, defender := combatSetup(t, testRules())

		attacker.CurrentAP = 0

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)

		assert.ErrorIs(t, err, apperror.ErrNotEnoughActionPoints)
	})

	t.Run("no nested combat", func(t *testing.T) {
		manager, state, attacker, defender := combatSetup(t, testRules())

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		_, err = manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)

		assert.ErrorIs(t, err, apperror.ErrAlreadyInCombat)
	})
}

func TestAttack(t *testing.T) {
	ctx := context.Background()

	t.Run("rolls stay within the dice bounds", func(t *testing.T) {
		manager, state, attacker, defender := combatSetup(t, testRules())

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		lifeBefore := defender.Life

		_, result, err := manager.Attack(ctx, state.ID, attacker.ID)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, result.AttackRoll, attacker.Attack+1)
		assert.LessOrEqual(t, result.AttackRoll, attacker.Attack+testRules().AttackDiceSides)
		assert.GreaterOrEqual(t, result.DefenseRoll, defender.Defense+1)
		assert.LessOrEqual(t, result.DefenseRoll, defender.Defense+testRules().DefenseDiceSides)

		if result.Damage > 0 {
			assert.Equal(t, result.AttackRoll-result.DefenseRoll, result.Damage)
			assert.Equal(t, lifeBefore-result.Damage, defender.Life)
		} else {
			assert.Equal(t, lifeBefore, defender.Life)
		}
	})

	t.Run("a miss hands the exchange to the opponent", func(t *testing.T) {
		// Attack 1 + d6 can never beat defense 10 + d4.
		manager, state, attacker, defender := combatSetup(t, testRules())
		attacker.Attack = 1
		defender.Defense = 10

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		updated, result, err := manager.Attack(ctx, state.ID, attacker.ID)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Damage)
		assert.Equal(t, defender.ID, updated.Combat.TurnID)
	})

	t.Run("out of turn attack is rejected", func(t *testing.T) {
		manager, state, attacker, defender := combatSetup(t, testRules())

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		_, _, err = manager.Attack(ctx, state.ID, defender.ID)

		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("attack outside combat is rejected", func(t *testing.T) {
		manager, state, attacker, _ := combatSetup(t, testRules())

		_, _, err := manager.Attack(ctx, state.ID, attacker.ID)

		assert.ErrorIs(t, err, apperror.ErrNotInCombat)
	})

	t.Run("defeat respawns the loser and ends the combat", func(t *testing.T) {
		// Attack 20 + d6 always beats defense 1 + d4 by enough to finish a
		// one-life defender.
		manager, state, attacker, defender := combatSetup(t, testRules())
		attacker.Attack = 20
		defender.Defense = 1
		defender.Life = 1

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		updated, result, err := manager.Attack(ctx, state.ID, attacker.ID)
		require.NoError(t, err)

		assert.Equal(t, defender.ID, result.DefeatedID)
		assert.Equal(t, 1, attacker.WinCount)
		assert.Equal(t, 1, defender.LoseCount)

		// Combat over, loser back at full life on their spawn tile.
		assert.Nil(t, updated.Combat)
		assert.Equal(t, entity.StatusOngoing, updated.Status)
		assert.Equal(t, defender.MaxLife, defender.Life)
		assert.Equal(t, updated.SpawnPoints[defender.ID], updated.PlayerPositions[defender.ID])

		// The attacker held the turn and keeps it.
		assert.Equal(t, attacker.ID, updated.CurrentPlayer)
	})

	t.Run("losing your own turn forfeits it", func(t *testing.T) {
		// The defender wins the exchange the attacker started.
		manager, state, attacker, defender := combatSetup(t, testRules())
		attacker.Attack = 1
		attacker.Defense = 1
		attacker.Life = 1
		defender.Defense = 10
		defender.Attack = 20

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		// Attacker whiffs, defender strikes back and defeats them.
		_, _, err = manager.Attack(ctx, state.ID, attacker.ID)
		require.NoError(t, err)
		updated, result, err := manager.Attack(ctx, state.ID, defender.ID)
		require.NoError(t, err)

		assert.Equal(t, attacker.ID, result.DefeatedID)
		assert.Equal(t, defender.ID, updated.CurrentPlayer)
		assert.Equal(t, 2, updated.TurnCounter)
	})

	t.Run("enough round wins finish the game", func(t *testing.T) {
		rules := testRules()
		rules.WinCountToFinish = 1

		manager, state, attacker, defender := combatSetup(t, rules)
		attacker.Attack = 20
		defender.Defense = 1
		defender.Life = 1

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		updated, result, err := manager.Attack(ctx, state.ID, attacker.ID)
		require.NoError(t, err)

		assert.Equal(t, entity.StatusFinished, updated.Status)
		assert.Equal(t, attacker.Name, updated.Winner)
		assert.Equal(t, attacker.Name, result.WinnerName)

		_, err = manager.GetGame(ctx, state.ID)
		assert.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestCombatTimerExpiry(t *testing.T) {
	// A hesitating fighter swings automatically; the exchange is broadcast
	// through the publisher.
	ctx := context.Background()

	manager, state, attacker, defender := combatSetup(t, testRules())

	publisher := &recordingPublisher{}
	manager.SetPublisher(publisher)

	_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
	require.NoError(t, err)

	manager.expireCombatTurn(state.ID)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, state.ID, event.lobbyID)
	assert.Equal(t, "attackResult", event.event)

	payload, ok := event.payload.(CombatPayload)
	require.True(t, ok)
	require.NotNil(t, payload.Attack)
	assert.Equal(t, attacker.ID, payload.Attack.AttackerID)
	assert.Equal(t, defender.ID, payload.Attack.DefenderID)
}

func TestFlee(t *testing.T) {
	ctx := context.Background()

	t.Run("success dissolves the combat and resumes the turn", func(t *testing.T) {
		rules := testRules()
		rules.EscapeChance = 1.0

		manager, state, attacker, defender := combatSetup(t, rules)

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		updated, result, err := manager.Flee(ctx, state.ID, attacker.ID)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Nil(t, updated.Combat)
		assert.Equal(t, entity.StatusOngoing, updated.Status)
		assert.Equal(t, 1, attacker.AmountEscape)

		// The interrupted turn resumes without a budget refill.
		assert.Equal(t, attacker.ID, updated.CurrentPlayer)
		assert.Equal(t, 0, updated.CurrentPlayerActionPoints)
	})

	t.Run("failure hands the combat turn to the opponent", func(t *testing.T) {
		rules := testRules()
		rules.EscapeChance = 0

		manager, state, attacker, defender := combatSetup(t, rules)

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		updated, result, err := manager.Flee(ctx, state.ID, attacker.ID)
		require.NoError(t, err)

		assert.False(t, result.Success)
		assert.Equal(t, 1, result.AttemptsLeft)
		require.NotNil(t, updated.Combat)
		assert.Equal(t, defender.ID, updated.Combat.TurnID)
		assert.Equal(t, 1, attacker.FleeCount)
	})

	t.Run("attempts are capped per combat", func(t *testing.T) {
		rules := testRules()
		rules.EscapeChance = 0
		rules.MaxFleeAttempts = 1

		manager, state, attacker, defender := combatSetup(t, rules)

		_, err := manager.StartCombat(ctx, state.ID, attacker.ID, defender.ID)
		require.NoError(t, err)

		_, result, err := manager.Flee(ctx, state.ID, attacker.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, result.AttemptsLeft)

		// Hand the exchange back to the attacker without damage.
		state.Combat.TurnID = attacker.ID

		_, _, err = manager.Flee(ctx, state.ID, attacker.ID)

		assert.ErrorIs(t, err, apperror.ErrNoFleeAttemptsLeft)
	})

	t.Run("flee outside combat is rejected", func(t *testing.T) {
		manager, state, attacker, _ := combatSetup(t, testRules())

		_, _, err := manager.Flee(ctx, state.ID, attacker.ID)

		assert.ErrorIs(t, err, apperror.ErrNotInCombat)
	})
}
