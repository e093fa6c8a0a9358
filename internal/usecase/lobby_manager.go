package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/entity"
	"github.com/polygrid/tactics-backend/internal/pkg"
)

const maxCodeAttempts = 20

type lobbyRepo interface {
	CreateOrUpdate(ctx context.Context, lobby *entity.GameLobby) error
	GetByID(ctx context.Context, id string) (*entity.GameLobby, error)
	DeleteByID(ctx context.Context, id string) error
}

type templateRepo interface {
	GetByID(ctx context.Context, id string) (*entity.GameTemplate, error)
}

// LobbyManager owns the lobby lifecycle: Open -> Locked <-> Open -> deleted.
type LobbyManager struct {
	logger       *slog.Logger
	lobbyRepo    lobbyRepo
	templateRepo templateRepo
}

func NewLobbyManager(logger *slog.Logger, lobbyRepo lobbyRepo, templateRepo templateRepo) *LobbyManager {
	return &LobbyManager{
		logger: logger,

		lobbyRepo:    lobbyRepo,
		templateRepo: templateRepo,
	}
}

// CreateLobby opens a new lobby for the given template. Capacity follows the
// template's map size. The creator joins through JoinLobby like everyone else
// and becomes host as the first player in.
func (that *LobbyManager) CreateLobby(ctx context.Context, templateID string) (*entity.GameLobby, error) {
	template, err := that.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	code, err := that.freeLobbyCode(ctx)
	if err != nil {
		return nil, err
	}

	lobby := &entity.GameLobby{
		ID:         code,
		GameID:     template.ID,
		Players:    []*entity.Player{},
		IsLocked:   false,
		MaxPlayers: entity.MaxPlayersForMapSize(template.MapSize),
	}

	if err = that.lobbyRepo.CreateOrUpdate(ctx, lobby); err != nil {
		return nil, fmt.Errorf("failed to create lobby: %w", err)
	}

	return lobby, nil
}

// freeLobbyCode draws codes until one is unused.
func (that *LobbyManager) freeLobbyCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := pkg.GenerateLobbyCode()

		_, err := that.lobbyRepo.GetByID(ctx, code)
		if errors.Is(err, apperror.ErrLobbyNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check lobby code: %w", err)
		}
	}

	return "", errors.New("could not find a free lobby code")
}

// JoinLobby appends the player to the lobby. The first player in becomes the
// host. Names are made unique within the lobby so leave-by-name stays
// unambiguous.
func (that *LobbyManager) JoinLobby(ctx context.Context, lobbyID string, player *entity.Player) (*entity.GameLobby, error) {
	log := that.logger.With("method", "JoinLobby")

	lobby, err := that.lobbyRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}

	if lobby.IsLocked || lobby.IsFull() {
		return nil, apperror.ErrLobbyLockedOrFull
	}

	if player.ID == "" {
		player.ID = pkg.GeneratePlayerID()
	}
	applyDefaultStats(player)

	player.Name = uniqueName(lobby, player.Name)
	player.IsHost = len(lobby.Players) == 0

	lobby.Players = append(lobby.Players, player)

	if err = that.lobbyRepo.CreateOrUpdate(ctx, lobby); err != nil {
		return nil, fmt.Errorf("failed to update lobby: %w", err)
	}

	log.Info("player joined lobby", "lobbyID", lobby.ID, "player", player.Name)

	return lobby, nil
}

// LeaveLobby removes the named player before the game starts. A host leaving
// deletes the whole lobby. Absent lobby or player is a no-op.
func (that *LobbyManager) LeaveLobby(ctx context.Context, lobbyID, playerName string) (*entity.GameLobby, bool, error) {
	log := that.logger.With("method", "LeaveLobby")

	lobby, err := that.lobbyRepo.GetByID(ctx, lobbyID)
	if errors.Is(err, apperror.ErrLobbyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get lobby: %w", err)
	}

	removed, wasHost := lobby.RemovePlayer(playerName)
	if !removed {
		return lobby, false, nil
	}

	if wasHost {
		if err = that.lobbyRepo.DeleteByID(ctx, lobbyID); err != nil {
			return nil, false, fmt.Errorf("failed to delete lobby: %w", err)
		}

		log.Info("host left, lobby deleted", "lobbyID", lobbyID)

		return nil, true, nil
	}

	if err = that.lobbyRepo.CreateOrUpdate(ctx, lobby); err != nil {
		return nil, false, fmt.Errorf("failed to update lobby: %w", err)
	}

	log.Info("player left lobby", "lobbyID", lobbyID, "player", playerName)

	return lobby, false, nil
}

// LeaveGame removes the named player from the lobby roster mid-game. The
// lobby itself survives non-host departures; the running game is adjusted
// separately by the game manager.
func (that *LobbyManager) LeaveGame(ctx context.Context, lobbyID, playerName string) (*entity.GameLobby, error) {
	lobby, err := that.lobbyRepo.GetByID(ctx, lobbyID)
	if errors.Is(err, apperror.ErrLobbyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}

	if removed, _ := lobby.RemovePlayer(playerName); !removed {
		return lobby, nil
	}

	if err = that.lobbyRepo.CreateOrUpdate(ctx, lobby); err != nil {
		return nil, fmt.Errorf("failed to update lobby: %w", err)
	}

	return lobby, nil
}

// LockLobby toggles the lock flag.
func (that *LobbyManager) LockLobby(ctx context.Context, lobbyID string) (*entity.GameLobby, error) {
	lobby, err := that.lobbyRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}

	lobby.IsLocked = !lobby.IsLocked

	if err = that.lobbyRepo.CreateOrUpdate(ctx, lobby); err != nil {
		return nil, fmt.Errorf("failed to update lobby: %w", err)
	}

	return lobby, nil
}

// GetLobby is a pure lookup.
func (that *LobbyManager) GetLobby(ctx context.Context, lobbyID string) (*entity.GameLobby, error) {
	lobby, err := that.lobbyRepo.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}

	return lobby, nil
}

// applyDefaultStats fills in the base combat profile for players that joined
// without one.
func applyDefaultStats(player *entity.Player) {
	if player.MaxLife == 0 {
		player.MaxLife = 4
	}
	if player.Life == 0 {
		player.Life = player.MaxLife
	}
	if player.Speed == 0 {
		player.Speed = 4
	}
	if player.Attack == 0 {
		player.Attack = 4
	}
	if player.Defense == 0 {
		player.Defense = 4
	}
}

func uniqueName(lobby *entity.GameLobby, name string) string {
	if name == "" {
		name = "Player"
	}

	candidate := name
	suffix := 2
	for lobby.FindPlayer(candidate) != nil {
		candidate = fmt.Sprintf("%s-%d", name, suffix)
		suffix++
	}

	return candidate
}
