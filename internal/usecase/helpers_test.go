package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/config"
	"github.com/polygrid/tactics-backend/internal/entity"
)

// In-memory repositories standing in for redis in manager tests.

type memLobbyRepo struct {
	mu      sync.Mutex
	lobbies map[string]*entity.GameLobby
}

func newMemLobbyRepo() *memLobbyRepo {
	return &memLobbyRepo{lobbies: make(map[string]*entity.GameLobby)}
}

func (that *memLobbyRepo) CreateOrUpdate(_ context.Context, lobby *entity.GameLobby) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.lobbies[lobby.ID] = lobby
	return nil
}

func (that *memLobbyRepo) GetByID(_ context.Context, id string) (*entity.GameLobby, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	lobby, ok := that.lobbies[id]
	if !ok {
		return nil, apperror.ErrLobbyNotFound
	}
	return lobby, nil
}

func (that *memLobbyRepo) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.lobbies, id)
	return nil
}

type memGameRepo struct {
	mu    sync.Mutex
	games map[string]*entity.GameState
}

func newMemGameRepo() *memGameRepo {
	return &memGameRepo{games: make(map[string]*entity.GameState)}
}

func (that *memGameRepo) CreateOrUpdate(_ context.Context, game *entity.GameState) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.games[game.ID] = game
	return nil
}

func (that *memGameRepo) GetByID(_ context.Context, id string) (*entity.GameState, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	game, ok := that.games[id]
	if !ok {
		return nil, apperror.ErrGameNotFound
	}
	return game, nil
}

func (that *memGameRepo) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.games, id)
	return nil
}

type memTemplateRepo struct {
	mu        sync.Mutex
	templates map[string]*entity.GameTemplate
}

func newMemTemplateRepo(templates ...*entity.GameTemplate) *memTemplateRepo {
	repo := &memTemplateRepo{templates: make(map[string]*entity.GameTemplate)}
	for _, template := range templates {
		repo.templates[template.ID] = template
	}
	return repo
}

func (that *memTemplateRepo) GetByID(_ context.Context, id string) (*entity.GameTemplate, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	template, ok := that.templates[id]
	if !ok {
		return nil, apperror.ErrTemplateNotFound
	}
	return template, nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	lobbyID string
	event   string
	payload any
}

func (that *recordingPublisher) Publish(lobbyID, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.events = append(that.events, publishedEvent{lobbyID: lobbyID, event: event, payload: payload})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRules disables the timers so tests drive every transition themselves.
func testRules() config.Game {
	return config.Game{
		TurnSeconds:         0,
		CombatTurnSeconds:   0,
		ActionPointsPerTurn: 1,
		EscapeChance:        0.3,
		MaxFleeAttempts:     2,
		AttackDiceSides:     6,
		DefenseDiceSides:    4,
		WinCountToFinish:    3,
	}
}

// smallTemplate is a 4x4 all-grass board with two spawn tiles in opposite
// corners.
func smallTemplate() *entity.GameTemplate {
	spawn := entity.EncodeTile(entity.TileGrass, entity.ObjectSpawn)
	return &entity.GameTemplate{
		ID:      "template-small",
		Name:    "Small Arena",
		MapSize: entity.MapSizeSmall,
		Board: [][]int{
			{spawn, 0, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 0, spawn},
		},
	}
}

// startedGame wires both managers over in-memory repositories, joins the
// named players into a lobby and starts the game.
func startedGame(t *testing.T, names ...string) (*GameManager, *LobbyManager, *entity.GameState) {
	t.Helper()
	return startedGameWithRules(t, testRules(), names...)
}

func startedGameWithRules(t *testing.T, rules config.Game, names ...string) (*GameManager, *LobbyManager, *entity.GameState) {
	t.Helper()

	ctx := context.Background()

	lobbies := newMemLobbyRepo()
	games := newMemGameRepo()
	templates := newMemTemplateRepo(smallTemplate())

	lobbyManager := NewLobbyManager(testLogger(), lobbies, templates)
	gameManager := NewGameManager(testLogger(), lobbies, games, templates, rules)
	gameManager.SeedRNG(1)

	lobby, err := lobbyManager.CreateLobby(ctx, "template-small")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	lobby.MaxPlayers = len(names)

	for _, name := range names {
		if _, err = lobbyManager.JoinLobby(ctx, lobby.ID, &entity.Player{Name: name}); err != nil {
			t.Fatalf("join lobby: %v", err)
		}
	}

	host := lobby.Host()
	if host == nil {
		t.Fatal("lobby has no host")
	}

	state, err := gameManager.StartGame(ctx, lobby.ID, host.ID)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}

	return gameManager, lobbyManager, state
}
