package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/entity"
)

type LobbyRepository interface {
	CreateOrUpdate(ctx context.Context, lobby *entity.GameLobby) error
	GetByID(ctx context.Context, id string) (*entity.GameLobby, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbLobby struct {
	client *redis.Client
}

func NewLobbyRepository(client *redis.Client) LobbyRepository {
	return &dbLobby{
		client: client,
	}
}

func (that *dbLobby) CreateOrUpdate(ctx context.Context, lobby *entity.GameLobby) error {
	lobbyJSON, err := json.Marshal(lobby)
	if err != nil {
		return fmt.Errorf("could not marshal lobby: %w", err)
	}

	lobbyKey := "lobby:" + lobby.ID
	if err = that.client.Set(ctx, lobbyKey, lobbyJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set lobby: %w", err)
	}

	return nil
}

func (that *dbLobby) GetByID(ctx context.Context, id string) (*entity.GameLobby, error) {
	lobbyKey := "lobby:" + id

	response, err := that.client.Get(ctx, lobbyKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrLobbyNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}

	var lobby entity.GameLobby
	if err = json.Unmarshal([]byte(response), &lobby); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lobby: %w", err)
	}

	return &lobby, nil
}

func (that *dbLobby) DeleteByID(ctx context.Context, id string) error {
	lobbyKey := "lobby:" + id

	if err := that.client.Del(ctx, lobbyKey).Err(); err != nil {
		return fmt.Errorf("failed to delete lobby by ID: %w", err)
	}

	return nil
}
