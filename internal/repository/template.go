package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/polygrid/tactics-backend/internal/apperror"
	"github.com/polygrid/tactics-backend/internal/entity"
)

type TemplateRepository interface {
	CreateOrUpdate(ctx context.Context, template *entity.GameTemplate) error
	GetByID(ctx context.Context, id string) (*entity.GameTemplate, error)
	GetAll(ctx context.Context) ([]*entity.GameTemplate, error)
}

type dbTemplate struct {
	client *redis.Client
}

func NewTemplateRepository(client *redis.Client) TemplateRepository {
	return &dbTemplate{
		client: client,
	}
}

func (that *dbTemplate) CreateOrUpdate(ctx context.Context, template *entity.GameTemplate) error {
	templateJSON, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("could not marshal template: %w", err)
	}

	templateKey := "template:" + template.ID
	if err = that.client.Set(ctx, templateKey, templateJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set template: %w", err)
	}

	return nil
}

func (that *dbTemplate) GetByID(ctx context.Context, id string) (*entity.GameTemplate, error) {
	templateKey := "template:" + id

	response, err := that.client.Get(ctx, templateKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrTemplateNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	var template entity.GameTemplate
	if err = json.Unmarshal([]byte(response), &template); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}

	return &template, nil
}

func (that *dbTemplate) GetAll(ctx context.Context) ([]*entity.GameTemplate, error) {
	keys, err := that.client.Keys(ctx, "template:*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	sort.Strings(keys)

	templates := make([]*entity.GameTemplate, 0, len(keys))
	for _, key := range keys {
		response, err := that.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get template %s: %w", key, err)
		}

		var template entity.GameTemplate
		if err = json.Unmarshal([]byte(response), &template); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template %s: %w", key, err)
		}
		templates = append(templates, &template)
	}

	return templates, nil
}
