package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodhall/pkg/config"
	"github.com/example/foodhall/pkg/models"
	"github.com/go-redis/redis/v8"
)

const menuKey = "menu:items"

// ErrCacheMiss is returned by Cache lookups when nothing is stored under the key.
var ErrCacheMiss = errors.New("cache miss")

// Cache holds read-mostly projections. Callers treat every error as a miss.
type Cache interface {
	GetMenu(ctx context.Context) ([]models.Item, error)
	SetMenu(ctx context.Context, items []models.Item) error
	InvalidateMenu(ctx context.Context) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SetProfile(ctx context.Context, profile *models.Profile) error
}

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) GetMenu(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := r.GetJSON(ctx, menuKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RedisRepository) SetMenu(ctx context.Context, items []models.Item) error {
	return r.SetJSON(ctx, menuKey, items, r.config.MenuTTL)
}

func (r *RedisRepository) InvalidateMenu(ctx context.Context) error {
	return r.Del(ctx, menuKey)
}

func (r *RedisRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.GetJSON(ctx, fmt.Sprintf("user:%s", userID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *RedisRepository) SetProfile(ctx context.Context, profile *models.Profile) error {
	return r.SetJSON(ctx, fmt.Sprintf("user:%s", profile.ID), profile, r.config.UserTTL)
}

// NopCache is used when no redis address is configured.
type NopCache struct{}

func (NopCache) GetMenu(context.Context) ([]models.Item, error) { return nil, ErrCacheMiss }
func (NopCache) SetMenu(context.Context, []models.Item) error { return nil }
func (NopCache) InvalidateMenu(context.Context) error { return nil }
func (NopCache) GetProfile(context.Context, string) (*models.Profile, error) { return nil, ErrCacheMiss }
func (NopCache) SetProfile(context.Context, *models.Profile) error { return nil }
