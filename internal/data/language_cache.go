package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

const defaultLanguageTTL = 24 * time.Hour

// RedisLanguageCache caches repository languages in Redis so non-GitHub
// dispatches do not hit the code-management collaborator on every event.
type RedisLanguageCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLanguageCache creates a new RedisLanguageCache. A non-positive TTL
// falls back to 24h.
func NewRedisLanguageCache(client redis.UniversalClient, ttl time.Duration) *RedisLanguageCache {
	if ttl <= 0 {
		ttl = defaultLanguageTTL
	}
	return &RedisLanguageCache{client: client, ttl: ttl}
}

func languageKey(org model.OrganizationAndTeamData, repositoryID string) string {
	return fmt.Sprintf("repo_language:%s:%s", org.OrganizationID, repositoryID)
}

// GetLanguage returns the cached language and whether the key was present.
func (c *RedisLanguageCache) GetLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, bool, error) {
	if repositoryID == "" {
		return "", false, errors.New("repository id is required")
	}

	result, err := c.client.Get(ctx, languageKey(org, repositoryID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get language: %w", err)
	}
	return result, true, nil
}

// SetLanguage stores the language under the tenant-scoped key.
func (c *RedisLanguageCache) SetLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID, language string) error {
	if repositoryID == "" {
		return errors.New("repository id is required")
	}
	if err := c.client.Set(ctx, languageKey(org, repositoryID), language, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set language: %w", err)
	}
	return nil
}

// Health checks the Redis connection.
func (c *RedisLanguageCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// RedisConfig holds connection settings for the Redis client.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// NewRedisClient creates a new Redis client with the given configuration.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
