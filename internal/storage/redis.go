package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"Story-Loom/server/internal/config"
	"Story-Loom/server/internal/models"
)

const narrationFeedLength = 50

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

// Helper methods for common operations
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func settingsKey(gameID string) string {
	return "content_settings:" + gameID
}

func narrationKey(gameID string) string {
	return "narration_feed:" + gameID
}

// GetSettings serves cached content settings. Cache misses and decode
// failures both report a miss so the caller falls through to MySQL.
func (s *RedisStore) GetSettings(ctx context.Context, gameID string) (*models.ContentSettings, bool) {
	data, err := s.client.Get(ctx, settingsKey(gameID)).Result()
	if err != nil {
		return nil, false
	}

	var settings models.ContentSettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		log.Printf("[Redis] bad cached settings for game %s: %v", gameID, err)
		s.client.Del(ctx, settingsKey(gameID))
		return nil, false
	}
	return &settings, true
}

// PutSettings caches content settings. Failures only cost a later cache
// miss, so they are logged and swallowed.
func (s *RedisStore) PutSettings(ctx context.Context, settings *models.ContentSettings, ttl time.Duration) {
	data, err := json.Marshal(settings)
	if err != nil {
		log.Printf("[Redis] failed to encode settings for game %s: %v", settings.GameID, err)
		return
	}
	if err := s.client.Set(ctx, settingsKey(settings.GameID), data, ttl).Err(); err != nil {
		log.Printf("[Redis] failed to cache settings for game %s: %v", settings.GameID, err)
	}
}

// InvalidateSettings drops the cached settings after a write.
func (s *RedisStore) InvalidateSettings(ctx context.Context, gameID string) {
	if err := s.client.Del(ctx, settingsKey(gameID)).Err(); err != nil {
		log.Printf("[Redis] failed to invalidate settings for game %s: %v", gameID, err)
	}
}

// PushNarration prepends a narration line to the game's recent feed,
// trimming it to the last narrationFeedLength lines.
func (s *RedisStore) PushNarration(ctx context.Context, gameID, text string) error {
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, narrationKey(gameID), text)
	pipe.LTrim(ctx, narrationKey(gameID), 0, narrationFeedLength-1)
	_, err := pipe.Exec(ctx)
	return err
}

// RecentNarration returns up to limit recent narration lines, newest first.
func (s *RedisStore) RecentNarration(ctx context.Context, gameID string, limit int) ([]string, error) {
	if limit <= 0 || limit > narrationFeedLength {
		limit = narrationFeedLength
	}
	return s.client.LRange(ctx, narrationKey(gameID), 0, int64(limit-1)).Result()
}
