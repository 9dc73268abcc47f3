package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "jpen:translations"

// RedisStore appends JSON records to a Redis list
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to url and verifies the server answers
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, key: defaultRedisKey}, nil
}

func (s *RedisStore) Load(ctx context.Context) ([]overlay.TranslationRecord, error) {
	items, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history from redis: %w", err)
	}

	records := make([]overlay.TranslationRecord, 0, len(items))
	for i, item := range items {
		var rec overlay.TranslationRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			slog.Warn("Skipping unreadable history record", "key", s.key, "index", i, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) Append(ctx context.Context, rec overlay.TranslationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to append history to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
