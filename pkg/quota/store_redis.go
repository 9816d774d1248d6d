package quota

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implements Store on Redis with JSON values.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func quotaKey(userID string) string {
	return "quota:" + userID
}

// Fetch implements Store.
func (s *redisStore) Fetch(ctx context.Context, userID string) (*Record, error) {
	val, err := s.client.Get(ctx, quotaKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save implements Store.
func (s *redisStore) Save(ctx context.Context, userID string, rec *Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, quotaKey(userID), val, s.ttl).Err()
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
