package quota

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType represents the type of quota store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSupabase StoreType = "supabase"
)

// StoreOption is a functional option for configuring a quota store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
	supabaseURL string
	supabaseKey string
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithSupabase sets the Supabase project credentials.
func WithSupabase(url, apiKey string) StoreOption {
	return func(c *storeConfig) {
		c.supabaseURL = url
		c.supabaseKey = apiKey
	}
}

// NewStore creates a quota store of the given type. Supports "memory",
// "redis" (requires WithRedisClient), and "supabase" (requires
// WithSupabase).
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return &memoryStore{records: make(map[string]*Record)}, nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client: config.redisClient,
			ttl:    config.redisTTL,
		}, nil

	case StoreTypeSupabase:
		return NewSupabaseStore(config.supabaseURL, config.supabaseKey)

	default:
		return nil, ErrInvalidStoreType
	}
}
