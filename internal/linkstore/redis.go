package linkstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"paylink/internal/logger"
)

// KeyPrefix namespaces link keys in Redis.
const KeyPrefix = "paylink:link:"

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 0 keeps links forever
}

// RedisStore keeps links as JSON strings with an optional expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStoreWithClient(client, opts.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		log:    logger.WithComponent("linkstore-redis"),
	}
}

func (s *RedisStore) Put(ctx context.Context, link Link) error {
	payload, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("encode link: %w", err)
	}

	ok, err := s.client.SetNX(ctx, KeyPrefix+link.ID, payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX: %w", err)
	}
	if !ok {
		return ErrLinkExists
	}

	s.log.Debug().Str("link_id", link.ID).Dur("ttl", s.ttl).Msg("Link saved to Redis")
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Link, error) {
	payload, err := s.client.Get(ctx, KeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET: %w", err)
	}

	var link Link
	if err := json.Unmarshal(payload, &link); err != nil {
		return nil, fmt.Errorf("decode link %s: %w", id, err)
	}
	return &link, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
