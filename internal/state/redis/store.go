// Package redis persists the processed set as a Redis set.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout = 5 * time.Second
	defaultKey        = "drhp:processed"
)

// Store implements archiver.StateStore using SMEMBERS/SADD on one key.
type Store struct {
	client *redis.Client
	key    string
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, &archiver.ConfigError{Field: "state.redis.address", Err: ErrEmptyAddress}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewWithClient(client, cfg.Key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, key string) *Store {
	if key == "" {
		key = defaultKey
	}
	return &Store{client: client, key: key}
}

// Close releases the client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

// Load returns the members of the set; a missing key yields an empty set.
func (s *Store) Load(ctx context.Context) (archiver.ProcessedSet, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		if isWrongType(err) {
			return nil, &archiver.StateCorruptionError{Source: s.key, Err: err}
		}
		return nil, fmt.Errorf("load processed set: %w", err)
	}
	return archiver.NewProcessedSet(members...), nil
}

// Save replaces the set atomically with MULTI/EXEC.
func (s *Store) Save(ctx context.Context, set archiver.ProcessedSet) error {
	urls := set.Sorted()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(urls) > 0 {
			members := make([]any, len(urls))
			for i, u := range urls {
				members[i] = u
			}
			pipe.SAdd(ctx, s.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save processed set: %w", err)
	}
	return nil
}

func isWrongType(err error) bool {
	return strings.HasPrefix(err.Error(), "WRONGTYPE")
}
