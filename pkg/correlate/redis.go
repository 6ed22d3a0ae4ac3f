package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps correlation records in Redis so that multiple relay
// instances share one view and records survive process restarts. Expiry
// is Redis-native (SET ... EX); GetAndDelete maps to GETDEL.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "relayclaw:corr:"
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		keyPrefix: prefix,
	}
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(requestID string) string {
	return s.keyPrefix + requestID
}

func (s *RedisStore) Put(ctx context.Context, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.RequestID, err)
	}
	if err := s.client.Set(ctx, s.key(rec.RequestID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) GetAndDelete(ctx context.Context, requestID string) (Record, bool, error) {
	data, err := s.client.GetDel(ctx, s.key(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decoding record %s: %w", requestID, err)
	}
	return rec, true, nil
}

func (s *RedisStore) Exists(ctx context.Context, requestID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(requestID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, requestID string) error {
	if err := s.client.Del(ctx, s.key(requestID)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
