// Package redis implements a session snapshot store backed by Redis.  Each
// snapshot is a JSON value under "arcflow:session:<id>" with a configurable
// TTL so abandoned sessions expire on their own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arcflow/arcflow/runtime/execution"
	"github.com/arcflow/arcflow/service/dao"
	"github.com/arcflow/arcflow/service/dao/criteria"
)

// DefaultTTL keeps paused sessions resumable for a day.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "arcflow:session:"

// Service implements dao.Service over a Redis client.
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

var _ dao.Service[string, execution.Snapshot] = (*Service)(nil)

// New connects to the given Redis URL and verifies the connection.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*Service, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{client: client, ttl: ttl}, nil
}

// Save stores the snapshot and refreshes its TTL.
func (s *Service) Save(ctx context.Context, snapshot *execution.Snapshot) error {
	if snapshot == nil {
		return dao.ErrNilEntity
	}
	if snapshot.ID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+snapshot.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by session id.
func (s *Service) Load(ctx context.Context, id string) (*execution.Snapshot, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	data, err := s.client.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, dao.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var snapshot execution.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &snapshot, nil
}

// Delete removes the snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	removed, err := s.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if removed == 0 {
		return dao.ErrNotFound
	}
	return nil
}

// List scans all session keys and returns matching snapshots.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Snapshot, error) {
	var snapshots []*execution.Snapshot
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var snapshot execution.Snapshot
		if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
			continue
		}
		if !criteria.FilterByStatus(string(snapshot.Status), parameters) {
			continue
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return snapshots, nil
}

// ExtendTTL refreshes the expiry of a stored session.
func (s *Service) ExtendTTL(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, keyPrefix+id, ttl).Err(); err != nil {
		return fmt.Errorf("failed to extend session TTL: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Service) Close() error {
	return s.client.Close()
}
