// Package redis provides a checkpoint store backed by Redis, for
// deployments where multiple processes serve turns for the same threads.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/turnflow/store"
)

// CheckpointStore implements store.CheckpointStore using Redis.
type CheckpointStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// Options configuration for the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "turnflow:"

	// TTL expires idle threads, including any pending operation they
	// carry. Zero means no expiration.
	TTL time.Duration
}

// NewCheckpointStore creates a new Redis checkpoint store.
func NewCheckpointStore(opts Options) *CheckpointStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "turnflow:"
	}

	return &CheckpointStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *CheckpointStore) key(threadID string) string {
	return fmt.Sprintf("%sthread:%s", s.prefix, threadID)
}

// Get retrieves the checkpoint for a thread, nil if none exists.
func (s *CheckpointStore) Get(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var cp store.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Put stores the state snapshot for a thread.
func (s *CheckpointStore) Put(ctx context.Context, threadID string, state map[string]any) error {
	version := 1
	if prev, err := s.Get(ctx, threadID); err == nil && prev != nil {
		version = prev.Version + 1
	}

	cp := store.Checkpoint{
		ThreadID:  threadID,
		State:     state,
		UpdatedAt: time.Now(),
		Version:   version,
	}
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := s.client.Set(ctx, s.key(threadID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// Delete removes a thread's checkpoint.
func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, s.key(threadID)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint from redis: %w", err)
	}
	return nil
}

// List returns the thread ids with a stored checkpoint, sorted.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	pattern := s.key("*")
	keyPrefix := s.key("")

	var ids []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan checkpoints: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Close closes the underlying Redis client.
func (s *CheckpointStore) Close() error {
	return s.client.Close()
}
