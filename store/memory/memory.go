// Package memory provides an in-process checkpoint store, the default for
// tests and single-process deployments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smallnest/turnflow/store"
)

// CheckpointStore implements store.CheckpointStore with a mutex-guarded map.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]*store.Checkpoint),
	}
}

// Get retrieves the checkpoint for a thread, nil if none exists.
func (s *CheckpointStore) Get(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	cp, ok := s.checkpoints[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	state, err := cloneState(cp.State)
	if err != nil {
		return nil, err
	}
	return &store.Checkpoint{
		ThreadID:  cp.ThreadID,
		State:     state,
		UpdatedAt: cp.UpdatedAt,
		Version:   cp.Version,
	}, nil
}

// Put stores the state snapshot for a thread.
func (s *CheckpointStore) Put(ctx context.Context, threadID string, state map[string]any) error {
	snapshot, err := cloneState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := 1
	if prev, ok := s.checkpoints[threadID]; ok {
		version = prev.Version + 1
	}
	s.checkpoints[threadID] = &store.Checkpoint{
		ThreadID:  threadID,
		State:     snapshot,
		UpdatedAt: time.Now(),
		Version:   version,
	}
	return nil
}

// Delete removes a thread's checkpoint.
func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.checkpoints, threadID)
	s.mu.Unlock()
	return nil
}

// List returns the thread ids with a stored checkpoint, sorted.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.checkpoints))
	for id := range s.checkpoints {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

// cloneState deep-copies through JSON so callers never alias stored state.
// This also gives in-memory states the same shape as ones loaded from a
// persistent backend.
func cloneState(state map[string]any) (map[string]any, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return out, nil
}
