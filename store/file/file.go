// Package file provides a checkpoint store backed by one JSON file per
// thread under a directory. Writes go through a temp file and rename so a
// crash never leaves a half-written checkpoint.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/turnflow/store"
)

const checkpointExt = ".json"

// CheckpointStore implements store.CheckpointStore on the filesystem.
type CheckpointStore struct {
	dir string
	mu  sync.Mutex
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates a file-based checkpoint store rooted at dir,
// creating the directory if needed.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &CheckpointStore{dir: dir}, nil
}

func (s *CheckpointStore) path(threadID string) string {
	// Thread ids may contain separators ("conv:user"); escape for the filesystem.
	return filepath.Join(s.dir, url.PathEscape(threadID)+checkpointExt)
}

// Get retrieves the checkpoint for a thread, nil if none exists.
func (s *CheckpointStore) Get(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	data, err := os.ReadFile(s.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp store.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Put stores the state snapshot for a thread.
func (s *CheckpointStore) Put(ctx context.Context, threadID string, state map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	target := s.path(threadID)
	tmp, err := os.CreateTemp(s.dir, "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return nil
}

// Delete removes a thread's checkpoint.
func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	err := os.Remove(s.path(threadID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns the thread ids with a stored checkpoint, sorted.
func (s *CheckpointStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint dir: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, checkpointExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, checkpointExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
