// Package store defines checkpoint persistence for conversational turn
// state, keyed by thread id. A thread is one logical conversation; its
// checkpoint is read at the start of every turn and written back at the
// end. Backends live in subpackages (memory, file, sqlite, redis,
// postgres).
package store

import (
	"context"
	"time"
)

// Checkpoint is a persisted snapshot of turn state for one thread.
type Checkpoint struct {
	ThreadID  string         `json:"thread_id"`
	State     map[string]any `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
	Version   int            `json:"version"`
}

// CheckpointStore defines the interface for checkpoint persistence.
//
// Get returns (nil, nil) for an unknown thread: a missing checkpoint is
// the normal first-turn case, not an error. Writes are keyed by thread id
// and no cross-thread write ever occurs, so backends only need atomic
// single-key read-modify-write.
type CheckpointStore interface {
	// Get retrieves the checkpoint for a thread, nil if none exists.
	Get(ctx context.Context, threadID string) (*Checkpoint, error)

	// Put stores the state snapshot for a thread, replacing any previous
	// snapshot and bumping the version.
	Put(ctx context.Context, threadID string, state map[string]any) error

	// Delete removes a thread's checkpoint.
	Delete(ctx context.Context, threadID string) error

	// List returns the thread ids with a stored checkpoint.
	List(ctx context.Context) ([]string, error)
}
