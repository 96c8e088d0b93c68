// Package agent defines the caller-facing entry point of the engine: named
// agents with a Process method, a registry for wiring them at startup, and
// shared configuration for their heuristics.
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smallnest/turnflow/graph"
	"github.com/smallnest/turnflow/log"
	"github.com/smallnest/turnflow/store"
	"github.com/smallnest/turnflow/turn"
)

// Metadata keys the agent layer reads.
const (
	MetaConversationID = "conversation_id"
	MetaUserID         = "user_id"
	MetaSharedMemory   = "shared_memory"
)

// Agent is a named capability with a single turn-processing entry point.
//
// Process must always return a well-formed response mapping and never a
// node failure as an error: failures inside the graph are converted into
// task_status and error fields of the mapping. The error return is always
// nil for Base-backed agents and exists so other implementations can
// refuse calls they cannot represent as a turn at all.
type Agent interface {
	Name() string
	Process(ctx context.Context, query string, metadata map[string]any, history []turn.Message) (map[string]any, error)
}

// Base implements the shared turn plumbing every agent needs: a cached
// compiled graph, checkpoint load/merge at turn start, checkpoint write at
// turn end, and the allow-list response filter.
type Base struct {
	name      string
	runnable  *graph.Runnable
	store     store.CheckpointStore
	cfg       Config
	allowKeys map[string]struct{}
}

var _ Agent = (*Base)(nil)

// NewBase compiles the graph once and caches the runnable. A nil store
// yields a stateless agent: every turn starts fresh.
//
// extraKeys widens the default response allow-list (response, task_status,
// error) for agents that expose additional fields.
func NewBase(name string, g *graph.StateGraph, st store.CheckpointStore, cfg Config, extraKeys ...string) (*Base, error) {
	if cfg.StepLimit > 0 {
		g.SetStepLimit(cfg.StepLimit)
	}
	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph for agent %s: %w", name, err)
	}

	allow := map[string]struct{}{
		turn.KeyResponse:   {},
		turn.KeyTaskStatus: {},
		turn.KeyError:      {},
	}
	for _, k := range extraKeys {
		allow[k] = struct{}{}
	}

	return &Base{
		name:      name,
		runnable:  runnable,
		store:     st,
		cfg:       cfg,
		allowKeys: allow,
	}, nil
}

// Name returns the agent's registered name.
func (b *Base) Name() string {
	return b.name
}

// Config returns the agent's heuristics configuration.
func (b *Base) Config() Config {
	return b.cfg
}

// Process runs one conversational turn: load the thread's checkpoint,
// merge the new user message in, run the graph, persist the result, and
// return the allow-listed response fields.
func (b *Base) Process(ctx context.Context, query string, metadata map[string]any, history []turn.Message) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("agent %s: recovered from panic: %v", b.name, r)
			result = errorResponse(fmt.Sprintf("internal error: %v", r))
			err = nil
		}
	}()

	threadID := b.threadID(metadata)
	state := b.initialState(ctx, threadID, query, metadata, history)

	final, invokeErr := b.runnable.Invoke(ctx, state)
	if invokeErr != nil {
		log.Error("agent %s: graph failed for thread %s: %v", b.name, threadID, invokeErr)
		return errorResponse(invokeErr.Error()), nil
	}

	// A failed write degrades to a stateless turn, never a failed one.
	if b.store != nil {
		if putErr := b.store.Put(ctx, threadID, final); putErr != nil {
			log.Warn("agent %s: failed to checkpoint thread %s: %v", b.name, threadID, putErr)
		}
	}

	return b.filterResponse(final), nil
}

// threadID derives a stable thread id from (conversation_id, user_id).
// Without a conversation id the turn gets a throwaway thread.
func (b *Base) threadID(metadata map[string]any) string {
	conversationID, _ := metadata[MetaConversationID].(string)
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	userID, _ := metadata[MetaUserID].(string)
	if userID == "" {
		userID = turn.AnonymousUser
	}
	return conversationID + ":" + userID
}

func (b *Base) initialState(ctx context.Context, threadID, query string, metadata map[string]any, history []turn.Message) graph.State {
	userID, _ := metadata[MetaUserID].(string)
	state := turn.New(query, userID)
	state[turn.KeyMetadata] = turn.CloneMap(metadata)

	var cp *store.Checkpoint
	if b.store != nil {
		var getErr error
		cp, getErr = b.store.Get(ctx, threadID)
		if getErr != nil {
			log.Warn("agent %s: failed to load checkpoint for thread %s: %v", b.name, threadID, getErr)
			cp = nil
		}
	}

	shared := turn.CloneMap(callerSharedMemory(metadata))
	if cp != nil {
		// The checkpointed history supersedes whatever the caller passed;
		// the caller's copy may be truncated or stale.
		history = turn.History(cp.State)

		// Shared memory carries pending operations across turns, so the
		// checkpoint wins over caller-supplied values on conflict.
		for k, v := range turn.SharedMemory(cp.State) {
			shared[k] = v
		}
	}
	state[turn.KeySharedMemory] = shared

	state[turn.KeyHistory] = append(cloneHistory(history), turn.Message{
		Role:    turn.RoleUser,
		Content: query,
	})
	return state
}

func (b *Base) filterResponse(state graph.State) map[string]any {
	out := make(map[string]any, len(b.allowKeys))
	for key := range b.allowKeys {
		if v, ok := state[key]; ok {
			out[key] = v
		}
	}
	if _, ok := out[turn.KeyTaskStatus]; !ok {
		out[turn.KeyTaskStatus] = turn.StatusComplete
	}
	if _, ok := out[turn.KeyResponse]; !ok {
		out[turn.KeyResponse] = ""
	}
	return out
}

func callerSharedMemory(metadata map[string]any) map[string]any {
	m, _ := metadata[MetaSharedMemory].(map[string]any)
	return m
}

func cloneHistory(h []turn.Message) []turn.Message {
	out := make([]turn.Message, len(h))
	copy(out, h)
	return out
}

func errorResponse(message string) map[string]any {
	return map[string]any{
		turn.KeyTaskStatus: turn.StatusError,
		turn.KeyResponse:   message,
		turn.KeyError:      message,
	}
}
