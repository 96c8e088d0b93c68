package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/turnflow/graph"
	"github.com/smallnest/turnflow/store"
	"github.com/smallnest/turnflow/store/memory"
	"github.com/smallnest/turnflow/turn"
)

// echoGraph replies with the query and how many messages it saw, which is
// enough to observe history continuity across turns.
func echoGraph() *graph.StateGraph {
	g := graph.NewStateGraph()
	g.AddNode("respond", "echo the query", func(ctx context.Context, state graph.State) (graph.State, error) {
		return graph.State{
			turn.KeyResponse: map[string]any{
				"echo":          turn.Query(state),
				"history_len":   len(turn.History(state)),
				"internal_temp": "scratch",
			},
			turn.KeyTaskStatus: turn.StatusComplete,
			"scratch_field":    "should never leak",
		}, nil
	})
	g.SetEntryPoint("respond")
	g.AddEdge("respond", graph.END)
	return g
}

func TestProcessMultiTurnContinuity(t *testing.T) {
	t.Parallel()

	st := memory.NewCheckpointStore()
	a, err := NewBase("echo", echoGraph(), st, DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()
	meta := map[string]any{MetaConversationID: "conv-1", MetaUserID: "alice"}

	r1, err := a.Process(ctx, "first", meta, nil)
	require.NoError(t, err)
	resp1 := r1[turn.KeyResponse].(map[string]any)
	assert.Equal(t, 1, resp1["history_len"], "first turn sees only its own message")

	r2, err := a.Process(ctx, "second", meta, nil)
	require.NoError(t, err)
	resp2 := r2[turn.KeyResponse].(map[string]any)

	// Second turn resumes from the checkpoint: prior user message plus the
	// new one. The checkpoint round-trips through JSON, so the count comes
	// back as float64 in some backends; the memory store normalizes the
	// stored copy, not the live response.
	assert.Equal(t, 2, resp2["history_len"])
	assert.Equal(t, "second", resp2["echo"])
}

func TestProcessSeparateThreadsAreIndependent(t *testing.T) {
	t.Parallel()

	st := memory.NewCheckpointStore()
	a, err := NewBase("echo", echoGraph(), st, DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()

	_, err = a.Process(ctx, "hello", map[string]any{MetaConversationID: "conv-1", MetaUserID: "alice"}, nil)
	require.NoError(t, err)

	r, err := a.Process(ctx, "hello", map[string]any{MetaConversationID: "conv-1", MetaUserID: "bob"}, nil)
	require.NoError(t, err)
	resp := r[turn.KeyResponse].(map[string]any)
	assert.Equal(t, 1, resp["history_len"], "different user id means a different thread")
}

func TestProcessAllowListFilter(t *testing.T) {
	t.Parallel()

	a, err := NewBase("echo", echoGraph(), nil, DefaultConfig())
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "q", map[string]any{}, nil)
	require.NoError(t, err)

	assert.Contains(t, r, turn.KeyResponse)
	assert.Contains(t, r, turn.KeyTaskStatus)
	assert.NotContains(t, r, "scratch_field")
	assert.NotContains(t, r, turn.KeyHistory)
	assert.NotContains(t, r, turn.KeySharedMemory)
}

func TestProcessExtraAllowKeys(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph()
	g.AddNode("respond", "", func(ctx context.Context, state graph.State) (graph.State, error) {
		return graph.State{
			turn.KeyResponse:   map[string]any{"text": "ok"},
			turn.KeyTaskStatus: turn.StatusIncomplete,
			"missing_metadata": []string{"title", "category"},
		}, nil
	})
	g.SetEntryPoint("respond")
	g.AddEdge("respond", graph.END)

	a, err := NewBase("feeds", g, nil, DefaultConfig(), "missing_metadata")
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "q", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "category"}, r["missing_metadata"])
}

type failingStore struct {
	getErr error
	putErr error
}

var _ store.CheckpointStore = (*failingStore)(nil)

func (s *failingStore) Get(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	return nil, s.getErr
}
func (s *failingStore) Put(ctx context.Context, threadID string, state map[string]any) error {
	return s.putErr
}
func (s *failingStore) Delete(ctx context.Context, threadID string) error { return nil }
func (s *failingStore) List(ctx context.Context) ([]string, error)        { return nil, nil }

func TestProcessDegradesWhenStoreFails(t *testing.T) {
	t.Parallel()

	st := &failingStore{
		getErr: errors.New("connection refused"),
		putErr: errors.New("connection refused"),
	}
	a, err := NewBase("echo", echoGraph(), st, DefaultConfig())
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "q", map[string]any{MetaConversationID: "c", MetaUserID: "u"}, nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus], "store failure degrades to a stateless turn")
}

func TestProcessNeverRaises(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph()
	g.AddNode("boom", "", func(ctx context.Context, state graph.State) (graph.State, error) {
		return nil, errors.New("model unavailable")
	})
	g.SetEntryPoint("boom")
	g.AddEdge("boom", graph.END)

	a, err := NewBase("fragile", g, nil, DefaultConfig())
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "q", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusError, r[turn.KeyTaskStatus])
	assert.Contains(t, r[turn.KeyError], "model unavailable")

	response, ok := r[turn.KeyResponse].(string)
	require.True(t, ok, "an error turn answers with a readable message, not internal scratch")
	assert.Contains(t, response, "model unavailable")
}

func TestProcessSharedMemoryCheckpointPrecedence(t *testing.T) {
	t.Parallel()

	st := memory.NewCheckpointStore()
	require.NoError(t, st.Put(context.Background(), "conv-1:alice", map[string]any{
		turn.KeySharedMemory: map[string]any{"pending_remove_feed": map[string]any{"url": "https://a"}},
		turn.KeyHistory:      []any{},
	}))

	var seen map[string]any
	g := graph.NewStateGraph()
	g.AddNode("inspect", "", func(ctx context.Context, state graph.State) (graph.State, error) {
		seen = turn.SharedMemory(state)
		return graph.State{turn.KeyTaskStatus: turn.StatusComplete}, nil
	})
	g.SetEntryPoint("inspect")
	g.AddEdge("inspect", graph.END)

	a, err := NewBase("inspect", g, st, DefaultConfig())
	require.NoError(t, err)

	meta := map[string]any{
		MetaConversationID: "conv-1",
		MetaUserID:         "alice",
		MetaSharedMemory:   map[string]any{"pending_remove_feed": "caller junk", "caller_hint": "kept"},
	}
	_, err = a.Process(context.Background(), "yes", meta, nil)
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "kept", seen["caller_hint"])
	pending, ok := seen["pending_remove_feed"].(map[string]any)
	require.True(t, ok, "checkpoint value wins over caller-supplied shared memory")
	assert.Equal(t, "https://a", pending["url"])
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()

	a, err := NewBase("echo", echoGraph(), nil, DefaultConfig())
	require.NoError(t, err)
	b, err := NewBase("other", echoGraph(), nil, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))
	assert.Error(t, reg.Register(a), "duplicate registration fails")

	got, err := reg.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name())

	_, err = reg.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"echo", "other"}, reg.Names())
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_search_retries: 5\nquality_threshold: 0.8\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxSearchRetries)
	assert.InDelta(t, 0.8, cfg.QualityThreshold, 1e-9)
	assert.Equal(t, 10, cfg.HistoryWindow, "omitted keys keep defaults")
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg, "defaults still returned on error")
}
