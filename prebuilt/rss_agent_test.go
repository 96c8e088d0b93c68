package prebuilt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/turnflow/agent"
	"github.com/smallnest/turnflow/llm"
	"github.com/smallnest/turnflow/store/memory"
	"github.com/smallnest/turnflow/turn"
)

func rssMeta(user string) map[string]any {
	return map[string]any{
		agent.MetaConversationID: "conv-rss",
		agent.MetaUserID:         user,
	}
}

func TestRSSListFeedsEmpty(t *testing.T) {
	t.Parallel()

	st := memory.NewCheckpointStore()
	stub := llm.NewStubClient(`{"intent": "list_feeds"}`)
	a, err := NewRSSAgent(stub, st, agent.DefaultConfig())
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "List my RSS feeds", rssMeta("alice"), nil)
	require.NoError(t, err)

	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])
	resp := r[turn.KeyResponse].(map[string]any)
	assert.Empty(t, resp["feeds"])
	assert.Contains(t, resp["text"], "no RSS feeds")

	cp, err := st.Get(context.Background(), "conv-rss:alice")
	require.NoError(t, err)
	require.NotNil(t, cp)
	_, _, pending := turn.PendingOperation(cp.State)
	assert.False(t, pending, "listing must not leave a pending operation")
}

func TestRSSAddFeedMissingMetadata(t *testing.T) {
	t.Parallel()

	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), agent.DefaultConfig())
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "Add RSS feed: https://example.com/feed", rssMeta("alice"), nil)
	require.NoError(t, err)

	assert.Equal(t, turn.StatusIncomplete, r[turn.KeyTaskStatus])
	missing, ok := r["missing_metadata"].([]string)
	require.True(t, ok)
	assert.Contains(t, missing, "title")
	assert.Contains(t, missing, "category")
}

func TestRSSAddFeedInline(t *testing.T) {
	t.Parallel()

	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), agent.DefaultConfig())
	require.NoError(t, err)

	query := "Add RSS feed: https://example.com/feed title: Example Feed category: News"
	r, err := a.Process(context.Background(), query, rssMeta("alice"), nil)
	require.NoError(t, err)

	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])
	resp := r[turn.KeyResponse].(map[string]any)
	feed := resp["feed"].(map[string]any)
	assert.Equal(t, "https://example.com/feed", feed["url"])
	assert.Equal(t, "Example Feed", feed["title"])
	assert.Equal(t, "News", feed["category"])
	assert.Equal(t, "user", feed["scope"])
}

func TestRSSAddFeedFromMetadata(t *testing.T) {
	t.Parallel()

	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), agent.DefaultConfig())
	require.NoError(t, err)

	meta := rssMeta("alice")
	meta["title"] = "Example"
	meta["category"] = "Tech"

	r, err := a.Process(context.Background(), "Add RSS feed: https://example.com/feed", meta, nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])
}

func TestRSSAddFeedGlobalScope(t *testing.T) {
	t.Parallel()

	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), agent.DefaultConfig())
	require.NoError(t, err)

	query := "Add global RSS feed: https://example.com/feed title: Example category: News"
	r, err := a.Process(context.Background(), query, rssMeta("alice"), nil)
	require.NoError(t, err)

	resp := r[turn.KeyResponse].(map[string]any)
	feed := resp["feed"].(map[string]any)
	assert.Equal(t, "global", feed["scope"])
}

func TestRSSAddFeedWithoutURL(t *testing.T) {
	t.Parallel()

	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), agent.DefaultConfig())
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "Add an RSS feed please", rssMeta("alice"), nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusIncomplete, r[turn.KeyTaskStatus])
}

func TestRSSRemoveApprovalFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.NewCheckpointStore()
	stub := llm.NewStubClient(
		`{"intent": "add_feed"}`,
		`{"intent": "remove_feed"}`,
		`{"intent": "list_feeds"}`,
	)
	a, err := NewRSSAgent(stub, st, agent.DefaultConfig())
	require.NoError(t, err)

	meta := rssMeta("alice")

	r, err := a.Process(ctx, "Add RSS feed: https://example.com/feed title: Example category: News", meta, nil)
	require.NoError(t, err)
	require.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])

	r, err = a.Process(ctx, "Remove RSS feed: https://example.com/feed", meta, nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusPermissionRequired, r[turn.KeyTaskStatus])
	resp := r[turn.KeyResponse].(map[string]any)
	assert.Contains(t, resp["text"], "yes to confirm")

	cp, err := st.Get(ctx, "conv-rss:alice")
	require.NoError(t, err)
	name, payload, pending := turn.PendingOperation(cp.State)
	require.True(t, pending, "removal must be staged in the checkpoint")
	assert.Equal(t, "remove_feed", name)
	assert.Equal(t, "https://example.com/feed", payload["url"])

	callsBeforeApproval := stub.Calls()
	r, err = a.Process(ctx, "yes", meta, nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])
	resp = r[turn.KeyResponse].(map[string]any)
	assert.Contains(t, resp["text"], "Removed")
	assert.Equal(t, callsBeforeApproval, stub.Calls(),
		"an approval turn must resume the pending operation without re-classifying")

	cp, err = st.Get(ctx, "conv-rss:alice")
	require.NoError(t, err)
	_, _, pending = turn.PendingOperation(cp.State)
	assert.False(t, pending, "the consumed operation must be cleared")

	r, err = a.Process(ctx, "List my RSS feeds", meta, nil)
	require.NoError(t, err)
	resp = r[turn.KeyResponse].(map[string]any)
	assert.Empty(t, resp["feeds"])
}

func TestRSSConfiguredApprovalWordResumes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := agent.DefaultConfig()
	cfg.ApprovalWords = []string{"make it so"}
	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), cfg)
	require.NoError(t, err)

	meta := rssMeta("dana")

	_, err = a.Process(ctx, "Add RSS feed: https://example.com/feed title: Example category: News", meta, nil)
	require.NoError(t, err)

	r, err := a.Process(ctx, "Remove RSS feed: https://example.com/feed", meta, nil)
	require.NoError(t, err)
	require.Equal(t, turn.StatusPermissionRequired, r[turn.KeyTaskStatus])

	r, err = a.Process(ctx, "make it so", meta, nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])
	resp := r[turn.KeyResponse].(map[string]any)
	assert.Contains(t, resp["text"], "Removed")
}

func TestRSSRemoveRejectionKeepsFeed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), agent.DefaultConfig())
	require.NoError(t, err)

	meta := rssMeta("bob")

	_, err = a.Process(ctx, "Add RSS feed: https://example.com/feed title: Example category: News", meta, nil)
	require.NoError(t, err)

	r, err := a.Process(ctx, "Remove RSS feed: https://example.com/feed", meta, nil)
	require.NoError(t, err)
	require.Equal(t, turn.StatusPermissionRequired, r[turn.KeyTaskStatus])

	r, err = a.Process(ctx, "no", meta, nil)
	require.NoError(t, err)
	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])

	r, err = a.Process(ctx, "List my RSS feeds", meta, nil)
	require.NoError(t, err)
	resp := r[turn.KeyResponse].(map[string]any)
	assert.Len(t, resp["feeds"], 1, "a declined removal keeps the feed")
}

func TestRSSFeedsScopedPerUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.NewCheckpointStore()
	a, err := NewRSSAgent(nil, st, agent.DefaultConfig())
	require.NoError(t, err)

	_, err = a.Process(ctx, "Add RSS feed: https://a.example/feed title: A category: News", rssMeta("alice"), nil)
	require.NoError(t, err)

	// Same conversation id, different user: separate thread, no feeds.
	r, err := a.Process(ctx, "List my RSS feeds", rssMeta("carol"), nil)
	require.NoError(t, err)
	resp := r[turn.KeyResponse].(map[string]any)
	assert.Empty(t, resp["feeds"])
}

func TestRSSUnknownQueryGetsHelp(t *testing.T) {
	t.Parallel()

	a, err := NewRSSAgent(nil, memory.NewCheckpointStore(), agent.DefaultConfig())
	require.NoError(t, err)

	r, err := a.Process(context.Background(), "What's the weather like?", rssMeta("alice"), nil)
	require.NoError(t, err)

	assert.Equal(t, turn.StatusComplete, r[turn.KeyTaskStatus])
	resp := r[turn.KeyResponse].(map[string]any)
	assert.Contains(t, resp["text"], "RSS")
}
