package prebuilt

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/smallnest/turnflow/agent"
	"github.com/smallnest/turnflow/coerce"
	"github.com/smallnest/turnflow/graph"
	"github.com/smallnest/turnflow/llm"
	"github.com/smallnest/turnflow/log"
	"github.com/smallnest/turnflow/store"
	"github.com/smallnest/turnflow/turn"
)

// Shared-memory key holding the subscribed feeds.
const feedsKey = "rss_feeds"

// RSS intents.
const (
	intentListFeeds  = "list_feeds"
	intentAddFeed    = "add_feed"
	intentRemoveFeed = "remove_feed"
	intentHelp       = "help"
)

const pendingRemoveFeed = "remove_feed"

var urlRe = regexp.MustCompile(`https?://[^\s"'<>]+`)

var (
	inlineTitleRe    = regexp.MustCompile(`(?i)title:\s*(.+?)(?:\s+category:|[,;\n]|$)`)
	inlineCategoryRe = regexp.MustCompile(`(?i)category:\s*(.+?)(?:\s+title:|[,;\n]|$)`)
)

const rssClassifyPrompt = `You manage RSS feed subscriptions. Classify the user's request.
Respond with JSON: {"intent": "list_feeds" | "add_feed" | "remove_feed" | "help"}.`

// NewRSSAgent builds the feed-management agent: list, add and remove
// subscriptions, with removal gated behind an approval turn. Feeds live in
// the thread's shared memory, scoped per user unless added as global.
func NewRSSAgent(client llm.Client, st store.CheckpointStore, cfg agent.Config) (*agent.Base, error) {
	workflow := graph.NewStateGraph()
	workflow.SetSchema(graph.DefaultSchema())

	workflow.AddNode("entry", "pending-aware turn entry", func(ctx context.Context, state graph.State) (graph.State, error) {
		return graph.State{}, nil
	})

	workflow.AddNode("classify", "classify feed intent", func(ctx context.Context, state graph.State) (graph.State, error) {
		return graph.State{turn.KeyQueryIntent: classifyRSSIntent(ctx, client, state)}, nil
	})

	workflow.AddNode("list_feeds", "list subscribed feeds", listFeedsNode)
	workflow.AddNode("add_feed", "subscribe to a feed", addFeedNode)
	workflow.AddNode("remove_feed", "stage a feed removal for approval", removeFeedNode)
	workflow.AddNode("resume_pending", "execute an approved pending operation", resumePendingNode)
	workflow.AddNode("cancel_pending", "drop a declined pending operation", cancelPendingNode)
	workflow.AddNode("help", "explain what the agent can do", helpNode)

	workflow.SetEntryPoint("entry")

	// Approval and rejection of a pending operation bypass classification
	// entirely; prior work is resumed, not replayed.
	workflow.AddConditionalEdges("entry", func(state graph.State) string {
		if _, _, ok := turn.PendingOperation(state); ok {
			query := turn.Query(state)
			if turn.IsApprovalWith(query, cfg.ApprovalWords) {
				return "resume"
			}
			if turn.IsRejection(query) {
				return "cancel"
			}
		}
		return "classify"
	}, map[string]string{
		"resume":   "resume_pending",
		"cancel":   "cancel_pending",
		"classify": "classify",
	})

	workflow.AddConditionalEdges("classify", func(state graph.State) string {
		intent, _ := state[turn.KeyQueryIntent].(string)
		switch intent {
		case intentListFeeds, intentAddFeed, intentRemoveFeed:
			return intent
		default:
			return intentHelp
		}
	}, map[string]string{
		intentListFeeds:  "list_feeds",
		intentAddFeed:    "add_feed",
		intentRemoveFeed: "remove_feed",
		intentHelp:       "help",
	})

	for _, terminal := range []string{"list_feeds", "add_feed", "remove_feed", "resume_pending", "cancel_pending", "help"} {
		workflow.AddEdge(terminal, graph.END)
	}

	return agent.NewBase("rss", workflow, st, cfg, "missing_metadata")
}

// classifyRSSIntent asks the model for the intent and falls back to keyword
// matching when the model is unavailable or answers off-script.
func classifyRSSIntent(ctx context.Context, client llm.Client, state graph.State) string {
	query := turn.Query(state)

	if client != nil {
		resp, err := client.Generate(ctx, []turn.Message{
			{Role: turn.RoleSystem, Content: rssClassifyPrompt},
			{Role: turn.RoleUser, Content: query},
		}, llm.WithJSONMode(), llm.WithTemperature(0))
		if err == nil {
			if parsed, perr := coerce.Coerce(resp.Content); perr == nil {
				if intent, ok := parsed["intent"].(string); ok {
					switch intent {
					case intentListFeeds, intentAddFeed, intentRemoveFeed, intentHelp:
						return intent
					}
				}
			}
		} else {
			log.Warn("rss: intent classification failed, using keywords: %v", err)
		}
	}

	return keywordRSSIntent(query)
}

func keywordRSSIntent(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "remove") || strings.Contains(q, "delete") || strings.Contains(q, "unsubscribe"):
		return intentRemoveFeed
	case strings.Contains(q, "add") || strings.Contains(q, "subscribe"):
		return intentAddFeed
	case strings.Contains(q, "list") || strings.Contains(q, "show") || strings.Contains(q, "my feeds") || strings.Contains(q, "what feeds"):
		return intentListFeeds
	default:
		return intentHelp
	}
}

func listFeedsNode(ctx context.Context, state graph.State) (graph.State, error) {
	visible := visibleFeeds(state)

	if len(visible) == 0 {
		return graph.State{
			turn.KeyResponse: map[string]any{
				"feeds": []map[string]any{},
				"text":  `You have no RSS feeds yet. Say "Add RSS feed: <url>" to subscribe to one.`,
			},
			turn.KeyTaskStatus: turn.StatusComplete,
		}, nil
	}

	var lines []string
	for _, f := range visible {
		lines = append(lines, fmt.Sprintf("- %s (%s, %s)", f["title"], f["category"], f["url"]))
	}
	return graph.State{
		turn.KeyResponse: map[string]any{
			"feeds": visible,
			"text":  fmt.Sprintf("You have %d feed(s):\n%s", len(visible), strings.Join(lines, "\n")),
		},
		turn.KeyTaskStatus: turn.StatusComplete,
	}, nil
}

func addFeedNode(ctx context.Context, state graph.State) (graph.State, error) {
	query := turn.Query(state)

	feedURL := urlRe.FindString(query)
	if feedURL == "" {
		return graph.State{
			turn.KeyResponse: map[string]any{
				"text": `I need the feed URL. Say "Add RSS feed: https://example.com/feed".`,
			},
			turn.KeyTaskStatus: turn.StatusIncomplete,
			"missing_metadata": []string{"url"},
		}, nil
	}
	feedURL = strings.TrimRight(feedURL, ".,;")

	title := feedField(state, query, "title", inlineTitleRe)
	category := feedField(state, query, "category", inlineCategoryRe)

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return graph.State{
			turn.KeyResponse: map[string]any{
				"text": fmt.Sprintf("To add %s I still need: %s.", feedURL, strings.Join(missing, ", ")),
			},
			turn.KeyTaskStatus: turn.StatusIncomplete,
			"missing_metadata": missing,
		}, nil
	}

	scope := "user"
	if strings.Contains(strings.ToLower(query), "global") {
		scope = "global"
	}

	feed := map[string]any{
		"url":      feedURL,
		"title":    title,
		"category": category,
		"scope":    scope,
		"owner":    turn.UserID(state),
	}

	shared := turn.CloneMap(turn.SharedMemory(state))
	shared[feedsKey] = append(allFeeds(state), feed)

	return graph.State{
		turn.KeySharedMemory: shared,
		turn.KeyResponse: map[string]any{
			"feed": feed,
			"text": fmt.Sprintf("Added %q (%s) to your %s feeds.", title, feedURL, scope),
		},
		turn.KeyTaskStatus: turn.StatusComplete,
	}, nil
}

func removeFeedNode(ctx context.Context, state graph.State) (graph.State, error) {
	query := turn.Query(state)
	target := urlRe.FindString(query)

	var match map[string]any
	for _, f := range visibleFeeds(state) {
		url, _ := f["url"].(string)
		title, _ := f["title"].(string)
		if (target != "" && url == strings.TrimRight(target, ".,;")) ||
			(title != "" && strings.Contains(strings.ToLower(query), strings.ToLower(title))) {
			match = f
			break
		}
	}

	if match == nil {
		return graph.State{
			turn.KeyResponse: map[string]any{
				"text": "I couldn't find a matching feed to remove.",
			},
			turn.KeyTaskStatus: turn.StatusComplete,
		}, nil
	}

	return graph.State{
		turn.KeySharedMemory: turn.SetPending(state, pendingRemoveFeed, match),
		turn.KeyResponse: map[string]any{
			"text": fmt.Sprintf("Remove %q (%s)? Reply yes to confirm.", match["title"], match["url"]),
		},
		turn.KeyTaskStatus: turn.StatusPermissionRequired,
	}, nil
}

func resumePendingNode(ctx context.Context, state graph.State) (graph.State, error) {
	name, payload, ok := turn.PendingOperation(state)
	if !ok {
		return graph.State{
			turn.KeyResponse:   map[string]any{"text": "There is nothing waiting for approval."},
			turn.KeyTaskStatus: turn.StatusComplete,
		}, nil
	}

	shared := turn.ClearPending(state, name)

	switch name {
	case pendingRemoveFeed:
		url, _ := payload["url"].(string)
		var kept []map[string]any
		for _, f := range allFeeds(state) {
			if fu, _ := f["url"].(string); fu != url {
				kept = append(kept, f)
			}
		}
		shared[feedsKey] = kept
		return graph.State{
			turn.KeySharedMemory: shared,
			turn.KeyResponse: map[string]any{
				"text": fmt.Sprintf("Removed %q.", payload["title"]),
			},
			turn.KeyTaskStatus:    turn.StatusComplete,
			turn.KeyPendingResume: true,
		}, nil
	default:
		log.Warn("rss: unknown pending operation %s, dropping it", name)
		return graph.State{
			turn.KeySharedMemory: shared,
			turn.KeyResponse:     map[string]any{"text": "That pending request is no longer supported; I've dropped it."},
			turn.KeyTaskStatus:   turn.StatusComplete,
		}, nil
	}
}

func cancelPendingNode(ctx context.Context, state graph.State) (graph.State, error) {
	name, _, _ := turn.PendingOperation(state)
	return graph.State{
		turn.KeySharedMemory: turn.ClearPending(state, name),
		turn.KeyResponse:     map[string]any{"text": "Okay, I won't do that."},
		turn.KeyTaskStatus:   turn.StatusComplete,
	}, nil
}

func helpNode(ctx context.Context, state graph.State) (graph.State, error) {
	return graph.State{
		turn.KeyResponse: map[string]any{
			"text": "I manage RSS subscriptions. Try \"List my RSS feeds\", " +
				"\"Add RSS feed: <url> title: <t> category: <c>\" or \"Remove RSS feed: <url>\".",
		},
		turn.KeyTaskStatus: turn.StatusComplete,
	}, nil
}

// feedField resolves a feed attribute from caller metadata first, then from
// an inline "key: value" fragment of the query.
func feedField(state graph.State, query, key string, inline *regexp.Regexp) string {
	if v, ok := turn.Metadata(state)[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if m := inline.FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// allFeeds reads the stored feed list, tolerating the []any shape a
// checkpoint round-trip produces.
func allFeeds(state graph.State) []map[string]any {
	raw := turn.SharedMemory(state)[feedsKey]
	switch feeds := raw.(type) {
	case []map[string]any:
		return feeds
	case []any:
		out := make([]map[string]any, 0, len(feeds))
		for _, item := range feeds {
			if f, ok := item.(map[string]any); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

// visibleFeeds filters the stored feeds to those the current user can see:
// their own plus global ones.
func visibleFeeds(state graph.State) []map[string]any {
	userID := turn.UserID(state)
	var out []map[string]any
	for _, f := range allFeeds(state) {
		scope, _ := f["scope"].(string)
		owner, _ := f["owner"].(string)
		if scope == "global" || owner == userID {
			out = append(out, f)
		}
	}
	return out
}
