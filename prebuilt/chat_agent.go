package prebuilt

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/turnflow/agent"
	"github.com/smallnest/turnflow/coerce"
	"github.com/smallnest/turnflow/graph"
	"github.com/smallnest/turnflow/llm"
	"github.com/smallnest/turnflow/log"
	"github.com/smallnest/turnflow/store"
	"github.com/smallnest/turnflow/tool"
	"github.com/smallnest/turnflow/turn"
)

const chatClassifyPrompt = `Decide whether the user's question needs a document search before answering.
Respond with JSON: {"needs_search": true|false}.`

const chatRespondPrompt = `You are a helpful assistant. Answer the user's question.
Respond with JSON: {"response": "<answer>", "task_status": "complete"}.`

// NewChatAgent builds the question-answering agent: classify whether the
// query needs document search, search with a bounded quality-retry loop,
// then respond from the retrieved context.
func NewChatAgent(client llm.Client, docs tool.DocumentStore, st store.CheckpointStore, cfg agent.Config) (*agent.Base, error) {
	workflow := graph.NewStateGraph()
	workflow.SetSchema(graph.DefaultSchema())

	workflow.AddNode("classify", "decide if a search is needed", func(ctx context.Context, state graph.State) (graph.State, error) {
		needsSearch := classifyNeedsSearch(ctx, client, turn.Query(state))
		return graph.State{"needs_search": needsSearch}, nil
	})

	workflow.AddNode("search", "search documents for context", func(ctx context.Context, state graph.State) (graph.State, error) {
		query := turn.Query(state)
		attempt := turn.RetryCount(state, turn.KeyRetryCount) + 1

		results, err := docs.SearchDocuments(ctx, query, turn.UserID(state), 5)
		if err != nil {
			return nil, fmt.Errorf("document search failed: %w", err)
		}

		quality := 0.0
		if len(results) > 0 {
			quality = results[0].Score
		}
		log.Debug("chat: search attempt %d found %d result(s), quality %.2f", attempt, len(results), quality)

		return graph.State{
			"search_results":   results,
			"search_quality":   quality,
			turn.KeyRetryCount: attempt,
		}, nil
	})

	workflow.AddNode("respond", "answer from history and context", func(ctx context.Context, state graph.State) (graph.State, error) {
		return respondNode(ctx, client, state, cfg)
	})

	workflow.SetEntryPoint("classify")

	workflow.AddConditionalEdges("classify", func(state graph.State) string {
		if needs, _ := state["needs_search"].(bool); needs {
			return "search"
		}
		return "respond"
	}, map[string]string{
		"search":  "search",
		"respond": "respond",
	})

	// Low-quality results loop back to search, bounded by the retry
	// counter. At the cap the graph answers from whatever it has.
	workflow.AddConditionalEdges("search", func(state graph.State) string {
		quality, _ := state["search_quality"].(float64)
		if quality >= cfg.QualityThreshold {
			return "respond"
		}
		if turn.RetryCount(state, turn.KeyRetryCount) >= cfg.MaxSearchRetries {
			return "fallback"
		}
		return "retry"
	}, map[string]string{
		"respond":  "respond",
		"retry":    "search",
		"fallback": "respond",
	})

	workflow.AddEdge("respond", graph.END)

	return agent.NewBase("chat", workflow, st, cfg)
}

func classifyNeedsSearch(ctx context.Context, client llm.Client, query string) bool {
	if client == nil {
		return false
	}
	resp, err := client.Generate(ctx, []turn.Message{
		{Role: turn.RoleSystem, Content: chatClassifyPrompt},
		{Role: turn.RoleUser, Content: query},
	}, llm.WithJSONMode(), llm.WithTemperature(0))
	if err != nil {
		log.Warn("chat: search classification failed, answering directly: %v", err)
		return false
	}
	parsed, err := coerce.Coerce(resp.Content)
	if err != nil {
		return false
	}
	needs, _ := parsed["needs_search"].(bool)
	return needs
}

func respondNode(ctx context.Context, client llm.Client, state graph.State, cfg agent.Config) (graph.State, error) {
	messages := []turn.Message{{Role: turn.RoleSystem, Content: chatRespondPrompt}}

	if contextText := searchContext(state); contextText != "" {
		messages = append(messages, turn.Message{
			Role:    turn.RoleSystem,
			Content: "Context from document search:\n" + contextText,
		})
	}
	messages = append(messages, turn.LastMessages(state, cfg.HistoryWindow)...)

	resp, err := client.Generate(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("response generation failed: %w", err)
	}

	parsed, err := coerce.Coerce(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("response coercion failed: %w", err)
	}

	update := graph.State{
		turn.KeyResponse: parsed,
		turn.KeyHistory:  turn.AppendMessage(state, turn.RoleAssistant, resp.Content),
	}
	if status, ok := parsed[turn.KeyTaskStatus].(string); ok {
		update[turn.KeyTaskStatus] = status
	} else {
		update[turn.KeyTaskStatus] = turn.StatusComplete
	}
	return update, nil
}

func searchContext(state graph.State) string {
	results, ok := state["search_results"].([]tool.SearchResult)
	if !ok || len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, r.Title, r.Snippet)
	}
	return sb.String()
}
