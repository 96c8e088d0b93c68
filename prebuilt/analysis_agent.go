package prebuilt

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/turnflow/agent"
	"github.com/smallnest/turnflow/coerce"
	"github.com/smallnest/turnflow/graph"
	"github.com/smallnest/turnflow/llm"
	"github.com/smallnest/turnflow/store"
	"github.com/smallnest/turnflow/tool"
	"github.com/smallnest/turnflow/turn"
)

const summarizePrompt = `Summarize the document below in a few sentences.
Respond with JSON: {"summary": "<summary>"}.`

const combinePrompt = `Combine the individual document summaries below into one
coherent analysis answering the user's question.
Respond with JSON: {"response": "<analysis>", "task_status": "complete"}.`

// NewAnalysisAgent builds the document-analysis agent: fetch the requested
// documents, summarize them in parallel, then combine the summaries into a
// single analysis. Document ids come from metadata under "document_ids".
func NewAnalysisAgent(client llm.Client, docs tool.DocumentStore, st store.CheckpointStore, cfg agent.Config) (*agent.Base, error) {
	workflow := graph.NewStateGraph()
	workflow.SetSchema(graph.DefaultSchema())

	workflow.AddNode("collect", "load the requested documents", func(ctx context.Context, state graph.State) (graph.State, error) {
		ids := documentIDs(state)
		if len(ids) == 0 {
			return graph.State{
				turn.KeyResponse: map[string]any{
					"text": "Tell me which documents to analyze by passing their ids.",
				},
				turn.KeyTaskStatus: turn.StatusIncomplete,
				"documents":        []string{},
			}, nil
		}

		userID := turn.UserID(state)
		contents, err := graph.FanOut(ctx, ids, func(ctx context.Context, id string) (string, error) {
			return docs.GetDocumentContent(ctx, id, userID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load documents: %w", err)
		}
		return graph.State{"documents": contents}, nil
	})

	workflow.AddNode("summarize", "summarize each document in parallel", func(ctx context.Context, state graph.State) (graph.State, error) {
		contents, _ := state["documents"].([]string)

		summaries, err := graph.FanOut(ctx, contents, func(ctx context.Context, content string) (string, error) {
			return summarizeDocument(ctx, client, content)
		})
		if err != nil {
			return nil, fmt.Errorf("summarization failed: %w", err)
		}
		return graph.State{"summaries": summaries}, nil
	})

	workflow.AddNode("combine", "merge summaries into one analysis", func(ctx context.Context, state graph.State) (graph.State, error) {
		summaries, _ := state["summaries"].([]string)

		resp, err := client.Generate(ctx, []turn.Message{
			{Role: turn.RoleSystem, Content: combinePrompt},
			{Role: turn.RoleUser, Content: turn.Query(state) + "\n\nSummaries:\n" + strings.Join(summaries, "\n---\n")},
		}, llm.WithJSONMode())
		if err != nil {
			return nil, fmt.Errorf("combine failed: %w", err)
		}

		parsed, err := coerce.Coerce(resp.Content)
		if err != nil {
			return nil, fmt.Errorf("combine coercion failed: %w", err)
		}
		return graph.State{
			turn.KeyResponse:   parsed,
			turn.KeyTaskStatus: turn.StatusComplete,
		}, nil
	})

	workflow.SetEntryPoint("collect")

	workflow.AddConditionalEdges("collect", func(state graph.State) string {
		if docsList, _ := state["documents"].([]string); len(docsList) == 0 {
			return "empty"
		}
		return "summarize"
	}, map[string]string{
		"empty":     graph.END,
		"summarize": "summarize",
	})
	workflow.AddEdge("summarize", "combine")
	workflow.AddEdge("combine", graph.END)

	return agent.NewBase("analysis", workflow, st, cfg)
}

func summarizeDocument(ctx context.Context, client llm.Client, content string) (string, error) {
	resp, err := client.Generate(ctx, []turn.Message{
		{Role: turn.RoleSystem, Content: summarizePrompt},
		{Role: turn.RoleUser, Content: tool.MarkdownToText(content)},
	}, llm.WithJSONMode())
	if err != nil {
		return "", err
	}
	parsed, err := coerce.Coerce(resp.Content)
	if err != nil {
		return "", err
	}
	if summary, ok := parsed["summary"].(string); ok {
		return summary, nil
	}
	return resp.Content, nil
}

func documentIDs(state graph.State) []string {
	raw := turn.Metadata(state)["document_ids"]
	switch ids := raw.(type) {
	case []string:
		return ids
	case []any:
		out := make([]string, 0, len(ids))
		for _, item := range ids {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
