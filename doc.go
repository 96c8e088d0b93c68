// Turnflow - Conversational Turn-Processing for LLM Agents in Go
//
// Turnflow executes a single user turn through a directed graph of
// asynchronous nodes. Each node may call a language model or an external
// tool, contribute a partial update to the shared turn state, and hand
// control to a router that selects the next node. Turn state is
// checkpointed per conversation thread so multi-turn conversations resume
// where they left off, including operations paused for human approval.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/turnflow
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/turnflow/agent"
//		"github.com/smallnest/turnflow/llm"
//		"github.com/smallnest/turnflow/prebuilt"
//		"github.com/smallnest/turnflow/store/memory"
//	)
//
//	func main() {
//		client := llm.NewOpenAIClient("") // reads OPENAI_API_KEY
//		checkpoints := memory.NewCheckpointStore()
//
//		rss, err := prebuilt.NewRSSAgent(client, checkpoints, agent.DefaultConfig())
//		if err != nil {
//			panic(err)
//		}
//
//		resp, _ := rss.Process(context.Background(), "List my RSS feeds",
//			map[string]any{"user_id": "u1", "conversation_id": "c1"}, nil)
//		fmt.Println(resp["response"])
//	}
//
// # Package Structure
//
// graph/
// The turn executor: nodes, declared edge maps, routers, the END sentinel,
// node-boundary error capture and the per-turn step ceiling.
//
// turn/
// The turn-state data model: message history, shared memory, task status
// and pending-operation helpers.
//
// store/
// Checkpoint persistence keyed by thread id, with memory, file, SQLite,
// Redis and PostgreSQL backends.
//
// coerce/
// Best-effort recovery of JSON objects from free-form model output.
//
// llm/
// The generation-service boundary: OpenAI client, langchaingo adapter and
// a scripted stub for tests.
//
// tool/
// External collaborator contracts: document stores, web search and page
// fetching.
//
// agent/
// Agent registration and the Process entry point, including checkpoint
// merge policy and the response allow-list.
//
// prebuilt/
// Ready-to-use agents (chat, RSS management, document analysis) built on
// the engine.
//
// # License
//
// This project is licensed under the MIT License - see the LICENSE file for details.
package turnflow // import "github.com/smallnest/turnflow"
