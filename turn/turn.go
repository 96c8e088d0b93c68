// Package turn defines the turn-state data model shared by every agent
// graph: the message history, the cross-turn shared memory side-channel,
// task status classification and pending-operation bookkeeping.
package turn

import (
	"maps"
)

// Well-known state keys. Every agent graph threads these through its nodes.
const (
	KeyQuery         = "query"
	KeyUserID        = "user_id"
	KeyHistory       = "conversation_history"
	KeyMetadata      = "metadata"
	KeySharedMemory  = "shared_memory"
	KeyResponse      = "response"
	KeyTaskStatus    = "task_status"
	KeyError         = "error"
	KeyRetryCount    = "search_retry_count"
	KeyQueryIntent   = "query_intent"
	KeyPendingResume = "resumed_from_pending"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Terminal task status values for a turn.
const (
	StatusComplete           = "complete"
	StatusIncomplete         = "incomplete"
	StatusPermissionRequired = "permission_required"
	StatusError              = "error"
)

// AnonymousUser is the fallback identity when the caller supplies none.
const AnonymousUser = "system"

// Message is a single entry in the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the mutable record threaded through every node in a turn.
type State = map[string]any

// New builds the initial state for a turn. An empty user id falls back to
// AnonymousUser so external tool calls always carry an identity.
func New(query, userID string) State {
	if userID == "" {
		userID = AnonymousUser
	}
	return State{
		KeyQuery:        query,
		KeyUserID:       userID,
		KeyHistory:      []Message{},
		KeyMetadata:     map[string]any{},
		KeySharedMemory: map[string]any{},
		KeyResponse:     map[string]any{},
	}
}

// Query returns the current user utterance.
func Query(state State) string {
	s, _ := state[KeyQuery].(string)
	return s
}

// UserID returns the caller identity, falling back to AnonymousUser.
func UserID(state State) string {
	if s, ok := state[KeyUserID].(string); ok && s != "" {
		return s
	}
	return AnonymousUser
}

// History returns the conversation history. It tolerates the two shapes a
// history can take: the in-process []Message, and the []any of maps that a
// checkpoint round-trip through JSON produces.
func History(state State) []Message {
	switch h := state[KeyHistory].(type) {
	case []Message:
		return h
	case []any:
		msgs := make([]Message, 0, len(h))
		for _, item := range h {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			msgs = append(msgs, Message{Role: role, Content: content})
		}
		return msgs
	default:
		return nil
	}
}

// LastMessages returns up to n most recent history entries.
func LastMessages(state State, n int) []Message {
	h := History(state)
	if n <= 0 || len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// AppendMessage returns a new history slice with the message appended.
// The input slice is never mutated.
func AppendMessage(state State, role, content string) []Message {
	h := History(state)
	out := make([]Message, len(h), len(h)+1)
	copy(out, h)
	return append(out, Message{Role: role, Content: content})
}

// Metadata returns the caller-supplied metadata mapping.
func Metadata(state State) map[string]any {
	m, _ := state[KeyMetadata].(map[string]any)
	return m
}

// SharedMemory returns the cross-turn side-channel mapping.
func SharedMemory(state State) map[string]any {
	m, _ := state[KeySharedMemory].(map[string]any)
	return m
}

// Response returns the accumulated response mapping.
func Response(state State) map[string]any {
	m, _ := state[KeyResponse].(map[string]any)
	return m
}

// TaskStatus returns the terminal classification of the turn, empty when
// the graph has not set one yet.
func TaskStatus(state State) string {
	s, _ := state[KeyTaskStatus].(string)
	return s
}

// RetryCount reads a bounded loop counter from state. JSON round-trips turn
// ints into float64, so both are accepted.
func RetryCount(state State, key string) int {
	switch v := state[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Clone makes a shallow copy of the state. Nested maps are shared; nodes
// that modify shared_memory or metadata should copy them first.
func Clone(state State) State {
	out := make(State, len(state))
	maps.Copy(out, state)
	return out
}

// CloneMap shallow-copies a nested mapping, tolerating nil.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}
