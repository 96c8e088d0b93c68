package turn

import "strings"

// PendingPrefix marks shared-memory keys that hold operations paused for
// human approval, e.g. "pending_save_plan".
const PendingPrefix = "pending_"

// SetPending stashes a paused operation payload in shared memory under the
// given name. The name is prefixed if the caller did not already do so.
// Returns the updated shared-memory mapping (the input is not mutated).
func SetPending(state State, name string, payload map[string]any) map[string]any {
	shared := CloneMap(SharedMemory(state))
	shared[pendingKey(name)] = payload
	return shared
}

// PendingOperation returns the first pending operation found in shared
// memory, with its unprefixed name. Payloads are thread-scoped: they only
// ever appear in the checkpoint of the thread that wrote them.
func PendingOperation(state State) (name string, payload map[string]any, ok bool) {
	for k, v := range SharedMemory(state) {
		if !strings.HasPrefix(k, PendingPrefix) {
			continue
		}
		p, isMap := v.(map[string]any)
		if !isMap || len(p) == 0 {
			continue
		}
		return strings.TrimPrefix(k, PendingPrefix), p, true
	}
	return "", nil, false
}

// ClearPending marks a pending operation as consumed and returns the
// updated mapping. The entry is emptied rather than deleted so the clear
// survives merge-style state updates, which cannot express key removal.
func ClearPending(state State, name string) map[string]any {
	shared := CloneMap(SharedMemory(state))
	shared[pendingKey(name)] = map[string]any{}
	return shared
}

func pendingKey(name string) string {
	if strings.HasPrefix(name, PendingPrefix) {
		return name
	}
	return PendingPrefix + name
}

// approvalWords covers the short confirmations users type when asked to
// approve a paused operation.
var approvalWords = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {},
	"ok": {}, "okay": {}, "sure": {},
	"proceed": {}, "confirm": {}, "confirmed": {},
	"approve": {}, "approved": {}, "do it": {}, "go ahead": {},
}

var rejectionWords = map[string]struct{}{
	"no": {}, "n": {}, "nope": {},
	"cancel": {}, "stop": {}, "abort": {},
	"don't": {}, "dont": {}, "never mind": {}, "nevermind": {},
}

// IsApproval reports whether the text reads as the user approving a
// pending operation. Trailing punctuation is ignored.
func IsApproval(text string) bool {
	return IsApprovalWith(text, nil)
}

// IsApprovalWith is IsApproval extended with additional approval
// vocabulary, e.g. from agent configuration.
func IsApprovalWith(text string, extra []string) bool {
	n := normalize(text)
	for _, word := range extra {
		if normalize(word) == n {
			return true
		}
	}
	_, ok := approvalWords[n]
	return ok
}

// IsRejection reports whether the text reads as the user declining a
// pending operation.
func IsRejection(text string) bool {
	_, ok := rejectionWords[normalize(text)]
	return ok
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(s, ".!?, ")
}
