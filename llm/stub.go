package llm

import (
	"context"
	"sync"

	"github.com/smallnest/turnflow/turn"
)

// StubClient replays a fixed script of responses. Intended for tests where
// the conversation shape matters but a real model does not.
type StubClient struct {
	mu     sync.Mutex
	script []string
	calls  int
	err    error
}

var _ Client = (*StubClient)(nil)

// NewStubClient builds a stub that returns the given responses in order.
// Once the script runs out it keeps returning the last entry.
func NewStubClient(script ...string) *StubClient {
	return &StubClient{script: script}
}

// FailWith makes every subsequent Generate call return err.
func (c *StubClient) FailWith(err error) *StubClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return c
}

// Generate returns the next scripted response.
func (c *StubClient) Generate(ctx context.Context, messages []turn.Message, opts ...Option) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}

	idx := c.calls
	c.calls++
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	content := ""
	if idx >= 0 {
		content = c.script[idx]
	}
	return &Response{Content: content, Model: "stub"}, nil
}

// Calls reports how many times Generate was invoked.
func (c *StubClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
