package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/turnflow/turn"
)

// LangchainClient adapts any langchaingo model to the Client interface,
// opening up every provider langchaingo supports.
type LangchainClient struct {
	model llms.Model
}

var _ Client = (*LangchainClient)(nil)

// NewLangchainClient wraps a langchaingo model.
func NewLangchainClient(model llms.Model) *LangchainClient {
	return &LangchainClient{model: model}
}

// Generate sends the conversation through the wrapped model.
func (c *LangchainClient) Generate(ctx context.Context, messages []turn.Message, opts ...Option) (*Response, error) {
	o := ApplyOptions(opts...)

	callOpts := []llms.CallOption{
		llms.WithTemperature(o.Temperature),
	}
	if o.Model != "" {
		callOpts = append(callOpts, llms.WithModel(o.Model))
	}
	if o.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	resp, err := c.model.GenerateContent(ctx, toLangchainMessages(messages), callOpts...)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("generate content returned no choices")
	}

	return &Response{
		Content: resp.Choices[0].Content,
		Model:   o.Model,
	}, nil
}

func toLangchainMessages(messages []turn.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case turn.RoleAssistant:
			role = llms.ChatMessageTypeAI
		case turn.RoleSystem:
			role = llms.ChatMessageTypeSystem
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
