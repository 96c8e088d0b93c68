// Package llm defines the generation-service boundary for turn
// processing. Nodes talk to a Client; the concrete implementations wrap
// OpenAI-compatible services or any langchaingo model, and a scripted
// stub exists for deterministic tests.
package llm

import (
	"context"
	"time"

	"github.com/smallnest/turnflow/turn"
)

// Response is the result of a single generation call.
type Response struct {
	Content  string
	Model    string
	Metadata map[string]any
}

// Client is the contract every generation service implements. The call is
// a suspension point with arbitrary latency; implementations must honor
// the per-call timeout configured via options.
type Client interface {
	Generate(ctx context.Context, messages []turn.Message, opts ...Option) (*Response, error)
}

// Options holds per-call generation parameters.
type Options struct {
	Temperature float64
	Model       string
	JSONMode    bool
	Timeout     time.Duration
}

// Option mutates per-call generation parameters.
type Option func(*Options)

// DefaultOptions returns the baseline generation parameters.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

// ApplyOptions folds the given options over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithModel overrides the model for this call.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// WithJSONMode requests structured output matching a JSON object. Services
// that do not support it ignore the request; callers recover with the
// coerce package either way.
func WithJSONMode() Option {
	return func(o *Options) { o.JSONMode = true }
}

// WithTimeout bounds the call. A timeout surfaces as an error from
// Generate and is treated as a node-level failure by the executor.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}
