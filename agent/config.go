package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config collects the tunable heuristics shared by the prebuilt agents.
type Config struct {
	// MaxSearchRetries bounds the search quality-retry loop.
	MaxSearchRetries int `yaml:"max_search_retries"`

	// QualityThreshold is the minimum relevance score a search result set
	// must reach before the graph stops retrying.
	QualityThreshold float64 `yaml:"quality_threshold"`

	// HistoryWindow is how many recent messages are sent to the model.
	HistoryWindow int `yaml:"history_window"`

	// StepLimit caps graph execution steps per turn. Zero uses the
	// executor default.
	StepLimit int `yaml:"step_limit"`

	// ApprovalWords extends the built-in approval vocabulary for
	// pending-operation confirmation.
	ApprovalWords []string `yaml:"approval_words"`
}

// DefaultConfig returns the config the prebuilt agents ship with.
func DefaultConfig() Config {
	return Config{
		MaxSearchRetries: 3,
		QualityThreshold: 0.65,
		HistoryWindow:    10,
	}
}

// LoadConfig reads a YAML config file, overlaying it on DefaultConfig so
// omitted keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
