package models

import "time"

// ModelConfig describes one endpoint of the fallback chain. Priorities
// define a strict total order; lower runs earlier.
type ModelConfig struct {
	Provider   string        `json:"provider"` // "openai", "anthropic", "gemini", "local"
	Model      string        `json:"model"`
	APIKey     string        `json:"-"` // never serialised
	BaseURL    string        `json:"base_url,omitempty"`
	Priority   int           `json:"priority"`
	Timeout    time.Duration `json:"timeout,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty"`
}

// ModelRequest is one completion request routed through the chain.
type ModelRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Purpose      string  `json:"purpose,omitempty"` // audit tag: "draft", "refine", "model_review"
}

// ModelResponse is the chain's answer. An exhausted chain sets Error and
// leaves Content empty; callers treat that as "fall back deterministically".
type ModelResponse struct {
	Content      string        `json:"content"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	Latency      time.Duration `json:"latency,omitempty"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// OK reports whether the response carries usable content.
func (r *ModelResponse) OK() bool {
	return r != nil && r.Error == "" && r.Content != ""
}

// ModelCallRecord is the audit entry persisted for every model invocation,
// successful or not.
type ModelCallRecord struct {
	ID           string    `json:"id" badgerhold:"key"`
	Provider     string    `json:"provider" badgerhold:"index"`
	Model        string    `json:"model"`
	Purpose      string    `json:"purpose,omitempty"` // "draft", "refine", "model_review"
	PromptChars  int       `json:"prompt_chars"`
	LatencyMS    int64     `json:"latency_ms"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at" badgerhold:"index"`
}
