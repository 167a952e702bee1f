package models

import "time"

// GenerationProgress is the payload of generation.* events streamed to
// websocket clients while a run is in flight.
type GenerationProgress struct {
	RunID      string    `json:"run_id"`
	ProjectID  string    `json:"project_id"`
	TemplateID string    `json:"template_id,omitempty"`
	Step       string    `json:"step"` // "fetch", "aggregate", "generate", "validate", "refine", "render", "commit"
	Status     string    `json:"status,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Iteration  int       `json:"iteration,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// APIKeyEntry is the KV-stored shape of one API key (key "auth_key_<name>").
type APIKeyEntry struct {
	Name   string   `json:"name"`
	Key    string   `json:"key"`
	Scopes []string `json:"scopes"` // "read", "write"
}
