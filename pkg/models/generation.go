package models

import "time"

// GenerationStatus is the final verdict of a documentation run
type GenerationStatus string

const (
	// GenerationPassed means the document validated cleanly at or above threshold
	GenerationPassed GenerationStatus = "passed"
	// GenerationWarning means warnings remain but the score stayed acceptable
	GenerationWarning GenerationStatus = "warning"
	// GenerationFailed means errors remain or the score fell below the floor
	GenerationFailed GenerationStatus = "failed"
)

// RefineStatus reports what a single refinement pass did
type RefineStatus string

const (
	RefineSuccess RefineStatus = "success" // model produced an improved document
	RefineSkipped RefineStatus = "skipped" // nothing to fix or no model available
	RefineFailed  RefineStatus = "failed"  // model output rejected, original kept
	RefineError   RefineStatus = "error"   // transport or model error, original kept
)

// GenerationRequest asks the orchestrator for one document.
type GenerationRequest struct {
	Project    *ProjectInput          `json:"project"`
	TemplateID string                 `json:"template_id"`
	Params     map[string]interface{} `json:"params,omitempty"`
	// InvoiceID targets single-expense documents
	InvoiceID string `json:"invoice_id,omitempty"`
	// RenderPDF additionally produces a PDF artifact
	RenderPDF bool `json:"render_pdf,omitempty"`
	// UseDemoData renders the template against its demo body data instead
	// of live sources
	UseDemoData bool `json:"use_demo_data,omitempty"`
}

// ArtifactPaths locates everything a run wrote to disk.
type ArtifactPaths struct {
	Markdown string `json:"markdown,omitempty"`
	HTML     string `json:"html,omitempty"`
	PDF      string `json:"pdf,omitempty"`
	Version  string `json:"version,omitempty"` // version tag of the committed markdown
}

// ModelUsage records which model produced the accepted draft.
type ModelUsage struct {
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	Fallback     bool          `json:"fallback"` // true when the deterministic fallback produced the document
	Latency      time.Duration `json:"latency,omitempty"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
}

// GenerationResult is the orchestrator's complete answer for one request.
type GenerationResult struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"project_id"`
	TemplateID  string             `json:"template_id"`
	Status      GenerationStatus   `json:"status"`
	Document    string             `json:"document"`
	Score       float64            `json:"score"`
	Valid       bool               `json:"valid"`
	Stages      []ValidationResult `json:"stages,omitempty"`
	Issues      []ValidationIssue  `json:"issues,omitempty"`
	Iterations  int                `json:"iterations"` // refinement passes executed
	Variables   int                `json:"variables"`  // tracked variables in the document
	Artifacts   ArtifactPaths      `json:"artifacts"`
	Model       ModelUsage         `json:"model"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Error       string             `json:"error,omitempty"`
}

// Duration returns the wall-clock time of the run.
func (r GenerationResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
