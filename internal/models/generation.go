package models

import (
	"time"

	"github.com/ternarybob/scribo/pkg/models"
)

// GenerateRequest is the generator-level request for one document draft.
type GenerateRequest struct {
	TemplateID string                 `json:"template_id"`
	Params     map[string]interface{} `json:"params,omitempty"`
	// Project supplies identity scalars that no fetch can produce
	Project *models.ProjectInput `json:"project,omitempty"`
	// Expense and OCR prefill single-expense documents
	Expense *models.ExpenseRecord `json:"expense,omitempty"`
	OCR     *models.OCRResult     `json:"ocr,omitempty"`
	// UseModel routes drafting through the model chain
	UseModel bool `json:"use_model"`
	// UseDemoData renders the demo body instead of live sources
	UseDemoData bool `json:"use_demo_data,omitempty"`
}

// GenerateOutput is what the generator hands back to the orchestrator.
type GenerateOutput struct {
	Markdown   string            `json:"markdown"`
	Refinement []RefinementEntry `json:"refinement,omitempty"`
	// Tracked is the number of variables annotated with footnotes
	Tracked int `json:"tracked"`
	// Model describes the endpoint that produced the draft; Fallback is set
	// when the deterministic expansion did
	Model models.ModelUsage `json:"model"`
	// SourceErrors lists sources whose fetch failed; the draft tolerates them
	SourceErrors []string `json:"source_errors,omitempty"`
}

// RefinementEntry logs one refinement iteration.
type RefinementEntry struct {
	Iteration int                 `json:"iteration"` // 1-based
	Status    models.RefineStatus `json:"status"`
	Reason    string              `json:"reason,omitempty"`
	Issues    int                 `json:"issues"` // issues presented to the model
	Provider  string              `json:"provider,omitempty"`
	Model     string              `json:"model,omitempty"`
	Duration  time.Duration       `json:"duration,omitempty"`
}

// TrackedVariable is one footnoted scalar inside a generated document.
// Ordinals are 1-based, dense, and stable for the life of one generation.
type TrackedVariable struct {
	Ordinal   int    `json:"ordinal"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Source    string `json:"source"`
	Path      string `json:"path,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
	URL       string `json:"url"`
}

// GenerationRecord is the persisted audit row for one orchestration run.
type GenerationRecord struct {
	ID         string                  `json:"id" badgerhold:"key"`
	ProjectID  string                  `json:"project_id" badgerhold:"index"`
	TemplateID string                  `json:"template_id"`
	InvoiceID  string                  `json:"invoice_id,omitempty"`
	Status     models.GenerationStatus `json:"status" badgerhold:"index"`
	Score      float64                 `json:"score"`
	Valid      bool                    `json:"valid"`
	Iterations int                     `json:"iterations"`
	Errors     int                     `json:"errors"`
	Warnings   int                     `json:"warnings"`
	Artifacts  models.ArtifactPaths    `json:"artifacts"`
	Model      models.ModelUsage       `json:"model"`
	StartedAt  time.Time               `json:"started_at" badgerhold:"index"`
	FinishedAt time.Time               `json:"finished_at"`
	Error      string                  `json:"error,omitempty"`
}

// RecordFromResult converts an orchestrator result into its persisted record.
func RecordFromResult(result *models.GenerationResult) *GenerationRecord {
	rec := &GenerationRecord{
		ID:         result.ID,
		ProjectID:  result.ProjectID,
		TemplateID: result.TemplateID,
		Status:     result.Status,
		Score:      result.Score,
		Valid:      result.Valid,
		Iterations: result.Iterations,
		Artifacts:  result.Artifacts,
		Model:      result.Model,
		StartedAt:  result.StartedAt,
		FinishedAt: result.CompletedAt,
		Error:      result.Error,
	}
	for _, issue := range result.Issues {
		switch issue.Severity {
		case models.SeverityError:
			rec.Errors++
		case models.SeverityWarning:
			rec.Warnings++
		}
	}
	return rec
}
