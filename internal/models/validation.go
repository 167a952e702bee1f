package models

import (
	"time"

	"github.com/ternarybob/scribo/pkg/models"
)

// DocumentType classifies the document under validation; stage rules vary
// by type (required sections, formal legal references).
type DocumentType string

const (
	DocTypeProjectCard    DocumentType = "project_card"
	DocTypeTimesheet      DocumentType = "timesheet_monthly"
	DocTypeExpense        DocumentType = "expense_registry"
	DocTypeExpenseSingle  DocumentType = "expense_single"
	DocTypeNexus          DocumentType = "nexus_calculation"
	DocTypeAnnualSummary  DocumentType = "br_annual_summary"
	DocTypeIPBoxProcedure DocumentType = "ip_box_procedure"
	DocTypeInterpretation DocumentType = "tax_interpretation_request"
	DocTypeContract       DocumentType = "br_contract"
	DocTypeGeneric        DocumentType = "generic"
)

// FormalDocument reports whether the type must cite art. 18d CIT or IP Box.
func (t DocumentType) FormalDocument() bool {
	switch t {
	case DocTypeIPBoxProcedure, DocTypeInterpretation, DocTypeContract, DocTypeAnnualSummary:
		return true
	}
	return false
}

// ValidationContext is carried through the pipeline stages of one request.
// It is owned by a single goroutine; no locking.
type ValidationContext struct {
	Content      string                 `json:"-"`
	DocumentType DocumentType           `json:"document_type"`
	ProjectID    string                 `json:"project_id,omitempty"`
	FiscalYear   int                    `json:"fiscal_year,omitempty"`
	CompanyNIP   string                 `json:"company_nip,omitempty"`
	Nexus        *models.NexusComponents `json:"nexus,omitempty"` // known components for cross-checks

	// CurrentStage names the stage being executed.
	CurrentStage string `json:"current_stage,omitempty"`

	// StageResults accumulates per-stage outcomes in execution order.
	StageResults []models.ValidationResult `json:"stage_results,omitempty"`

	// Issues is monotonic; stages only append.
	Issues []models.ValidationIssue `json:"issues,omitempty"`
}

// NewValidationContext builds a context for one document.
func NewValidationContext(content string, docType DocumentType) *ValidationContext {
	return &ValidationContext{
		Content:      content,
		DocumentType: docType,
	}
}

// AddIssues appends stage findings to the aggregated list.
func (c *ValidationContext) AddIssues(issues ...models.ValidationIssue) {
	c.Issues = append(c.Issues, issues...)
}

// ErrorCount returns the number of error-severity issues collected so far.
func (c *ValidationContext) ErrorCount() int {
	count := 0
	for _, issue := range c.Issues {
		if issue.Severity == models.SeverityError {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-severity issues collected so far.
func (c *ValidationContext) WarningCount() int {
	count := 0
	for _, issue := range c.Issues {
		if issue.Severity == models.SeverityWarning {
			count++
		}
	}
	return count
}

// ValidationOptions tune one pipeline run.
type ValidationOptions struct {
	// StopOnError halts after the first stage reporting an error issue
	StopOnError bool `json:"stop_on_error,omitempty"`
	// SkipModelReview forces the optional model stage off for this run
	SkipModelReview bool `json:"skip_model_review,omitempty"`
}

// PipelineReport is the combined outcome of a pipeline run.
type PipelineReport struct {
	Valid       bool                      `json:"valid"` // conjunction of stage valids
	Score       float64                   `json:"score"` // mean over executed stages
	Stages      []models.ValidationResult `json:"stages"`
	Issues      []models.ValidationIssue  `json:"issues"`
	ValidatedAt time.Time                 `json:"validated_at"`
}

// ErrorCount returns the number of error-severity issues in the report.
func (r *PipelineReport) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == models.SeverityError {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-severity issues in the report.
func (r *PipelineReport) WarningCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == models.SeverityWarning {
			count++
		}
	}
	return count
}
