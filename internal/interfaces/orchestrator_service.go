package interfaces

import (
	"context"

	"github.com/ternarybob/scribo/pkg/models"
)

// OrchestratorOptions tune a single documentation run.
type OrchestratorOptions struct {
	// UseModel routes drafting through the model chain when endpoints exist
	UseModel bool
	// RenderPDF additionally renders and commits a PDF artifact
	RenderPDF bool
	// MaxIterations bounds the refinement loop; negative means config default
	MaxIterations int
	// NotifyEmail receives the finished artifacts when set
	NotifyEmail string
	// StopOnError aborts the validation pipeline on the first error stage
	StopOnError bool
}

// OrchestratorService drives the generate, validate, refine, render, commit
// flow for one documentation request.
type OrchestratorService interface {
	// GenerateDocumentation runs the full flow. Invalid project input (NIP
	// checksum and friends) aborts before any fetch; every later failure is
	// folded into the result status.
	GenerateDocumentation(ctx context.Context, input *models.ProjectInput, opts OrchestratorOptions) (*models.GenerationResult, error)

	// GenerateExpenseDocument runs the flow for one invoice-backed expense.
	GenerateExpenseDocument(ctx context.Context, input *models.ProjectInput, invoiceID string, opts OrchestratorOptions) (*models.GenerationResult, error)
}
