package interfaces

import (
	"context"

	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// Validator is a single named validation stage.
type Validator interface {
	// Name returns the stage name ("structure", "legal", ...).
	Name() string

	// Validate inspects the shared context, appends issues to it, and
	// returns the per-stage result.
	Validate(ctx context.Context, vctx *models.ValidationContext) (*pkgmodels.ValidationResult, error)
}

// ValidationService runs the ordered stage pipeline over a document.
type ValidationService interface {
	// Validate runs all registered stages in order and returns the combined
	// report. Warnings never stop the pipeline; errors stop it only when
	// opts.StopOnError is set.
	Validate(ctx context.Context, vctx *models.ValidationContext, opts models.ValidationOptions) (*models.PipelineReport, error)

	// Stages returns the registered stage names in execution order.
	Stages() []string
}
