package interfaces

import (
	"context"

	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// GeneratorService assembles a Markdown document from a template, live data
// sources, and (optionally) the model chain, and refines drafts against
// validator findings.
type GeneratorService interface {
	// Generate produces the document for a template. useModel selects the
	// model path; the deterministic dialect expansion is the guaranteed
	// fallback whenever the project input is well-formed.
	Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateOutput, error)

	// Refine rewrites content against validator issues, at most maxIterations
	// times. Numeric literals of the prior draft must survive each accepted
	// iteration.
	Refine(ctx context.Context, content string, issues []pkgmodels.ValidationIssue, maxIterations int) (string, []models.RefinementEntry)

	// PreviewContext resolves the substitution context a template would see,
	// without rendering. Used by the preview-data endpoint.
	PreviewContext(ctx context.Context, templateID string, params map[string]interface{}) (map[string]interface{}, error)
}
