package interfaces

import (
	"errors"

	"github.com/ternarybob/scribo/pkg/models"
)

// ErrTemplateNotFound is returned when a template id is not registered
var ErrTemplateNotFound = errors.New("template not found")

// TemplateService holds the closed set of document templates and renders
// their substitution dialect.
type TemplateService interface {
	// Get returns the full template by id.
	Get(id string) (*models.Template, error)

	// List returns template summaries in registration order.
	List() []models.TemplateSummary

	// Demo returns the pre-filled demo Markdown for UI previews.
	Demo(id string) (string, error)

	// Render expands a template body against the substitution context.
	// Undefined references expand to empty strings unless the template
	// requests strict variables.
	Render(id string, context map[string]interface{}) (string, error)

	// RenderBody expands an arbitrary dialect body (strict toggles
	// undefined-reference errors).
	RenderBody(body string, context map[string]interface{}, strict bool) (string, error)
}
