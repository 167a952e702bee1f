package interfaces

import (
	"context"

	"github.com/ternarybob/scribo/internal/models"
)

// RenderService converts generated Markdown to HTML and paginated PDF.
type RenderService interface {
	// RenderHTML converts Markdown (YAML frontmatter allowed) to an HTML
	// fragment and the parsed document metadata.
	RenderHTML(markdown string) (string, *models.DocMeta, error)

	// RenderDocument wraps RenderHTML output in a full styled HTML page.
	RenderDocument(markdown string, styleName string) (string, *models.DocMeta, error)

	// RenderPDF produces the paginated PDF. Unknown style names fall back to
	// the default stylesheet.
	RenderPDF(ctx context.Context, markdown string, styleName string) ([]byte, error)

	// WriteFile writes bytes atomically (temp file + rename).
	WriteFile(path string, data []byte) error
}
