package interfaces

import (
	"context"

	"github.com/ternarybob/scribo/internal/models"
)

// ModelService is the ordered fallback chain over configured model endpoints.
// A chain call never returns a Go error for model failure; an exhausted chain
// yields a response with Error set so callers can fall back deterministically.
type ModelService interface {
	// Complete walks the chain in priority order and returns the first
	// usable completion.
	Complete(ctx context.Context, req *models.ModelRequest) *models.ModelResponse

	// Available reports whether at least one endpoint is configured.
	Available() bool

	// Endpoints returns the chain configuration in priority order.
	Endpoints() []models.ModelConfig
}
