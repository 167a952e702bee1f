package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/scribo/internal/models"
)

// ErrSourceNotFound is returned when a data source name is not registered
var ErrSourceNotFound = errors.New("data source not found")

// DataSourceService is the uniform pull abstraction over SQL queries, REST
// endpoints, and curl subprocesses. Registration is eager at startup and the
// table is read-only afterwards.
type DataSourceService interface {
	// Fetch executes the named source. Transport and parse failures are
	// contained in the result's Error field; the returned result is never nil.
	Fetch(ctx context.Context, name string, params map[string]interface{}) *models.DataSourceResult

	// FetchMultiple fans out across distinct sources concurrently. The result
	// set preserves input order; one failed source never cancels the rest.
	FetchMultiple(ctx context.Context, configs []models.SourceFetchConfig) *models.SourceResults

	// List returns descriptors in registration order.
	List() []models.DataSourceDescriptor

	// Get returns the descriptor for a registered source.
	Get(name string) (*models.DataSourceDescriptor, error)
}
