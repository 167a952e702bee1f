package interfaces

import (
	"errors"

	"github.com/ternarybob/scribo/pkg/models"
)

// ErrVersionNotFound is returned when a version tag does not exist for an artifact
var ErrVersionNotFound = errors.New("version not found")

// VersionService is the per-artifact append-only revision store.
type VersionService interface {
	// Commit writes content to the artifact path and records a revision.
	// The returned tag is v<YYYYMMDD_HHMMSS>, suffixed _1, _2... when two
	// commits share a second.
	Commit(path string, content []byte, message string) (*models.VersionInfo, error)

	// ReadAt returns the content of a specific revision.
	ReadAt(path string, version string) ([]byte, error)

	// History lists revisions newest first, truncated to limit (default 20).
	History(path string, limit int) ([]models.VersionInfo, error)

	// Prune drops the oldest revisions of an artifact beyond keep.
	Prune(path string, keep int) (int, error)

	// ListArtifacts enumerates stored artifacts for one project directory.
	ListArtifacts(projectID string) ([]models.DocumentRecord, error)
}
