package interfaces

import (
	"context"

	"github.com/ternarybob/scribo/internal/models"
)

// EvidenceService resolves git-commit references from time entries
// (owner/repo@sha) to commit metadata for the work-evidence annex.
// Without a token the service is a graceful no-op.
type EvidenceService interface {
	// ResolveCommits looks up the given references. Unresolvable references
	// are returned with Error set rather than dropped.
	ResolveCommits(ctx context.Context, refs []string) []models.CommitEvidence

	// Enabled reports whether a token is configured.
	Enabled() bool
}
