package evidence

import (
	"context"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

const defaultLookupTimeout = 10 * time.Second

// commitGetter is the slice of the GitHub API the service needs.
type commitGetter interface {
	GetCommit(ctx context.Context, owner, repo, sha string, opts *github.ListOptions) (*github.RepositoryCommit, *github.Response, error)
}

// Service resolves owner/repo@sha references from time entries to commit
// metadata for the work-evidence annex. Commits are immutable, so resolved
// references are cached for the process lifetime.
type Service struct {
	commits commitGetter
	timeout time.Duration
	logger  arbor.ILogger

	mu    sync.Mutex
	cache map[string]models.CommitEvidence
}

var _ interfaces.EvidenceService = (*Service)(nil)

// NewService creates the evidence resolver. Without a token the service
// stays disabled and every annex is silently skipped.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	s := &Service{
		timeout: defaultLookupTimeout,
		logger:  logger,
		cache:   make(map[string]models.CommitEvidence),
	}
	if d, err := time.ParseDuration(config.Evidence.Timeout); err == nil && d > 0 {
		s.timeout = d
	}

	if config.Evidence.Enabled && config.Evidence.Token != "" {
		tc := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: config.Evidence.Token},
		))
		s.commits = github.NewClient(tc).Repositories
		logger.Debug().Msg("Commit evidence resolution enabled")
	}
	return s
}

// Enabled reports whether a token is configured.
func (s *Service) Enabled() bool {
	return s.commits != nil
}

// ResolveCommits looks up the given references. Unresolvable references are
// returned with Error set rather than dropped, so the annex stays auditable.
func (s *Service) ResolveCommits(ctx context.Context, refs []string) []models.CommitEvidence {
	out := make([]models.CommitEvidence, 0, len(refs))
	for _, ref := range refs {
		out = append(out, s.resolve(ctx, ref))
	}
	return out
}

func (s *Service) resolve(ctx context.Context, ref string) models.CommitEvidence {
	s.mu.Lock()
	if cached, ok := s.cache[ref]; ok {
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	evidence := s.lookup(ctx, ref)
	if evidence.Resolved() {
		s.mu.Lock()
		s.cache[ref] = evidence
		s.mu.Unlock()
	}
	return evidence
}

func (s *Service) lookup(ctx context.Context, ref string) models.CommitEvidence {
	evidence := models.CommitEvidence{Ref: ref}

	parsed := common.ParseCommitRef(ref)
	if parsed.Repo == "" {
		evidence.Error = "invalid reference format, expected owner/repo@sha"
		return evidence
	}
	if parsed.SHA == "" {
		evidence.Error = "reference carries no commit hash"
		return evidence
	}
	evidence.Owner = parsed.Owner
	evidence.Repo = parsed.Repo

	if s.commits == nil {
		evidence.Error = "evidence resolution is disabled"
		return evidence
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	commit, _, err := s.commits.GetCommit(lookupCtx, parsed.Owner, parsed.Repo, parsed.SHA, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("ref", ref).Msg("Commit lookup failed")
		evidence.Error = err.Error()
		return evidence
	}

	evidence.SHA = commit.GetSHA()
	evidence.URL = commit.GetHTMLURL()
	if c := commit.GetCommit(); c != nil {
		evidence.Message = c.GetMessage()
		if author := c.GetAuthor(); author != nil {
			evidence.Author = author.GetName()
			evidence.Date = author.GetDate().Time
		}
	}
	if stats := commit.GetStats(); stats != nil {
		evidence.Additions = stats.GetAdditions()
		evidence.Deletions = stats.GetDeletions()
	}
	return evidence
}
