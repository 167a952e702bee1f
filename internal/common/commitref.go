// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// CommitRef represents a parsed repository-qualified commit reference.
// Format: OWNER/REPO@SHA (e.g., "acme/billing-engine@4f2a9c1")
type CommitRef struct {
	// Owner is the repository owner or organisation (e.g., "acme")
	Owner string
	// Repo is the repository name (e.g., "billing-engine")
	Repo string
	// SHA is the commit hash, full or abbreviated
	SHA string
	// Raw is the original reference string
	Raw string
}

// ParseCommitRef parses a repository-qualified commit reference.
// Supports formats:
//   - "acme/billing@4f2a9c1" -> Owner="acme", Repo="billing", SHA="4f2a9c1"
//   - "acme/billing"         -> Owner="acme", Repo="billing", SHA="" (default branch head)
//
// Owner and repo are normalized to lowercase; the SHA keeps its case.
func ParseCommitRef(ref string) CommitRef {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return CommitRef{}
	}

	rest := ref
	sha := ""
	if idx := strings.LastIndex(ref, "@"); idx > 0 {
		rest = ref[:idx]
		sha = ref[idx+1:]
	}

	slash := strings.Index(rest, "/")
	if slash <= 0 || slash == len(rest)-1 {
		// Missing owner or repo - invalid reference
		return CommitRef{}
	}

	return CommitRef{
		Owner: strings.ToLower(rest[:slash]),
		Repo:  strings.ToLower(rest[slash+1:]),
		SHA:   sha,
		Raw:   ref,
	}
}

// String returns the full repository-qualified reference string.
func (r CommitRef) String() string {
	if r.Owner == "" || r.Repo == "" {
		return ""
	}
	if r.SHA == "" {
		return r.Owner + "/" + r.Repo
	}
	return r.Owner + "/" + r.Repo + "@" + r.SHA
}

// Slug returns the owner/repo pair without the commit component.
func (r CommitRef) Slug() string {
	if r.Owner == "" || r.Repo == "" {
		return ""
	}
	return r.Owner + "/" + r.Repo
}

// ShortSHA returns the first 7 characters of the commit hash,
// or the full hash when it is already shorter.
func (r CommitRef) ShortSHA() string {
	if len(r.SHA) <= 7 {
		return r.SHA
	}
	return r.SHA[:7]
}

// ParseCommitRefs parses a list of commit reference strings,
// dropping entries that fail to parse.
func ParseCommitRefs(refs []string) []CommitRef {
	result := make([]CommitRef, 0, len(refs))
	for _, ref := range refs {
		if parsed := ParseCommitRef(ref); parsed.Repo != "" {
			result = append(result, parsed)
		}
	}
	return result
}

// ParseCommitRefsFromInterface parses commit references from interface{}
// values as they arrive from TOML config or JSON payloads.
func ParseCommitRefsFromInterface(value interface{}) []CommitRef {
	var result []CommitRef

	switch v := value.(type) {
	case string:
		if parsed := ParseCommitRef(v); parsed.Repo != "" {
			result = append(result, parsed)
		}
	case []string:
		for _, s := range v {
			if parsed := ParseCommitRef(s); parsed.Repo != "" {
				result = append(result, parsed)
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if parsed := ParseCommitRef(s); parsed.Repo != "" {
					result = append(result, parsed)
				}
			}
		}
	}

	return result
}
