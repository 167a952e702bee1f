package models

import "time"

// CommitEvidence is resolved metadata for one owner/repo@sha reference from
// a time entry. Unresolvable references carry Error instead of being dropped.
type CommitEvidence struct {
	Ref       string    `json:"ref"` // raw owner/repo@sha reference
	Owner     string    `json:"owner,omitempty"`
	Repo      string    `json:"repo,omitempty"`
	SHA       string    `json:"sha,omitempty"`
	Message   string    `json:"message,omitempty"`
	Author    string    `json:"author,omitempty"`
	Date      time.Time `json:"date,omitempty"`
	URL       string    `json:"url,omitempty"`
	Additions int       `json:"additions,omitempty"`
	Deletions int       `json:"deletions,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ShortSHA returns the abbreviated commit hash for annex tables.
func (c CommitEvidence) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// Resolved reports whether the lookup succeeded.
func (c CommitEvidence) Resolved() bool {
	return c.Error == "" && c.SHA != ""
}
