package models

import "time"

// DocMeta is the YAML frontmatter block generated documents open with.
type DocMeta struct {
	Title       string    `yaml:"title" json:"title"`
	ProjectID   string    `yaml:"project" json:"project"`
	FiscalYear  int       `yaml:"fiscal_year" json:"fiscal_year"`
	GeneratedAt time.Time `yaml:"generated_at" json:"generated_at"`
	Template    string    `yaml:"template,omitempty" json:"template,omitempty"`
	Version     string    `yaml:"version,omitempty" json:"version,omitempty"`
}

// Empty reports whether no frontmatter field was set.
func (m *DocMeta) Empty() bool {
	return m == nil || (m.Title == "" && m.ProjectID == "" && m.FiscalYear == 0 && m.GeneratedAt.IsZero())
}
