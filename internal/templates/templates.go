// Package templates holds the built-in document template definitions as
// embedded TOML files. Templates are loaded with resolution order:
// 1. User override: overrideDir/{id}.toml
// 2. Embedded default: internal/templates/{id}.toml
package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/scribo/pkg/models"
)

//go:embed *.toml
var builtinFS embed.FS

// requirement mirrors a [[requires]] block in a template file
type requirement struct {
	Source         string   `toml:"source"`
	RequiredParams []string `toml:"required_params"`
	OptionalParams []string `toml:"optional_params"`
}

// templateFile is the TOML shape of a template definition
type templateFile struct {
	ID           string        `toml:"id"`
	Name         string        `toml:"name"`
	Description  string        `toml:"description"`
	Category     string        `toml:"category"`
	TimeScope    string        `toml:"time_scope"`
	Version      string        `toml:"version"`
	OutputFormat string        `toml:"output_format"`
	StrictVars   bool          `toml:"strict_vars"`
	Requires     []requirement `toml:"requires"`
	Body         string        `toml:"body"`
	DemoBody     string        `toml:"demo_body"`
	ModelPrompt  string        `toml:"model_prompt"`
}

// Load returns one template by id with resolution order:
// 1. User override: overrideDir/{id}.toml
// 2. Embedded default
func Load(id string, overrideDir string) (*models.Template, error) {
	if overrideDir != "" {
		userPath := filepath.Join(overrideDir, id+".toml")
		if data, err := os.ReadFile(userPath); err == nil {
			return parseTemplate(data)
		}
	}

	data, err := builtinFS.ReadFile(id + ".toml")
	if err != nil {
		return nil, fmt.Errorf("template '%s' not found (checked user override and embedded)", id)
	}
	return parseTemplate(data)
}

// LoadAll returns every embedded template, user overrides applied, sorted by id.
func LoadAll(overrideDir string) ([]models.Template, error) {
	ids, err := ListEmbedded()
	if err != nil {
		return nil, err
	}

	templates := make([]models.Template, 0, len(ids))
	for _, id := range ids {
		t, err := Load(id, overrideDir)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

// ListEmbedded returns the ids of all embedded templates, sorted.
func ListEmbedded() ([]string, error) {
	entries, err := builtinFS.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".toml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".toml"))
	}
	sort.Strings(ids)
	return ids, nil
}

func parseTemplate(data []byte) (*models.Template, error) {
	var f templateFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if f.ID == "" {
		return nil, fmt.Errorf("template definition missing id")
	}
	if f.Body == "" {
		return nil, fmt.Errorf("template '%s' has an empty body", f.ID)
	}

	t := &models.Template{
		ID:           f.ID,
		Name:         f.Name,
		Description:  f.Description,
		Category:     models.TemplateCategory(f.Category),
		TimeScope:    models.TimeScope(f.TimeScope),
		Version:      f.Version,
		OutputFormat: f.OutputFormat,
		StrictVars:   f.StrictVars,
		Body:         f.Body,
		DemoBody:     f.DemoBody,
		ModelPrompt:  f.ModelPrompt,
	}
	if t.OutputFormat == "" {
		t.OutputFormat = "markdown"
	}
	if t.TimeScope == "" {
		t.TimeScope = models.ScopeNone
	}
	for _, r := range f.Requires {
		t.Requirements = append(t.Requirements, models.DataRequirement{
			Source:         r.Source,
			RequiredParams: r.RequiredParams,
			OptionalParams: r.OptionalParams,
		})
	}
	return t, nil
}
