package templates

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	builtins "github.com/ternarybob/scribo/internal/templates"
	"github.com/ternarybob/scribo/pkg/models"
)

// Service is the closed template registry, read-only after construction.
type Service struct {
	templates map[string]*models.Template
	compiled  map[string][]Node
	order     []string
	logger    arbor.ILogger
}

var _ interfaces.TemplateService = (*Service)(nil)

// NewService loads the built-in templates, applies any overrides from
// overrideDir, and compiles every body. A template that fails to compile
// aborts startup rather than failing a later generation.
func NewService(logger arbor.ILogger, overrideDir string) (*Service, error) {
	all, err := builtins.LoadAll(overrideDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no templates found")
	}

	s := &Service{
		templates: make(map[string]*models.Template, len(all)),
		compiled:  make(map[string][]Node, len(all)),
		logger:    logger,
	}
	for i := range all {
		t := &all[i]
		nodes, err := Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("template '%s': %w", t.ID, err)
		}
		s.templates[t.ID] = t
		s.compiled[t.ID] = nodes
		s.order = append(s.order, t.ID)
	}

	logger.Info().
		Int("count", len(s.order)).
		Str("override_dir", overrideDir).
		Msg("Template registry loaded")

	return s, nil
}

// Get returns the full template by id.
func (s *Service) Get(id string) (*models.Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, interfaces.ErrTemplateNotFound
	}
	return t, nil
}

// List returns template summaries in registration order.
func (s *Service) List() []models.TemplateSummary {
	summaries := make([]models.TemplateSummary, 0, len(s.order))
	for _, id := range s.order {
		summaries = append(summaries, s.templates[id].Summary())
	}
	return summaries
}

// Demo returns the pre-filled demo Markdown for UI previews. Templates
// without a demo body fall back to a permissive skeleton render.
func (s *Service) Demo(id string) (string, error) {
	t, ok := s.templates[id]
	if !ok {
		return "", interfaces.ErrTemplateNotFound
	}
	if t.DemoBody != "" {
		return t.DemoBody, nil
	}
	return Render(s.compiled[id], map[string]interface{}{}, false)
}

// Render expands a registered template body against the substitution context.
func (s *Service) Render(id string, context map[string]interface{}) (string, error) {
	t, ok := s.templates[id]
	if !ok {
		return "", interfaces.ErrTemplateNotFound
	}

	out, err := Render(s.compiled[id], context, t.StrictVars)
	if err != nil {
		return "", fmt.Errorf("template '%s': %w", id, err)
	}
	return out, nil
}

// RenderBody expands an arbitrary dialect body outside the registry.
func (s *Service) RenderBody(body string, context map[string]interface{}, strict bool) (string, error) {
	nodes, err := Parse(body)
	if err != nil {
		return "", err
	}
	return Render(nodes, context, strict)
}
