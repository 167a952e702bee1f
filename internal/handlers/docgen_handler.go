package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// DocGenHandler exposes the template registry and the document generator
// under /doc-generator/. These routes back the preview UI: list templates,
// inspect one, pull demo output, preview the substitution context, run a
// single generation, and convert Markdown to HTML.
type DocGenHandler struct {
	templates interfaces.TemplateService
	generator interfaces.GeneratorService
	renderer  interfaces.RenderService
	logger    arbor.ILogger
}

func NewDocGenHandler(templates interfaces.TemplateService, generator interfaces.GeneratorService, renderer interfaces.RenderService, logger arbor.ILogger) *DocGenHandler {
	return &DocGenHandler{
		templates: templates,
		generator: generator,
		renderer:  renderer,
		logger:    logger,
	}
}

// TemplatesHandler handles GET /doc-generator/templates and
// GET /doc-generator/templates/{id}
func (h *DocGenHandler) TemplatesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/doc-generator/templates"), "/")
	if id == "" {
		h.listTemplates(w)
		return
	}

	template, err := h.templates.Get(id)
	if err != nil {
		if errors.Is(err, interfaces.ErrTemplateNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown template %q", id))
			return
		}
		WriteError(w, http.StatusInternalServerError, "Template lookup failed")
		return
	}
	WriteJSON(w, http.StatusOK, template)
}

// listTemplates answers summaries plus the parameters each template needs,
// so a UI can build the input form without fetching every template body.
func (h *DocGenHandler) listTemplates(w http.ResponseWriter) {
	summaries := h.templates.List()

	type listing struct {
		ID             string   `json:"id"`
		Name           string   `json:"name"`
		Description    string   `json:"description,omitempty"`
		Category       string   `json:"category"`
		TimeScope      string   `json:"time_scope"`
		Version        string   `json:"version"`
		RequiredParams []string `json:"required_params"`
	}

	entries := make([]listing, 0, len(summaries))
	for _, s := range summaries {
		entry := listing{
			ID:             s.ID,
			Name:           s.Name,
			Description:    s.Description,
			Category:       string(s.Category),
			TimeScope:      string(s.TimeScope),
			Version:        s.Version,
			RequiredParams: []string{},
		}
		if t, err := h.templates.Get(s.ID); err == nil {
			entry.RequiredParams = requiredParams(t.Requirements)
		}
		entries = append(entries, entry)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"templates": entries,
		"total":     len(entries),
	})
}

// DemoHandler handles GET /doc-generator/demo/{id}
func (h *DocGenHandler) DemoHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/doc-generator/demo"), "/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Missing template id")
		return
	}

	demo, err := h.templates.Demo(id)
	if err != nil {
		if errors.Is(err, interfaces.ErrTemplateNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown template %q", id))
			return
		}
		WriteError(w, http.StatusInternalServerError, "Demo rendering failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"template_id": id,
		"markdown":    demo,
	})
}

// PreviewDataHandler handles POST /doc-generator/preview-data. It resolves
// the substitution context a template would see without rendering, which is
// how operators sanity-check live data before committing a generation.
func (h *DocGenHandler) PreviewDataHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		TemplateID string                 `json:"template_id"`
		Params     map[string]interface{} `json:"params"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.TemplateID == "" {
		WriteError(w, http.StatusBadRequest, "template_id is required")
		return
	}

	context, err := h.generator.PreviewContext(r.Context(), req.TemplateID, req.Params)
	if err != nil {
		if errors.Is(err, interfaces.ErrTemplateNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown template %q", req.TemplateID))
			return
		}
		h.logger.Error().Err(err).Str("template_id", req.TemplateID).Msg("Preview context failed")
		WriteError(w, http.StatusInternalServerError, "Preview failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"template_id": req.TemplateID,
		"context":     context,
	})
}

// GenerateHandler handles POST /doc-generator/generate. This is the
// single-document path without validation or versioning; the full pipeline
// lives under POST /api/generate.
func (h *DocGenHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.GenerateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.TemplateID == "" {
		WriteError(w, http.StatusBadRequest, "template_id is required")
		return
	}

	output, err := h.generator.Generate(r.Context(), &req)
	if err != nil {
		if errors.Is(err, interfaces.ErrTemplateNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown template %q", req.TemplateID))
			return
		}
		h.logger.Error().Err(err).Str("template_id", req.TemplateID).Msg("Generation failed")
		WriteError(w, http.StatusInternalServerError, "Generation failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, output)
}

// RenderHTMLHandler handles POST /doc-generator/render-html
func (h *DocGenHandler) RenderHTMLHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Markdown string `json:"markdown"`
		Style    string `json:"style"`
		FullPage bool   `json:"full_page"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Markdown == "" {
		WriteError(w, http.StatusBadRequest, "markdown is required")
		return
	}

	var (
		html string
		meta *models.DocMeta
		err  error
	)
	if req.FullPage {
		html, meta, err = h.renderer.RenderDocument(req.Markdown, req.Style)
	} else {
		html, meta, err = h.renderer.RenderHTML(req.Markdown)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Render failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"html": html,
		"meta": meta,
	})
}

// requiredParams flattens the distinct required parameter names across a
// template's data requirements.
func requiredParams(requirements []pkgmodels.DataRequirement) []string {
	seen := make(map[string]struct{})
	for _, req := range requirements {
		for _, p := range req.RequiredParams {
			seen[p] = struct{}{}
		}
	}
	params := make([]string, 0, len(seen))
	for p := range seen {
		params = append(params, p)
	}
	sort.Strings(params)
	return params
}
