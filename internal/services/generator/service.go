package generator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/tracker"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// Model drafts are accepted only when they look like a document: at least
// one Markdown heading and a body of real content.
const minModelDraftChars = 100

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s`)

// Service assembles Markdown documents from templates, live data sources and
// the model chain. The deterministic dialect expansion is the guaranteed
// fallback: whenever the project input is well-formed, Generate produces a
// document regardless of model availability.
type Service struct {
	config    *common.Config
	templates interfaces.TemplateService
	sources   interfaces.DataSourceService
	chain     interfaces.ModelService
	logger    arbor.ILogger
}

var _ interfaces.GeneratorService = (*Service)(nil)

// NewService creates a generator. The chain may be nil; the generator then
// always expands deterministically.
func NewService(config *common.Config, templates interfaces.TemplateService, sources interfaces.DataSourceService, chain interfaces.ModelService, logger arbor.ILogger) *Service {
	return &Service{
		config:    config,
		templates: templates,
		sources:   sources,
		chain:     chain,
		logger:    logger,
	}
}

// Generate produces the document for one template request.
func (s *Service) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateOutput, error) {
	tpl, err := s.templates.Get(req.TemplateID)
	if err != nil {
		return nil, err
	}

	if req.UseDemoData {
		demo, err := s.templates.Demo(req.TemplateID)
		if err != nil {
			return nil, err
		}
		return &models.GenerateOutput{Markdown: demo, Model: pkgmodels.ModelUsage{Fallback: true}}, nil
	}

	results := s.fetchRequirements(ctx, tpl, req)
	tplCtx := s.buildContext(req, results)

	output := &models.GenerateOutput{Model: pkgmodels.ModelUsage{Fallback: true}}
	if results != nil {
		output.SourceErrors = results.Failed()
	}

	var markdown string
	if req.UseModel && s.chain != nil && s.chain.Available() {
		markdown, output.Model = s.modelDraft(ctx, tpl, req, tplCtx)
	}
	if markdown == "" {
		markdown, err = s.templates.Render(req.TemplateID, tplCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to expand template %s: %w", req.TemplateID, err)
		}
		output.Model = pkgmodels.ModelUsage{Fallback: true}
	}

	if req.Expense != nil {
		markdown = s.ensureExpenseSection(markdown, req.Expense, req.OCR)
	}

	trk := tracker.New(s.config.VerificationBaseURL(), s.projectID(req))
	markdown = s.annotate(markdown, trk, results, req)
	markdown += trk.FootnotesSection()

	output.Markdown = markdown
	output.Tracked = trk.Count()

	s.logger.Debug().
		Str("template_id", req.TemplateID).
		Int("chars", len(markdown)).
		Int("tracked", output.Tracked).
		Bool("fallback", output.Model.Fallback).
		Msg("Document generated")
	return output, nil
}

// PreviewContext resolves the substitution context a template would see,
// without rendering or tracking.
func (s *Service) PreviewContext(ctx context.Context, templateID string, params map[string]interface{}) (map[string]interface{}, error) {
	tpl, err := s.templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	req := &models.GenerateRequest{TemplateID: templateID, Params: params}
	results := s.fetchRequirements(ctx, tpl, req)
	return s.buildContext(req, results), nil
}

// fetchRequirements schedules the template's declared sources concurrently.
// A missing sources service or an empty requirement list yields nil.
func (s *Service) fetchRequirements(ctx context.Context, tpl *pkgmodels.Template, req *models.GenerateRequest) *models.SourceResults {
	if s.sources == nil || len(tpl.Requirements) == 0 {
		return nil
	}

	params := map[string]interface{}{}
	if pid := s.projectID(req); pid != "" {
		params["project_id"] = pid
	}
	for k, v := range req.Params {
		params[k] = v
	}

	configs := make([]models.SourceFetchConfig, 0, len(tpl.Requirements))
	for _, requirement := range tpl.Requirements {
		cfg := models.SourceFetchConfig{Source: requirement.Source, Params: map[string]interface{}{}}
		for _, name := range requirement.RequiredParams {
			if v, ok := params[name]; ok {
				cfg.Params[name] = v
			}
		}
		for _, name := range requirement.OptionalParams {
			if v, ok := params[name]; ok {
				cfg.Params[name] = v
			}
		}
		configs = append(configs, cfg)
	}
	return s.sources.FetchMultiple(ctx, configs)
}

// modelDraft asks the chain for a drafted document. Empty return means the
// draft was rejected and the deterministic expansion takes over.
func (s *Service) modelDraft(ctx context.Context, tpl *pkgmodels.Template, req *models.GenerateRequest, tplCtx map[string]interface{}) (string, pkgmodels.ModelUsage) {
	fallback := pkgmodels.ModelUsage{Fallback: true}

	prompt := buildDraftPrompt(tpl, tplCtx)
	if prompt == "" {
		return "", fallback
	}

	maxTokens := s.config.Generation.SummaryMaxTokens
	if req.Expense != nil {
		maxTokens = s.config.Generation.ExpenseMaxTokens
	}

	start := time.Now()
	resp := s.chain.Complete(ctx, &models.ModelRequest{
		Prompt:      prompt,
		Temperature: s.config.Generation.Temperature,
		MaxTokens:   maxTokens,
		Purpose:     "draft",
	})
	if !resp.OK() {
		s.logger.Debug().Str("template_id", tpl.ID).Str("error", resp.Error).Msg("Model draft unavailable, expanding template")
		return "", fallback
	}

	draft := strings.TrimSpace(resp.Content)
	if !acceptableDraft(draft) {
		s.logger.Debug().Str("template_id", tpl.ID).Msg("Model draft rejected, expanding template")
		return "", fallback
	}

	return draft, pkgmodels.ModelUsage{
		Provider:     resp.Provider,
		Model:        resp.Model,
		Latency:      time.Since(start),
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}
}

// acceptableDraft applies the structural acceptance rule for model output:
// at least one heading and at least 100 non-whitespace characters.
func acceptableDraft(draft string) bool {
	if !headingPattern.MatchString(draft) {
		return false
	}
	chars := 0
	for _, r := range draft {
		if !strings.ContainsRune(" \t\r\n", r) {
			chars++
		}
	}
	return chars >= minModelDraftChars
}

func (s *Service) projectID(req *models.GenerateRequest) string {
	if req.Project != nil && req.Project.ProjectID != "" {
		return req.Project.ProjectID
	}
	if pid, ok := req.Params["project_id"].(string); ok {
		return pid
	}
	return ""
}
