package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/versions"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// defaultTemplateID is generated when the project configures no templates.
const defaultTemplateID = "br_annual_summary"

// Service drives the generate, validate, refine, render, commit flow. One
// run is one goroutine; the only shared state lives behind the injected
// services.
type Service struct {
	config    *common.Config
	generator interfaces.GeneratorService
	validator interfaces.ValidationService
	renderer  interfaces.RenderService
	store     interfaces.VersionService
	records   interfaces.GenerationStorage
	invoices  interfaces.InvoiceStorage
	events    interfaces.EventService
	mailer    interfaces.MailerService
	evidence  interfaces.EvidenceService
	logger    arbor.ILogger
	now       func() time.Time
}

var _ interfaces.OrchestratorService = (*Service)(nil)

// Deps collects the orchestrator's collaborators. Records, invoices, events,
// mailer and evidence are optional; a nil entry disables that concern.
type Deps struct {
	Generator interfaces.GeneratorService
	Validator interfaces.ValidationService
	Renderer  interfaces.RenderService
	Versions  interfaces.VersionService
	Records   interfaces.GenerationStorage
	Invoices  interfaces.InvoiceStorage
	Events    interfaces.EventService
	Mailer    interfaces.MailerService
	Evidence  interfaces.EvidenceService
}

// NewService wires the documentation flow.
func NewService(config *common.Config, deps Deps, logger arbor.ILogger) *Service {
	return &Service{
		config:    config,
		generator: deps.Generator,
		validator: deps.Validator,
		renderer:  deps.Renderer,
		store:     deps.Versions,
		records:   deps.Records,
		invoices:  deps.Invoices,
		events:    deps.Events,
		mailer:    deps.Mailer,
		evidence:  deps.Evidence,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateDocumentation runs the full flow for a project-level document.
// The template is the first one the project configures, falling back to the
// annual summary.
func (s *Service) GenerateDocumentation(ctx context.Context, input *pkgmodels.ProjectInput, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
	templateID := defaultTemplateID
	if input != nil && len(input.Documentation.Templates) > 0 {
		templateID = input.Documentation.Templates[0]
	}

	return s.run(ctx, runSpec{
		input:      input,
		templateID: templateID,
		opts:       opts,
	})
}

// GenerateExpenseDocument runs the flow for one invoice-backed expense.
func (s *Service) GenerateExpenseDocument(ctx context.Context, input *pkgmodels.ProjectInput, invoiceID string, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
	if s.invoices == nil {
		return nil, fmt.Errorf("invoice read model is not configured")
	}
	invoice, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Expense == nil {
		return nil, fmt.Errorf("invoice %s carries no expense record", invoiceID)
	}

	return s.run(ctx, runSpec{
		input:      input,
		templateID: "expense_registry",
		opts:       opts,
		expense:    invoice.Expense,
		ocr:        invoice.OCR,
		invoiceID:  invoiceID,
	})
}

// runSpec is the resolved shape of one documentation run.
type runSpec struct {
	input      *pkgmodels.ProjectInput
	templateID string
	opts       interfaces.OrchestratorOptions
	expense    *pkgmodels.ExpenseRecord
	ocr        *pkgmodels.OCRResult
	invoiceID  string
}

// run executes the eight-step flow. Input invariants abort before any fetch;
// every later failure is folded into the result.
func (s *Service) run(ctx context.Context, spec runSpec) (*pkgmodels.GenerationResult, error) {
	result := &pkgmodels.GenerationResult{
		ID:         common.NewGenerationID(),
		TemplateID: spec.templateID,
		Status:     pkgmodels.GenerationFailed,
		StartedAt:  s.now(),
	}
	if spec.input != nil {
		result.ProjectID = spec.input.ProjectID
	}

	if issue, ok := s.checkInput(spec.input); !ok {
		result.Issues = append(result.Issues, *issue)
		result.Error = issue.Message
		result.CompletedAt = s.now()
		s.persist(ctx, result)
		return result, nil
	}

	s.publish(ctx, interfaces.EventGenerationStarted, result, "fetch", 0, "")

	output, err := s.generator.Generate(ctx, &models.GenerateRequest{
		TemplateID: spec.templateID,
		Params:     s.runParams(spec),
		Project:    spec.input,
		Expense:    spec.expense,
		OCR:        spec.ocr,
		UseModel:   spec.opts.UseModel,
	})
	if err != nil {
		result.Error = err.Error()
		result.CompletedAt = s.now()
		s.persist(ctx, result)
		s.publish(ctx, interfaces.EventGenerationCompleted, result, "generate", 0, result.Error)
		return result, nil
	}
	result.Document = output.Markdown
	result.Variables = output.Tracked
	result.Model = output.Model
	s.appendEvidence(ctx, spec, result)
	s.publish(ctx, interfaces.EventGenerationStage, result, "generate", 0, "")

	report := s.validateDocument(ctx, spec, result.Document)
	s.publish(ctx, interfaces.EventGenerationStage, result, "validate", 0, "")

	report = s.refineLoop(ctx, spec, result, report)

	result.Score = report.Score
	result.Valid = report.Valid
	result.Stages = report.Stages
	result.Issues = append(result.Issues, report.Issues...)
	result.Status = s.status(report)

	s.commitArtifacts(ctx, spec, result)
	s.notify(ctx, spec, result)

	result.CompletedAt = s.now()
	s.persist(ctx, result)
	s.publish(ctx, interfaces.EventGenerationCompleted, result, "commit", result.Iterations, string(result.Status))

	s.logger.Info().
		Str("run_id", result.ID).
		Str("project_id", result.ProjectID).
		Str("template_id", result.TemplateID).
		Str("status", string(result.Status)).
		Float64("score", result.Score).
		Int("iterations", result.Iterations).
		Msg("Documentation run finished")
	return result, nil
}

// checkInput enforces the project-input invariants that abort a run before
// any fetch happens.
func (s *Service) checkInput(input *pkgmodels.ProjectInput) (*pkgmodels.ValidationIssue, bool) {
	if input == nil {
		return &pkgmodels.ValidationIssue{
			Severity: pkgmodels.SeverityError,
			Code:     pkgmodels.CodeMissingField,
			Message:  "Brak danych projektu",
		}, false
	}
	if err := input.Validate(); err != nil {
		return &pkgmodels.ValidationIssue{
			Severity: pkgmodels.SeverityError,
			Code:     pkgmodels.CodeMissingField,
			Message:  fmt.Sprintf("Niekompletne dane projektu: %v", err),
		}, false
	}
	if ok, detail := common.ValidateNIP(input.CompanyNIP); !ok {
		return &pkgmodels.ValidationIssue{
			Severity:   pkgmodels.SeverityError,
			Code:       pkgmodels.CodeInvalidNIP,
			Message:    fmt.Sprintf("NIP %s jest nieprawidłowy: %s", input.CompanyNIP, detail),
			Suggestion: "Zweryfikuj NIP podmiotu w rejestrze REGON",
		}, false
	}
	if input.EndDate.Before(input.StartDate) {
		return &pkgmodels.ValidationIssue{
			Severity: pkgmodels.SeverityError,
			Code:     pkgmodels.CodeInconsistentDates,
			Message:  "Data zakończenia projektu poprzedza datę rozpoczęcia",
		}, false
	}
	if ok, detail := common.ValidateFiscalYear(input.FiscalYear, input.Documentation.AllowFutureYear); !ok {
		return &pkgmodels.ValidationIssue{
			Severity: pkgmodels.SeverityError,
			Code:     pkgmodels.CodeInconsistentDates,
			Message:  detail,
		}, false
	}
	return nil, true
}

func (s *Service) runParams(spec runSpec) map[string]interface{} {
	params := map[string]interface{}{}
	if spec.input != nil {
		params["project_id"] = spec.input.ProjectID
		params["fiscal_year"] = spec.input.FiscalYear
	}
	if spec.invoiceID != "" {
		params["invoice_id"] = spec.invoiceID
	}
	return params
}

// validateDocument runs the staged pipeline with the project facts the
// cross-checks need.
func (s *Service) validateDocument(ctx context.Context, spec runSpec, content string) *models.PipelineReport {
	vctx := models.NewValidationContext(content, documentType(spec))
	if spec.input != nil {
		vctx.ProjectID = spec.input.ProjectID
		vctx.FiscalYear = spec.input.FiscalYear
		vctx.CompanyNIP = spec.input.CompanyNIP
		if spec.input.Documentation.IncludeNexus {
			components := spec.input.Costs.NexusComponents()
			vctx.Nexus = &components
		}
	}

	report, err := s.validator.Validate(ctx, vctx, models.ValidationOptions{StopOnError: spec.opts.StopOnError})
	if err != nil {
		return &models.PipelineReport{
			Valid: false,
			Issues: []pkgmodels.ValidationIssue{{
				Severity: pkgmodels.SeverityError,
				Code:     "VALIDATION_UNAVAILABLE",
				Message:  fmt.Sprintf("Walidacja nie powiodła się: %v", err),
			}},
			ValidatedAt: s.now(),
		}
	}
	return report
}

// refineLoop reworks the draft while the score stays under threshold and
// iterations remain; each accepted revision is re-validated.
func (s *Service) refineLoop(ctx context.Context, spec runSpec, result *pkgmodels.GenerationResult, report *models.PipelineReport) *models.PipelineReport {
	maxIterations := spec.opts.MaxIterations
	if maxIterations < 0 {
		maxIterations = s.config.Generation.MaxIterations
	}

	for i := 0; i < maxIterations; i++ {
		if report.Score >= s.config.Generation.ScoreThreshold || len(report.Issues) == 0 {
			break
		}

		revised, entries := s.generator.Refine(ctx, result.Document, report.Issues, 1)
		if len(entries) == 0 {
			break
		}
		result.Iterations++
		s.publish(ctx, interfaces.EventGenerationStage, result, "refine", result.Iterations, string(entries[len(entries)-1].Status))

		if entries[len(entries)-1].Status != pkgmodels.RefineSuccess {
			break
		}
		result.Document = revised
		report = s.validateDocument(ctx, spec, result.Document)
	}
	return report
}

// status maps the final report onto the run verdict: errors or a score below
// the warning floor fail, warnings with an acceptable score warn.
func (s *Service) status(report *models.PipelineReport) pkgmodels.GenerationStatus {
	switch {
	case report.ErrorCount() > 0 || report.Score < s.config.Generation.WarningThreshold:
		return pkgmodels.GenerationFailed
	case report.WarningCount() > 0 || report.Score < s.config.Generation.ScoreThreshold:
		return pkgmodels.GenerationWarning
	default:
		return pkgmodels.GenerationPassed
	}
}

// commitArtifacts stores the Markdown (and PDF when requested) through the
// version store. Commit failures degrade the run to failed but keep the
// document in the result.
func (s *Service) commitArtifacts(ctx context.Context, spec runSpec, result *pkgmodels.GenerationResult) {
	if s.store == nil || result.Document == "" {
		return
	}

	path := artifactPath(spec, s.now())
	message := fmt.Sprintf("generated %s (score %.2f, %s)", spec.templateID, result.Score, result.Status)
	info, err := s.store.Commit(path, []byte(result.Document), message)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to commit markdown artifact")
		result.Status = pkgmodels.GenerationFailed
		result.Error = fmt.Sprintf("zapis dokumentu nie powiódł się: %v", err)
		return
	}
	result.Artifacts.Markdown = path
	result.Artifacts.Version = info.Version

	if s.renderer == nil {
		return
	}

	if page, _, err := s.renderer.RenderDocument(result.Document, s.config.Render.Style); err == nil {
		htmlPath := siblingPath(path, ".html")
		if _, err := s.store.Commit(htmlPath, []byte(page), message); err == nil {
			result.Artifacts.HTML = htmlPath
		} else {
			s.logger.Warn().Err(err).Str("path", htmlPath).Msg("Failed to commit HTML artifact")
		}
	} else {
		s.logger.Warn().Err(err).Msg("HTML render failed")
	}

	if spec.opts.RenderPDF {
		pdf, err := s.renderer.RenderPDF(ctx, result.Document, s.config.Render.Style)
		if err != nil {
			s.logger.Warn().Err(err).Msg("PDF render failed")
			return
		}
		pdfPath := siblingPath(path, ".pdf")
		if _, err := s.store.Commit(pdfPath, pdf, message); err != nil {
			s.logger.Warn().Err(err).Str("path", pdfPath).Msg("Failed to commit PDF artifact")
			return
		}
		result.Artifacts.PDF = pdfPath
		s.publish(ctx, interfaces.EventGenerationStage, result, "render", result.Iterations, "")
	}
}

// appendEvidence attaches the work-evidence annex to timesheet documents:
// commit references from the project's time entries resolved to commit
// metadata. Silently skipped without a token or read model.
func (s *Service) appendEvidence(ctx context.Context, spec runSpec, result *pkgmodels.GenerationResult) {
	if spec.templateID != string(models.DocTypeTimesheet) {
		return
	}
	if s.evidence == nil || !s.evidence.Enabled() || s.invoices == nil || spec.input == nil {
		return
	}

	entries, err := s.invoices.ListTimeEntries(ctx, spec.input.ProjectID)
	if err != nil {
		s.logger.Warn().Err(err).Str("project_id", spec.input.ProjectID).Msg("Failed to load time entries for evidence annex")
		return
	}
	var refs []string
	seen := map[string]bool{}
	for _, entry := range entries {
		for _, ref := range entry.CommitRefs {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	if len(refs) == 0 {
		return
	}

	commits := s.evidence.ResolveCommits(ctx, refs)
	annex := evidenceAnnex(commits)
	if annex == "" {
		return
	}
	result.Document = strings.TrimRight(result.Document, "\n") + "\n\n" + annex
}

// evidenceAnnex renders resolved commits as the annex table. Unresolved
// references are listed with their raw ref so the annex stays auditable.
func evidenceAnnex(commits []models.CommitEvidence) string {
	var sb strings.Builder
	sb.WriteString("## Załącznik: dowody prac (commity)\n\n")
	sb.WriteString("| SHA | Autor | Data | Opis zmiany |\n")
	sb.WriteString("|-----|-------|------|-------------|\n")
	rows := 0
	for _, c := range commits {
		if !c.Resolved() {
			sb.WriteString(fmt.Sprintf("| %s | - | - | nie odnaleziono (%s) |\n", c.Ref, c.Error))
			rows++
			continue
		}
		message := c.Message
		if i := strings.IndexByte(message, '\n'); i >= 0 {
			message = message[:i]
		}
		sb.WriteString(fmt.Sprintf("| [%s](%s) | %s | %s | %s |\n",
			c.ShortSHA(), c.URL, c.Author, common.FormatDateISO(c.Date), message))
		rows++
	}
	if rows == 0 {
		return ""
	}
	return sb.String()
}

// notify mails the finished artifacts when the run asked for it.
func (s *Service) notify(ctx context.Context, spec runSpec, result *pkgmodels.GenerationResult) {
	if spec.opts.NotifyEmail == "" || s.mailer == nil || !s.mailer.IsConfigured(ctx) {
		return
	}

	attachments := []interfaces.MailAttachment{{
		Filename:    filenameOf(result.Artifacts.Markdown, "dokument.md"),
		ContentType: "text/markdown; charset=utf-8",
		Data:        []byte(result.Document),
	}}
	if result.Artifacts.PDF != "" && s.store != nil {
		if history, err := s.store.History(result.Artifacts.PDF, 1); err == nil && len(history) > 0 {
			if data, err := s.store.ReadAt(result.Artifacts.PDF, history[0].Version); err == nil {
				attachments = append(attachments, interfaces.MailAttachment{
					Filename:    filenameOf(result.Artifacts.PDF, "dokument.pdf"),
					ContentType: "application/pdf",
					Data:        data,
				})
			}
		}
	}

	subject := fmt.Sprintf("Dokumentacja B+R: %s (%s)", spec.templateID, result.Status)
	body := fmt.Sprintf("Wygenerowano dokument %s dla projektu %s.\nWynik walidacji: %s, ocena %.2f.\n",
		spec.templateID, result.ProjectID, result.Status, result.Score)
	if err := s.mailer.SendDocument(ctx, spec.opts.NotifyEmail, subject, body, attachments); err != nil {
		s.logger.Warn().Err(err).Str("to", spec.opts.NotifyEmail).Msg("Failed to mail artifacts")
	}
}

func (s *Service) persist(ctx context.Context, result *pkgmodels.GenerationResult) {
	if s.records == nil {
		return
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = s.now()
	}
	if err := s.records.SaveRecord(ctx, models.RecordFromResult(result)); err != nil {
		s.logger.Warn().Err(err).Str("run_id", result.ID).Msg("Failed to persist generation record")
	}
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, result *pkgmodels.GenerationResult, step string, iteration int, message string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{
		Type: eventType,
		Payload: models.GenerationProgress{
			RunID:      result.ID,
			ProjectID:  result.ProjectID,
			TemplateID: result.TemplateID,
			Step:       step,
			Status:     string(result.Status),
			Score:      result.Score,
			Iteration:  iteration,
			Message:    message,
			Timestamp:  s.now(),
		},
	})
}

// documentType maps the run onto the validation document type. A single
// invoice-backed expense validates under the stricter single-expense rules.
func documentType(spec runSpec) models.DocumentType {
	if spec.expense != nil {
		return models.DocTypeExpenseSingle
	}
	switch t := models.DocumentType(spec.templateID); t {
	case models.DocTypeProjectCard, models.DocTypeTimesheet, models.DocTypeExpense,
		models.DocTypeNexus, models.DocTypeAnnualSummary, models.DocTypeIPBoxProcedure,
		models.DocTypeInterpretation, models.DocTypeContract:
		return t
	}
	return models.DocTypeGeneric
}

// artifactPath builds the versioned artifact location for a run:
// <project id>/BR_DOC_... for expenses, <project id>/BR_SUMMARY_... otherwise.
func artifactPath(spec runSpec, now time.Time) string {
	projectDir := "unassigned"
	if spec.input != nil && spec.input.ProjectID != "" {
		projectDir = spec.input.ProjectID
	}
	if spec.expense != nil {
		return projectDir + "/" + versions.DocumentFilename(spec.expense.InvoiceDate, spec.expense.InvoiceNumber, spec.expense.ID)
	}
	return projectDir + "/" + versions.SummaryFilename(now)
}

func siblingPath(path, ext string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		return path[:i] + ext
	}
	return path + ext
}

func filenameOf(path, fallback string) string {
	if path == "" {
		return fallback
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
