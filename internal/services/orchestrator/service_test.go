package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/generator"
	"github.com/ternarybob/scribo/internal/services/render"
	"github.com/ternarybob/scribo/internal/services/templates"
	"github.com/ternarybob/scribo/internal/services/validation"
	"github.com/ternarybob/scribo/internal/services/versions"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// failSources answers every fetch with a contained error; generation then
// relies on project-input data alone.
type failSources struct{}

func (failSources) Fetch(_ context.Context, name string, _ map[string]interface{}) *models.DataSourceResult {
	return &models.DataSourceResult{Source: name, Error: "read model unavailable"}
}

func (f failSources) FetchMultiple(ctx context.Context, configs []models.SourceFetchConfig) *models.SourceResults {
	out := models.NewSourceResults()
	for _, cfg := range configs {
		out.Add(cfg.Source, f.Fetch(ctx, cfg.Source, cfg.Params))
	}
	return out
}

func (failSources) List() []models.DataSourceDescriptor { return nil }

func (failSources) Get(string) (*models.DataSourceDescriptor, error) { return nil, nil }

type fakeRecords struct {
	saved []*models.GenerationRecord
}

func (f *fakeRecords) SaveRecord(_ context.Context, record *models.GenerationRecord) error {
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeRecords) GetRecord(context.Context, string) (*models.GenerationRecord, error) {
	return nil, nil
}

func (f *fakeRecords) ListRecords(context.Context, int) ([]*models.GenerationRecord, error) {
	return nil, nil
}

func (f *fakeRecords) ListRecordsByProject(context.Context, string, int) ([]*models.GenerationRecord, error) {
	return nil, nil
}

func (f *fakeRecords) CountRecords(context.Context) (int, error) { return len(f.saved), nil }

func (f *fakeRecords) ClearAll(context.Context) error { return nil }

type fakeInvoices struct {
	invoice *pkgmodels.Invoice
	entries []pkgmodels.DailyTimeEntry
}

func (f *fakeInvoices) GetInvoice(_ context.Context, id string) (*pkgmodels.Invoice, error) {
	if f.invoice == nil || f.invoice.ID != id {
		return nil, interfaces.ErrInvoiceNotFound
	}
	return f.invoice, nil
}

func (f *fakeInvoices) GetExpense(_ context.Context, id string) (*pkgmodels.ExpenseRecord, error) {
	if f.invoice == nil || f.invoice.ID != id {
		return nil, interfaces.ErrInvoiceNotFound
	}
	return f.invoice.Expense, nil
}

func (f *fakeInvoices) ListExpenses(context.Context, string) ([]pkgmodels.ExpenseRecord, error) {
	return nil, nil
}

func (f *fakeInvoices) ListRevenues(context.Context, string) ([]pkgmodels.RevenueRecord, error) {
	return nil, nil
}

func (f *fakeInvoices) ListTimeEntries(context.Context, string) ([]pkgmodels.DailyTimeEntry, error) {
	return f.entries, nil
}

func (f *fakeInvoices) Ping(context.Context) error { return nil }

type fakeMailer struct {
	configured  bool
	to          string
	subject     string
	attachments []interfaces.MailAttachment
}

func (f *fakeMailer) SendDocument(_ context.Context, to, subject, _ string, attachments []interfaces.MailAttachment) error {
	f.to = to
	f.subject = subject
	f.attachments = attachments
	return nil
}

func (f *fakeMailer) IsConfigured(context.Context) bool { return f.configured }

// scriptedValidator returns pre-baked reports in sequence; reruns repeat the
// last one.
type scriptedValidator struct {
	reports []*models.PipelineReport
	calls   int
}

func (s *scriptedValidator) Validate(_ context.Context, _ *models.ValidationContext, _ models.ValidationOptions) (*models.PipelineReport, error) {
	i := s.calls
	if i >= len(s.reports) {
		i = len(s.reports) - 1
	}
	s.calls++
	return s.reports[i], nil
}

func (s *scriptedValidator) Stages() []string { return []string{"structure"} }

// scriptedGenerator pairs a fixed draft with scripted refinements.
type scriptedGenerator struct {
	draft       string
	refined     []string
	refineCalls int
}

func (g *scriptedGenerator) Generate(context.Context, *models.GenerateRequest) (*models.GenerateOutput, error) {
	return &models.GenerateOutput{Markdown: g.draft, Model: pkgmodels.ModelUsage{Fallback: true}}, nil
}

func (g *scriptedGenerator) Refine(_ context.Context, content string, _ []pkgmodels.ValidationIssue, _ int) (string, []models.RefinementEntry) {
	if g.refineCalls >= len(g.refined) {
		return content, []models.RefinementEntry{{Iteration: g.refineCalls + 1, Status: pkgmodels.RefineFailed}}
	}
	revised := g.refined[g.refineCalls]
	g.refineCalls++
	return revised, []models.RefinementEntry{{Iteration: g.refineCalls, Status: pkgmodels.RefineSuccess}}
}

func (g *scriptedGenerator) PreviewContext(context.Context, string, map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

func happyProject(template string) *pkgmodels.ProjectInput {
	return &pkgmodels.ProjectInput{
		ProjectID:    "prj-001",
		Name:         "System analizy obrazów przemysłowych",
		InternalCode: "BR-2025-001",
		FiscalYear:   2025,
		CompanyName:  "Demo Software Sp. z o.o.",
		CompanyNIP:   "5881918662",
		StartDate:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
		Innovation: pkgmodels.InnovationProfile{
			Type:  pkgmodels.InnovationProduct,
			Scope: pkgmodels.ScopeNational,
			Description: "Opracowanie autorskiego systemu automatycznej analizy obrazów z linii " +
				"produkcyjnych z wykorzystaniem metod uczenia maszynowego i badaniem niepewności.",
		},
		Costs: pkgmodels.ProjectCosts{
			PersonnelEmployment: []pkgmodels.PersonnelCost{
				{Person: "Anna Nowak", MonthlyGross: 10000, Months: 12, BRShare: 1.0},
			},
		},
		Documentation: pkgmodels.DocumentationConfig{
			Templates: []string{template},
			Language:  "pl",
		},
	}
}

// realService wires the orchestrator over the real generator, validator,
// renderer and a temp-dir version store.
func realService(t *testing.T, deps func(*Deps)) (*Service, string, *fakeRecords) {
	t.Helper()
	logger := arbor.NewLogger()
	cfg := common.NewDefaultConfig()

	tplSvc, err := templates.NewService(logger, "")
	require.NoError(t, err)

	baseDir := t.TempDir()
	store, err := versions.NewService(versions.Config{BaseDir: baseDir}, logger)
	require.NoError(t, err)

	records := &fakeRecords{}
	d := Deps{
		Generator: generator.NewService(cfg, tplSvc, failSources{}, nil, logger),
		Validator: validation.NewService(nil, logger),
		Renderer:  render.NewService(render.Config{DisableBrowser: true}, logger),
		Versions:  store,
		Records:   records,
	}
	if deps != nil {
		deps(&d)
	}
	return NewService(cfg, d, logger), baseDir, records
}

func TestGenerateDocumentation_HappyPathProjectCard(t *testing.T) {
	svc, baseDir, records := realService(t, nil)

	result, err := svc.GenerateDocumentation(context.Background(), happyProject("project_card"), interfaces.OrchestratorOptions{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Score, 0.8)
	assert.Contains(t, []pkgmodels.GenerationStatus{pkgmodels.GenerationPassed, pkgmodels.GenerationWarning}, result.Status)
	assert.Contains(t, result.Document, "# KARTA PROJEKTOWA")
	assert.Contains(t, result.Document, "## 1. IDENTYFIKACJA")
	assert.Contains(t, result.Document, "## 4. KOSZTY")
	assert.Contains(t, result.Document, "120 000,00 zł")
	assert.Contains(t, result.Document, "240 000,00 zł")

	// markdown committed under the project directory with a version tag
	require.NotEmpty(t, result.Artifacts.Markdown)
	assert.Regexp(t, `^v\d{8}_\d{6}`, result.Artifacts.Version)
	_, statErr := os.Stat(filepath.Join(baseDir, result.Artifacts.Markdown))
	assert.NoError(t, statErr)

	// run persisted
	require.Len(t, records.saved, 1)
	assert.Equal(t, result.ID, records.saved[0].ID)
	assert.Equal(t, "prj-001", records.saved[0].ProjectID)
}

func TestGenerateDocumentation_InvalidNIPAbortsBeforeFetch(t *testing.T) {
	svc, _, records := realService(t, nil)

	input := happyProject("project_card")
	input.CompanyNIP = "1234567890"

	result, err := svc.GenerateDocumentation(context.Background(), input, interfaces.OrchestratorOptions{})
	require.NoError(t, err)

	assert.Equal(t, pkgmodels.GenerationFailed, result.Status)
	assert.Empty(t, result.Document, "generation must not run on invalid input")
	assert.Empty(t, result.Artifacts.Markdown)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, pkgmodels.CodeInvalidNIP, result.Issues[0].Code)
	require.Len(t, records.saved, 1)
	assert.Equal(t, pkgmodels.GenerationFailed, records.saved[0].Status)
}

func TestGenerateDocumentation_TimelineAndYearChecked(t *testing.T) {
	svc, _, _ := realService(t, nil)

	input := happyProject("project_card")
	input.StartDate, input.EndDate = input.EndDate, input.StartDate
	result, err := svc.GenerateDocumentation(context.Background(), input, interfaces.OrchestratorOptions{})
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.GenerationFailed, result.Status)
	assert.Equal(t, pkgmodels.CodeInconsistentDates, result.Issues[0].Code)
}

func TestGenerateDocumentation_NilInput(t *testing.T) {
	svc, _, _ := realService(t, nil)

	result, err := svc.GenerateDocumentation(context.Background(), nil, interfaces.OrchestratorOptions{})
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.GenerationFailed, result.Status)
	assert.Equal(t, pkgmodels.CodeMissingField, result.Issues[0].Code)
}

func TestGenerateDocumentation_RefinementConverges(t *testing.T) {
	logger := arbor.NewLogger()
	cfg := common.NewDefaultConfig()
	store, err := versions.NewService(versions.Config{BaseDir: t.TempDir()}, logger)
	require.NoError(t, err)

	lowIssues := []pkgmodels.ValidationIssue{{
		Severity: pkgmodels.SeverityWarning,
		Code:     pkgmodels.CodeMissingQualification,
		Message:  "brak uzasadnienia kwalifikacji",
	}}
	validator := &scriptedValidator{reports: []*models.PipelineReport{
		{Valid: true, Score: 0.7, Issues: lowIssues, ValidatedAt: time.Now()},
		{Valid: true, Score: 0.92, ValidatedAt: time.Now()},
	}}
	gen := &scriptedGenerator{
		draft:   "# Karta projektu B+R\n\nKoszt: 120 000,00 zł.",
		refined: []string{"# Karta projektu B+R\n\n## Uzasadnienie\n\nKoszt: 120 000,00 zł."},
	}

	svc := NewService(cfg, Deps{
		Generator: gen,
		Validator: validator,
		Versions:  store,
	}, logger)

	result, err := svc.GenerateDocumentation(context.Background(), happyProject("project_card"), interfaces.OrchestratorOptions{MaxIterations: -1})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 0.92, result.Score)
	assert.Equal(t, pkgmodels.GenerationPassed, result.Status)
	assert.Contains(t, result.Document, "## Uzasadnienie")
	assert.Contains(t, result.Document, "120 000,00 zł")
	assert.Equal(t, 2, validator.calls)
}

func TestGenerateDocumentation_RefinementStopsWhenRejected(t *testing.T) {
	logger := arbor.NewLogger()
	cfg := common.NewDefaultConfig()

	issues := []pkgmodels.ValidationIssue{{Severity: pkgmodels.SeverityWarning, Message: "x"}}
	validator := &scriptedValidator{reports: []*models.PipelineReport{
		{Valid: true, Score: 0.7, Issues: issues, ValidatedAt: time.Now()},
	}}
	gen := &scriptedGenerator{draft: "# Dokument\n\nTreść."} // every Refine fails

	svc := NewService(cfg, Deps{Generator: gen, Validator: validator}, logger)

	result, err := svc.GenerateDocumentation(context.Background(), happyProject("project_card"), interfaces.OrchestratorOptions{MaxIterations: -1})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Iterations, "one rejected pass ends the loop")
	assert.Equal(t, 0.7, result.Score)
	assert.Equal(t, pkgmodels.GenerationWarning, result.Status)
	assert.Equal(t, "# Dokument\n\nTreść.", result.Document)
}

func TestStatusMapping(t *testing.T) {
	svc := NewService(common.NewDefaultConfig(), Deps{}, arbor.NewLogger())

	errorIssue := pkgmodels.ValidationIssue{Severity: pkgmodels.SeverityError}
	warnIssue := pkgmodels.ValidationIssue{Severity: pkgmodels.SeverityWarning}

	tests := []struct {
		name   string
		report *models.PipelineReport
		want   pkgmodels.GenerationStatus
	}{
		{"clean high score", &models.PipelineReport{Valid: true, Score: 0.95}, pkgmodels.GenerationPassed},
		{"warnings above floor", &models.PipelineReport{Valid: true, Score: 0.75, Issues: []pkgmodels.ValidationIssue{warnIssue}}, pkgmodels.GenerationWarning},
		{"clean but below threshold", &models.PipelineReport{Valid: true, Score: 0.7}, pkgmodels.GenerationWarning},
		{"errors fail", &models.PipelineReport{Valid: false, Score: 0.9, Issues: []pkgmodels.ValidationIssue{errorIssue}}, pkgmodels.GenerationFailed},
		{"score below floor fails", &models.PipelineReport{Valid: true, Score: 0.5, Issues: []pkgmodels.ValidationIssue{warnIssue}}, pkgmodels.GenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.status(tt.report))
		})
	}
}

func TestGenerateExpenseDocument(t *testing.T) {
	invoice := &pkgmodels.Invoice{
		ID: "inv-42",
		Expense: &pkgmodels.ExpenseRecord{
			ID:            "inv-42",
			InvoiceNumber: "FV/2025/03/112",
			InvoiceDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			VendorName:    "Optotech Sp. z o.o.",
			VendorNIP:     "7811231234",
			NetAmount:     11626.02,
			GrossAmount:   14300.0,
			Category:      pkgmodels.CategoryEquipment,
			Qualified:     true,
		},
		OCR: &pkgmodels.OCRResult{Text: "FAKTURA VAT FV/2025/03/112", Confidence: 91.0},
	}

	svc, _, _ := realService(t, func(d *Deps) {
		d.Invoices = &fakeInvoices{invoice: invoice}
	})

	result, err := svc.GenerateExpenseDocument(context.Background(), happyProject("project_card"), "inv-42", interfaces.OrchestratorOptions{})
	require.NoError(t, err)

	assert.Contains(t, result.Document, "FV/2025/03/112")
	assert.Contains(t, result.Artifacts.Markdown, "BR_DOC_20250314_FV_2025_03_112")
	assert.Equal(t, "expense_registry", result.TemplateID)
}

func TestGenerateExpenseDocument_UnknownInvoice(t *testing.T) {
	svc, _, _ := realService(t, func(d *Deps) {
		d.Invoices = &fakeInvoices{}
	})

	_, err := svc.GenerateExpenseDocument(context.Background(), happyProject("project_card"), "missing", interfaces.OrchestratorOptions{})
	assert.ErrorIs(t, err, interfaces.ErrInvoiceNotFound)
}

func TestNotifyEmailSendsArtifacts(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	svc, _, _ := realService(t, func(d *Deps) {
		d.Mailer = mailer
	})

	result, err := svc.GenerateDocumentation(context.Background(), happyProject("project_card"), interfaces.OrchestratorOptions{
		NotifyEmail: "ksiegowosc@example.pl",
		RenderPDF:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "ksiegowosc@example.pl", mailer.to)
	assert.Contains(t, mailer.subject, "project_card")
	require.NotEmpty(t, mailer.attachments)
	assert.Contains(t, mailer.attachments[0].Filename, ".md")
	if result.Artifacts.PDF != "" {
		require.Len(t, mailer.attachments, 2)
		assert.Equal(t, "application/pdf", mailer.attachments[1].ContentType)
		assert.Equal(t, "%PDF", string(mailer.attachments[1].Data[:4]))
	}
}

func TestVersionHistoryAcrossRuns(t *testing.T) {
	svc, _, _ := realService(t, nil)
	input := happyProject("project_card")

	var paths []string
	for i := 0; i < 3; i++ {
		result, err := svc.GenerateDocumentation(context.Background(), input, interfaces.OrchestratorOptions{})
		require.NoError(t, err)
		paths = append(paths, result.Artifacts.Markdown)
	}
	// same summary artifact on the same day, three revisions
	assert.Equal(t, paths[0], paths[1])
	assert.Equal(t, paths[1], paths[2])

	store := svc.store
	history, err := store.History(paths[0], 0)
	require.NoError(t, err)
	// HTML commits share the run count; markdown alone has three revisions
	assert.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].Version >= history[i].Version, "history must be descending")
	}
}

func TestEvidenceAnnexAppendedToTimesheet(t *testing.T) {
	entries := []pkgmodels.DailyTimeEntry{{
		ProjectID:  "prj-001",
		Worker:     "Anna Nowak",
		Date:       time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Hours:      7.5,
		CommitRefs: []string{"demo/vision@abc1234def"},
	}}
	evidence := &fakeEvidence{commits: []models.CommitEvidence{{
		Ref: "demo/vision@abc1234def", Owner: "demo", Repo: "vision",
		SHA: "abc1234def5678", Author: "Anna Nowak",
		Date:    time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
		Message: "Dodanie modułu detekcji krawędzi",
		URL:     "https://github.com/demo/vision/commit/abc1234def5678",
	}}}

	svc, _, _ := realService(t, func(d *Deps) {
		d.Invoices = &fakeInvoices{entries: entries}
		d.Evidence = evidence
	})

	result, err := svc.GenerateDocumentation(context.Background(), happyProject("timesheet_monthly"), interfaces.OrchestratorOptions{})
	require.NoError(t, err)

	assert.Contains(t, result.Document, "## Załącznik: dowody prac")
	assert.Contains(t, result.Document, "abc1234")
	assert.Contains(t, result.Document, "Dodanie modułu detekcji krawędzi")
	assert.Equal(t, []string{"demo/vision@abc1234def"}, evidence.resolved)
}

type fakeEvidence struct {
	commits  []models.CommitEvidence
	resolved []string
}

func (f *fakeEvidence) ResolveCommits(_ context.Context, refs []string) []models.CommitEvidence {
	f.resolved = append(f.resolved, refs...)
	return f.commits
}

func (f *fakeEvidence) Enabled() bool { return true }

func TestEvidenceAnnexUnresolvedListed(t *testing.T) {
	annex := evidenceAnnex([]models.CommitEvidence{
		{Ref: "demo/vision@deadbeef", Error: "commit not found"},
	})
	assert.Contains(t, annex, "nie odnaleziono (commit not found)")
}

type capturingEvents struct {
	events []interfaces.Event
}

func (c *capturingEvents) Subscribe(interfaces.EventType, interfaces.EventHandler) error {
	return nil
}

func (c *capturingEvents) Unsubscribe(interfaces.EventType, interfaces.EventHandler) error {
	return nil
}

func (c *capturingEvents) Publish(_ context.Context, event interfaces.Event) error {
	c.events = append(c.events, event)
	return nil
}

func (c *capturingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return c.Publish(ctx, event)
}

func (c *capturingEvents) Close() error { return nil }

func TestEvents_PublishedDuringRun(t *testing.T) {
	bus := &capturingEvents{}
	svc, _, _ := realService(t, func(d *Deps) {
		d.Events = bus
	})

	result, err := svc.GenerateDocumentation(context.Background(), happyProject("project_card"), interfaces.OrchestratorOptions{})
	require.NoError(t, err)

	require.NotEmpty(t, bus.events)
	assert.Equal(t, interfaces.EventGenerationStarted, bus.events[0].Type)
	last := bus.events[len(bus.events)-1]
	assert.Equal(t, interfaces.EventGenerationCompleted, last.Type)
	progress, ok := last.Payload.(models.GenerationProgress)
	require.True(t, ok)
	assert.Equal(t, result.ID, progress.RunID)
	assert.Equal(t, string(result.Status), progress.Message)
}

func TestArtifactPathShapes(t *testing.T) {
	now := time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC)

	project := happyProject("project_card")
	p := artifactPath(runSpec{input: project}, now)
	assert.Equal(t, "prj-001/BR_SUMMARY_20250331.md", p)

	expense := &pkgmodels.ExpenseRecord{
		ID:            "exp-9",
		InvoiceNumber: "FV/2025/03/112",
		InvoiceDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	p = artifactPath(runSpec{input: project, expense: expense}, now)
	assert.Equal(t, fmt.Sprintf("prj-001/%s", versions.DocumentFilename(expense.InvoiceDate, expense.InvoiceNumber, expense.ID)), p)

	p = artifactPath(runSpec{}, now)
	assert.Equal(t, "unassigned/BR_SUMMARY_20250331.md", p)
}
