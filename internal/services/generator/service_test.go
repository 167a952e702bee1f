package generator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/templates"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

type fakeChain struct {
	available bool
	responses []*models.ModelResponse
	requests  []*models.ModelRequest
}

func (f *fakeChain) Complete(_ context.Context, req *models.ModelRequest) *models.ModelResponse {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return &models.ModelResponse{Error: "no endpoints configured"}
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp
}

func (f *fakeChain) Available() bool { return f.available }

func (f *fakeChain) Endpoints() []models.ModelConfig { return nil }

type fakeSources struct {
	results map[string]*models.DataSourceResult
	fetched []string
}

func (f *fakeSources) Fetch(_ context.Context, name string, _ map[string]interface{}) *models.DataSourceResult {
	f.fetched = append(f.fetched, name)
	if r, ok := f.results[name]; ok {
		return r
	}
	return &models.DataSourceResult{Source: name, Error: "data source not found"}
}

func (f *fakeSources) FetchMultiple(ctx context.Context, configs []models.SourceFetchConfig) *models.SourceResults {
	out := models.NewSourceResults()
	for _, cfg := range configs {
		out.Add(cfg.Source, f.Fetch(ctx, cfg.Source, cfg.Params))
	}
	return out
}

func (f *fakeSources) List() []models.DataSourceDescriptor { return nil }

func (f *fakeSources) Get(string) (*models.DataSourceDescriptor, error) { return nil, nil }

func testProject() *pkgmodels.ProjectInput {
	return &pkgmodels.ProjectInput{
		ProjectID:    "prj-001",
		Name:         "System analizy obrazów",
		InternalCode: "BR-2025-001",
		FiscalYear:   2025,
		CompanyName:  "Demo Software Sp. z o.o.",
		CompanyNIP:   "5881918662",
		StartDate:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
		Innovation: pkgmodels.InnovationProfile{
			Type:        pkgmodels.InnovationProduct,
			Scope:       pkgmodels.ScopeNational,
			Description: "Opracowanie autorskiego systemu automatycznej analizy obrazów przemysłowych.",
		},
		Costs: pkgmodels.ProjectCosts{
			PersonnelEmployment: []pkgmodels.PersonnelCost{
				{Person: "Anna Nowak", MonthlyGross: 12000, Months: 5, BRShare: 1.0},
			},
			Equipment: []pkgmodels.CostEntry{
				{Description: "Kamera przemysłowa", Amount: 14300},
			},
		},
	}
}

func registrySources() *fakeSources {
	return &fakeSources{results: map[string]*models.DataSourceResult{
		"project_info": {
			Source: "project_info",
			Payload: map[string]interface{}{
				"name": "System analizy obrazów", "code": "BR-2025-001",
				"fiscal_year": 2025, "company_name": "Demo Software Sp. z o.o.",
				"company_nip": "5881918662",
				"start_date":  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
				"end_date":    time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
				"description": "Opis prac.", "innovation_type": "product", "innovation_scope": "national",
			},
		},
		"expenses_summary": {
			Source: "expenses_summary",
			Payload: map[string]interface{}{
				"invoice_count": 2, "total_net": 35000.0,
				"total_gross": 43050.0, "total_deduction": 71800.0,
			},
			Variables: map[string]interface{}{
				"total_gross": 43050.0, "total_net": 35000.0, "total_deduction": 71800.0,
			},
		},
		"expenses_by_category": {
			Source: "expenses_by_category",
			Payload: []map[string]interface{}{
				{"category": "personnel_employment", "invoice_count": 1, "gross_amount": 28750.0, "net_amount": 28750.0},
				{"category": "equipment", "invoice_count": 1, "gross_amount": 14300.0, "net_amount": 11626.0},
			},
		},
	}}
}

func newTestService(t *testing.T, src *fakeSources, chain *fakeChain) *Service {
	t.Helper()
	tpl, err := templates.NewService(arbor.NewLogger(), "")
	require.NoError(t, err)
	var mc interfaces.ModelService
	if chain != nil {
		mc = chain
	}
	return NewService(common.NewDefaultConfig(), tpl, src, mc, arbor.NewLogger())
}

func TestGenerate_DeterministicWithSources(t *testing.T) {
	src := registrySources()
	s := newTestService(t, src, nil)

	out, err := s.Generate(context.Background(), &models.GenerateRequest{
		TemplateID: "expense_registry",
		Project:    testProject(),
	})
	require.NoError(t, err)

	assert.True(t, out.Model.Fallback)
	assert.Contains(t, out.Markdown, "# Rejestr kosztów kwalifikowanych B+R: 2025")
	assert.Contains(t, out.Markdown, "Demo Software Sp. z o.o.")
	assert.Contains(t, out.Markdown, "43 050,00 zł")
	assert.Contains(t, out.Markdown, "71 800,00 zł")
	assert.Empty(t, out.SourceErrors)

	// declared requirements fetched in order
	assert.Equal(t, []string{"project_info", "expenses_summary", "expenses_by_category"}, src.fetched)
}

// The marker must not split a money literal: "71 800,00 zł[^2]", never
// "71 800,00[^2] zł".
func TestInsertMarkerKeepsAmountIntact(t *testing.T) {
	doc := "Łączne odliczenie: 71 800,00 zł brutto."
	pos := strings.Index(doc, "71 800,00")
	out := insertMarker(doc, pos, len("71 800,00"), "[^2]")
	assert.Equal(t, "Łączne odliczenie: 71 800,00 zł[^2] brutto.", out)

	doc = "Razem: **248 500,00 zł**."
	pos = strings.Index(doc, "248 500,00")
	out = insertMarker(doc, pos, len("248 500,00"), "[^1]")
	assert.Equal(t, "Razem: **248 500,00 zł**[^1].", out)
}

func TestGenerate_TracksVariablesWithFootnotes(t *testing.T) {
	s := newTestService(t, registrySources(), nil)

	out, err := s.Generate(context.Background(), &models.GenerateRequest{
		TemplateID: "expense_registry",
		Project:    testProject(),
	})
	require.NoError(t, err)

	assert.Greater(t, out.Tracked, 0)
	assert.Contains(t, out.Markdown, "[^1]")
	assert.Contains(t, out.Markdown, "## Przypisy źródłowe")
	assert.Contains(t, out.Markdown, "/variable/expenses_summary/total_gross")

	// footnote ordinals follow document order
	first := strings.Index(out.Markdown, "[^1]")
	second := strings.Index(out.Markdown, "[^2]")
	if second >= 0 {
		assert.Less(t, first, second)
	}
}

func TestGenerate_SourceFailureTolerated(t *testing.T) {
	src := registrySources()
	delete(src.results, "expenses_summary")
	s := newTestService(t, src, nil)

	out, err := s.Generate(context.Background(), &models.GenerateRequest{
		TemplateID: "expense_registry",
		Project:    testProject(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"expenses_summary"}, out.SourceErrors)
	assert.Contains(t, out.Markdown, "# Rejestr kosztów")
}

func TestGenerate_DemoData(t *testing.T) {
	s := newTestService(t, &fakeSources{}, nil)

	out, err := s.Generate(context.Background(), &models.GenerateRequest{
		TemplateID:  "expense_registry",
		UseDemoData: true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.Markdown, "Optotech Sp. z o.o.")
	assert.True(t, out.Model.Fallback)
	assert.Zero(t, out.Tracked)
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	s := newTestService(t, &fakeSources{}, nil)

	_, err := s.Generate(context.Background(), &models.GenerateRequest{TemplateID: "no_such"})
	assert.Error(t, err)
}

func TestGenerate_ModelDraftAccepted(t *testing.T) {
	chain := &fakeChain{
		available: true,
		responses: []*models.ModelResponse{{
			Content:  "# Rejestr kosztów kwalifikowanych B+R: 2025\n\n" + strings.Repeat("Koszty kwalifikowane projektu badawczego. ", 10),
			Provider: "anthropic",
			Model:    "claude-sonnet",
		}},
	}
	s := newTestService(t, registrySources(), chain)

	out, err := s.Generate(context.Background(), &models.GenerateRequest{
		TemplateID: "expense_registry",
		Project:    testProject(),
		UseModel:   true,
	})
	require.NoError(t, err)
	assert.False(t, out.Model.Fallback)
	assert.Equal(t, "anthropic", out.Model.Provider)
	require.Len(t, chain.requests, 1)
	assert.Equal(t, "draft", chain.requests[0].Purpose)
	assert.Contains(t, chain.requests[0].Prompt, "Dane wejściowe")
}

func TestGenerate_ShortModelDraftFallsBack(t *testing.T) {
	chain := &fakeChain{
		available: true,
		responses: []*models.ModelResponse{{Content: "# Krótko", Provider: "openai"}},
	}
	s := newTestService(t, registrySources(), chain)

	out, err := s.Generate(context.Background(), &models.GenerateRequest{
		TemplateID: "expense_registry",
		Project:    testProject(),
		UseModel:   true,
	})
	require.NoError(t, err)
	assert.True(t, out.Model.Fallback)
	assert.Contains(t, out.Markdown, "## 2. Podsumowanie według kategorii ustawowych")
}

func TestGenerate_ExpenseSectionAppended(t *testing.T) {
	s := newTestService(t, &fakeSources{}, nil)

	expense := &pkgmodels.ExpenseRecord{
		ID:            "inv-42",
		InvoiceNumber: "FV/2025/03/112",
		InvoiceDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		VendorName:    "Optotech Sp. z o.o.",
		VendorNIP:     "7811231234",
		NetAmount:     11626.02,
		GrossAmount:   14300.0,
		Category:      pkgmodels.CategoryEquipment,
		Qualified:     true,
	}
	ocr := &pkgmodels.OCRResult{
		Text:       strings.Repeat("FAKTURA VAT FV/2025/03/112 Optotech ", 30),
		Confidence: 92.4,
		Engine:     "tesseract",
	}

	out, err := s.Generate(context.Background(), &models.GenerateRequest{
		TemplateID: "expense_registry",
		Project:    testProject(),
		Expense:    expense,
		OCR:        ocr,
	})
	require.NoError(t, err)

	assert.Contains(t, out.Markdown, "FV/2025/03/112")
	assert.Contains(t, out.Markdown, "### Dokument źródłowy")
	assert.Contains(t, out.Markdown, "pewność 92.4%")
	assert.Contains(t, out.Markdown, "[...]")
	assert.Contains(t, out.Markdown, "/api/invoice/inv-42/variable/gross_amount")
}

func TestPreviewContext(t *testing.T) {
	s := newTestService(t, registrySources(), nil)

	ctx, err := s.PreviewContext(context.Background(), "expense_registry", map[string]interface{}{
		"project_id": "prj-001",
	})
	require.NoError(t, err)

	project, ok := ctx["project"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "System analizy obrazów", project["name"])
	totals, ok := ctx["totals"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 43050.0, totals["gross"])
	assert.NotNil(t, ctx["generated_at"])
}

func TestRefine_AcceptsRevisionKeepingNumbers(t *testing.T) {
	content := "# Rejestr\n\nSuma: 43 050,00 zł, odliczenie 71 800,00 zł."
	chain := &fakeChain{
		available: true,
		responses: []*models.ModelResponse{{
			Content:  "# Rejestr kosztów\n\nSuma kosztów: 43 050,00 zł, łączne odliczenie 71 800,00 zł.",
			Provider: "anthropic", Model: "claude-sonnet",
		}},
	}
	s := newTestService(t, &fakeSources{}, chain)

	issues := []pkgmodels.ValidationIssue{
		{Severity: pkgmodels.SeverityWarning, Code: pkgmodels.CodeMissingSection, Message: "brak sekcji"},
	}
	revised, entries := s.Refine(context.Background(), content, issues, 3)

	require.Len(t, entries, 1)
	assert.Equal(t, pkgmodels.RefineSuccess, entries[0].Status)
	assert.Contains(t, revised, "Suma kosztów")
	assert.Contains(t, chain.requests[0].Prompt, "[WARNING]")
}

func TestRefine_RejectsRevisionDroppingNumbers(t *testing.T) {
	content := "# Rejestr\n\nSuma: 43 050,00 zł."
	chain := &fakeChain{
		available: true,
		responses: []*models.ModelResponse{
			{Content: "# Rejestr\n\nSuma: 44 000,00 zł."},
			{Content: "# Rejestr\n\nSuma: 44 000,00 zł."},
			{Content: "# Rejestr\n\nSuma: 44 000,00 zł."},
		},
	}
	s := newTestService(t, &fakeSources{}, chain)

	issues := []pkgmodels.ValidationIssue{{Severity: pkgmodels.SeverityError, Message: "x"}}
	revised, entries := s.Refine(context.Background(), content, issues, 2)

	assert.Equal(t, content, revised)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, pkgmodels.RefineFailed, entry.Status)
	}
}

func TestRefine_SkippedWithoutChain(t *testing.T) {
	s := newTestService(t, &fakeSources{}, nil)

	issues := []pkgmodels.ValidationIssue{{Severity: pkgmodels.SeverityError, Message: "x"}}
	revised, entries := s.Refine(context.Background(), "# Doc", issues, 3)

	assert.Equal(t, "# Doc", revised)
	require.Len(t, entries, 1)
	assert.Equal(t, pkgmodels.RefineSkipped, entries[0].Status)
}

func TestRefine_NoIssuesNoIterations(t *testing.T) {
	chain := &fakeChain{available: true}
	s := newTestService(t, &fakeSources{}, chain)

	revised, entries := s.Refine(context.Background(), "# Doc", nil, 3)

	assert.Equal(t, "# Doc", revised)
	assert.Empty(t, entries)
	assert.Empty(t, chain.requests)
}

func TestKeepsNumbers_GroupingInsensitive(t *testing.T) {
	assert.True(t, keepsNumbers("Suma 43 050,00", "Suma wynosi 43050,00"))
	assert.False(t, keepsNumbers("Suma 43 050,00", "Suma wynosi 43 051,00"))
	assert.True(t, keepsNumbers("bez liczb", "nadal bez liczb"))
}
