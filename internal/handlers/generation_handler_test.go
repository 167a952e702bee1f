package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/versions"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// mockOrchestrator implements interfaces.OrchestratorService
type mockOrchestrator struct {
	generateFunc func(ctx context.Context, input *pkgmodels.ProjectInput, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error)
	expenseFunc  func(ctx context.Context, input *pkgmodels.ProjectInput, invoiceID string, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error)
}

func (m *mockOrchestrator) GenerateDocumentation(ctx context.Context, input *pkgmodels.ProjectInput, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, input, opts)
	}
	return &pkgmodels.GenerationResult{ProjectID: input.ProjectID}, nil
}

func (m *mockOrchestrator) GenerateExpenseDocument(ctx context.Context, input *pkgmodels.ProjectInput, invoiceID string, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
	if m.expenseFunc != nil {
		return m.expenseFunc(ctx, input, invoiceID, opts)
	}
	return &pkgmodels.GenerationResult{ProjectID: input.ProjectID}, nil
}

// mockGenerationStorage implements interfaces.GenerationStorage
type mockGenerationStorage struct {
	records map[string]*models.GenerationRecord
}

func (m *mockGenerationStorage) SaveRecord(ctx context.Context, record *models.GenerationRecord) error {
	if m.records == nil {
		m.records = map[string]*models.GenerationRecord{}
	}
	m.records[record.ID] = record
	return nil
}

func (m *mockGenerationStorage) GetRecord(ctx context.Context, id string) (*models.GenerationRecord, error) {
	if record, ok := m.records[id]; ok {
		return record, nil
	}
	return nil, fmt.Errorf("record %s not found", id)
}

func (m *mockGenerationStorage) ListRecords(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	var out []*models.GenerationRecord
	for _, record := range m.records {
		out = append(out, record)
	}
	return out, nil
}

func (m *mockGenerationStorage) ListRecordsByProject(ctx context.Context, projectID string, limit int) ([]*models.GenerationRecord, error) {
	var out []*models.GenerationRecord
	for _, record := range m.records {
		if record.ProjectID == projectID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *mockGenerationStorage) CountRecords(ctx context.Context) (int, error) {
	return len(m.records), nil
}

func (m *mockGenerationStorage) ClearAll(ctx context.Context) error {
	m.records = nil
	return nil
}

func newVersionStore(t *testing.T) interfaces.VersionService {
	t.Helper()
	svc, err := versions.NewService(versions.Config{BaseDir: t.TempDir()}, arbor.NewLogger())
	require.NoError(t, err)
	return svc
}

func generateBody(t *testing.T, req generateRequest) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestGenerateRequiresProjectID(t *testing.T) {
	handler := NewGenerationHandler(&mockOrchestrator{}, &mockGenerationStorage{}, newVersionStore(t), arbor.NewLogger())

	body := generateBody(t, generateRequest{})
	req := httptest.NewRequest("POST", "/api/generate", body)
	rec := httptest.NewRecorder()
	handler.GenerateHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateSuccess(t *testing.T) {
	orch := &mockOrchestrator{
		generateFunc: func(ctx context.Context, input *pkgmodels.ProjectInput, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
			assert.True(t, opts.UseModel)
			// zero in the request means "use the configured default"
			assert.Equal(t, -1, opts.MaxIterations)
			return &pkgmodels.GenerationResult{
				ProjectID: input.ProjectID,
				Status:    pkgmodels.GenerationPassed,
			}, nil
		},
	}
	handler := NewGenerationHandler(orch, &mockGenerationStorage{}, newVersionStore(t), arbor.NewLogger())

	body := generateBody(t, generateRequest{
		Project:  pkgmodels.ProjectInput{ProjectID: "PROJ-1"},
		UseModel: true,
	})
	req := httptest.NewRequest("POST", "/api/generate", body)
	rec := httptest.NewRecorder()
	handler.GenerateHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result pkgmodels.GenerationResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "PROJ-1", result.ProjectID)
	assert.Equal(t, pkgmodels.GenerationPassed, result.Status)
}

func TestGenerateUnknownInvoice(t *testing.T) {
	orch := &mockOrchestrator{
		expenseFunc: func(ctx context.Context, input *pkgmodels.ProjectInput, invoiceID string, opts interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
			return nil, interfaces.ErrInvoiceNotFound
		},
	}
	handler := NewGenerationHandler(orch, &mockGenerationStorage{}, newVersionStore(t), arbor.NewLogger())

	body := generateBody(t, generateRequest{
		Project:   pkgmodels.ProjectInput{ProjectID: "PROJ-1"},
		InvoiceID: "FV-MISSING",
	})
	req := httptest.NewRequest("POST", "/api/generate", body)
	rec := httptest.NewRecorder()
	handler.GenerateHandler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "Nie znaleziono faktury o identyfikatorze FV-MISSING", response["detail"])
}

func TestGenerationsListAndGet(t *testing.T) {
	records := &mockGenerationStorage{}
	require.NoError(t, records.SaveRecord(context.Background(), &models.GenerationRecord{ID: "gen-1", ProjectID: "PROJ-1"}))
	handler := NewGenerationHandler(&mockOrchestrator{}, records, newVersionStore(t), arbor.NewLogger())

	req := httptest.NewRequest("GET", "/api/generations", nil)
	rec := httptest.NewRecorder()
	handler.GenerationsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	assert.Len(t, listing["generations"], 1)

	req = httptest.NewRequest("GET", "/api/generations/gen-1", nil)
	rec = httptest.NewRecorder()
	handler.GenerationsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/api/generations/gen-missing", nil)
	rec = httptest.NewRecorder()
	handler.GenerationsHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectDocumentsListing(t *testing.T) {
	store := newVersionStore(t)
	_, err := store.Commit("PROJ-1/karta_projektu.md", []byte("# Karta"), "initial")
	require.NoError(t, err)

	handler := NewGenerationHandler(&mockOrchestrator{}, &mockGenerationStorage{}, store, arbor.NewLogger())

	req := httptest.NewRequest("GET", "/api/project/PROJ-1/documents", nil)
	rec := httptest.NewRecorder()
	handler.ProjectDocumentsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Documents []pkgmodels.DocumentRecord `json:"documents"`
		Total     int                        `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Equal(t, 1, response.Total)
	assert.Equal(t, "karta_projektu.md", response.Documents[0].Path)
}

func TestProjectDocumentLatestAndVersion(t *testing.T) {
	store := newVersionStore(t)
	first, err := store.Commit("PROJ-1/karta_projektu.md", []byte("draft one"), "v1")
	require.NoError(t, err)
	_, err = store.Commit("PROJ-1/karta_projektu.md", []byte("draft two"), "v2")
	require.NoError(t, err)

	handler := NewGenerationHandler(&mockOrchestrator{}, &mockGenerationStorage{}, store, arbor.NewLogger())

	// Latest revision by default
	req := httptest.NewRequest("GET", "/api/project/PROJ-1/documents/karta_projektu.md", nil)
	rec := httptest.NewRecorder()
	handler.ProjectDocumentsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft two", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.NotEmpty(t, rec.Header().Get("X-Document-Version"))

	// Pinned revision via ?version=
	req = httptest.NewRequest("GET", "/api/project/PROJ-1/documents/karta_projektu.md?version="+first.Version, nil)
	rec = httptest.NewRecorder()
	handler.ProjectDocumentsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft one", rec.Body.String())
	assert.Equal(t, first.Version, rec.Header().Get("X-Document-Version"))
}

func TestProjectDocumentHistory(t *testing.T) {
	store := newVersionStore(t)
	_, err := store.Commit("PROJ-1/karta_projektu.md", []byte("draft one"), "v1")
	require.NoError(t, err)
	_, err = store.Commit("PROJ-1/karta_projektu.md", []byte("draft two"), "v2")
	require.NoError(t, err)

	handler := NewGenerationHandler(&mockOrchestrator{}, &mockGenerationStorage{}, store, arbor.NewLogger())

	req := httptest.NewRequest("GET", "/api/project/PROJ-1/documents/karta_projektu.md/history", nil)
	rec := httptest.NewRecorder()
	handler.ProjectDocumentsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Versions []pkgmodels.VersionInfo `json:"versions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Len(t, response.Versions, 2)
	assert.Equal(t, "v2", response.Versions[0].Message)
}

func TestProjectDocumentUnknown(t *testing.T) {
	handler := NewGenerationHandler(&mockOrchestrator{}, &mockGenerationStorage{}, newVersionStore(t), arbor.NewLogger())

	req := httptest.NewRequest("GET", "/api/project/PROJ-1/documents/nope.md", nil)
	rec := httptest.NewRecorder()
	handler.ProjectDocumentsHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
