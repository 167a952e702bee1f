package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// VariableHandler exposes the data-source registry and the invoice read
// model as URL-addressable variables. Every scalar a generated document
// cites resolves back to one of these routes.
type VariableHandler struct {
	sources  interfaces.DataSourceService
	invoices interfaces.InvoiceStorage
	baseURL  string
	logger   arbor.ILogger
}

// NewVariableHandler creates the handler. invoices may be nil when no read
// model is configured; invoice routes then answer 404.
func NewVariableHandler(sources interfaces.DataSourceService, invoices interfaces.InvoiceStorage, baseURL string, logger arbor.ILogger) *VariableHandler {
	return &VariableHandler{
		sources:  sources,
		invoices: invoices,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// variableEnvelope is the response shape for a single resolved variable.
// A missing variable answers 200 with a null value, never 404; absence of
// a data point is a fact the caller can verify, not a routing failure.
type variableEnvelope struct {
	Value     interface{} `json:"value"`
	Source    string      `json:"source"`
	Path      string      `json:"path,omitempty"`
	URL       string      `json:"url"`
	FetchedAt string      `json:"fetched_at,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ListVariablesHandler handles GET /api/variables
func (h *VariableHandler) ListVariablesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	descriptors := h.sources.List()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": descriptors,
		"total":   len(descriptors),
	})
}

// ProjectHandler dispatches /api/project/{pid}/... routes:
//
//	GET /api/project/{pid}/variable/{source}            whole source, ?path=field narrows
//	GET /api/project/{pid}/variable/{source}/{field...} path as segments
//	GET /api/project/{pid}/nexus                        full Nexus breakdown
//	GET /api/project/{pid}/documents                    handled by GenerationHandler
func (h *VariableHandler) ProjectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/project/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		WriteError(w, http.StatusBadRequest, "Expected /api/project/{pid}/variable/{source} or /api/project/{pid}/nexus")
		return
	}
	projectID := segments[0]

	switch segments[1] {
	case "nexus":
		h.serveNexus(w, r, projectID)
	case "variable":
		if len(segments) < 3 {
			WriteError(w, http.StatusBadRequest, "Missing source name")
			return
		}
		source := segments[2]
		fieldPath := strings.Join(segments[3:], "/")
		if fieldPath == "" {
			fieldPath = r.URL.Query().Get("path")
		}
		h.serveProjectVariable(w, r, projectID, source, fieldPath)
	default:
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown project route %q", segments[1]))
	}
}

func (h *VariableHandler) serveProjectVariable(w http.ResponseWriter, r *http.Request, projectID, source, fieldPath string) {
	if _, err := h.sources.Get(source); err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown data source %q", source))
		return
	}

	result := h.sources.Fetch(r.Context(), source, map[string]interface{}{"project_id": projectID})

	envelope := variableEnvelope{
		Source: source,
		Path:   fieldPath,
		URL:    common.ProjectVariableURL(h.baseURL, projectID, source, fieldPath),
		Error:  result.Error,
	}
	if !result.FetchedAt.IsZero() {
		envelope.FetchedAt = result.FetchedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	if result.OK() {
		if fieldPath == "" {
			envelope.Value = result.Payload
		} else {
			envelope.Value = resolveField(result, fieldPath)
		}
	}

	WriteJSON(w, http.StatusOK, envelope)
}

// serveNexus answers the full four-component breakdown with one
// verification URL per component, so each figure in a generated document
// can be cited independently.
func (h *VariableHandler) serveNexus(w http.ResponseWriter, r *http.Request, projectID string) {
	result := h.sources.Fetch(r.Context(), "nexus_calculation", map[string]interface{}{"project_id": projectID})
	if !result.OK() {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"project_id": projectID,
			"error":      result.Error,
		})
		return
	}

	row := result.FirstRow()
	components := pkgmodels.NexusComponents{
		A: toFloat(row["a"]),
		B: toFloat(row["b"]),
		C: toFloat(row["c"]),
		D: toFloat(row["d"]),
	}
	breakdown := pkgmodels.NewNexusBreakdown(projectID, 0, components)

	urls := make(map[string]string, 5)
	for _, field := range []string{"a", "b", "c", "d", "nexus"} {
		urls[field] = common.ProjectVariableURL(h.baseURL, projectID, "nexus_calculation", field)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"project_id":        projectID,
		"components":        breakdown.Components,
		"nexus":             breakdown.Nexus,
		"calculated_at":     breakdown.CalculatedAt,
		"verification_urls": urls,
	})
}

// InvoiceHandler dispatches /api/invoice/{id}[...] routes:
//
//	GET /api/invoice/{id}                    full payload, ?format=json|plain_text|ocr
//	GET /api/invoice/{id}/variable/{field}   one invoice-scoped variable
func (h *VariableHandler) InvoiceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/invoice/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		WriteError(w, http.StatusBadRequest, "Missing invoice id")
		return
	}
	invoiceID := segments[0]

	if h.invoices == nil {
		h.writeInvoiceNotFound(w, invoiceID)
		return
	}

	invoice, err := h.invoices.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, interfaces.ErrInvoiceNotFound) {
			h.writeInvoiceNotFound(w, invoiceID)
			return
		}
		h.logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("Invoice lookup failed")
		WriteError(w, http.StatusInternalServerError, "Invoice lookup failed")
		return
	}

	if len(segments) >= 3 && segments[1] == "variable" {
		field := strings.Join(segments[2:], "/")
		h.serveInvoiceVariable(w, invoice, invoiceID, field)
		return
	}
	if len(segments) > 1 {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown invoice route %q", segments[1]))
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		WriteJSON(w, http.StatusOK, invoice)
	case "plain_text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, invoice.PlainText)
	case "ocr":
		if invoice.OCR == nil {
			WriteJSON(w, http.StatusOK, nil)
			return
		}
		WriteJSON(w, http.StatusOK, invoice.OCR)
	default:
		WriteError(w, http.StatusBadRequest, "Supported formats: json, plain_text, ocr")
	}
}

func (h *VariableHandler) serveInvoiceVariable(w http.ResponseWriter, invoice *pkgmodels.Invoice, invoiceID, field string) {
	envelope := variableEnvelope{
		Source: "invoice",
		Path:   field,
		URL:    common.InvoiceVariableURL(h.baseURL, invoiceID, field),
	}
	envelope.Value = invoiceField(invoice, field)
	WriteJSON(w, http.StatusOK, envelope)
}

func (h *VariableHandler) writeInvoiceNotFound(w http.ResponseWriter, invoiceID string) {
	WriteJSON(w, http.StatusNotFound, map[string]string{
		"detail": fmt.Sprintf("Nie znaleziono faktury o identyfikatorze %s", invoiceID),
	})
}

// resolveField answers a field path against a fetch result: derived
// variables first (they carry the aggregates), then the first payload row.
func resolveField(result *models.DataSourceResult, fieldPath string) interface{} {
	if v, ok := result.Variable(fieldPath); ok {
		return v
	}
	if row := result.FirstRow(); row != nil {
		if v, ok := row[fieldPath]; ok {
			return v
		}
	}
	return nil
}

// invoiceField resolves a field name against the invoice's expense record,
// falling back to the invoice envelope itself. Resolution goes through the
// JSON shape so API field names match what generated footnotes cite.
func invoiceField(invoice *pkgmodels.Invoice, field string) interface{} {
	if invoice.Expense != nil {
		if v, ok := structField(invoice.Expense, field); ok {
			return v
		}
	}
	if invoice.OCR != nil && field == "ocr_confidence" {
		return invoice.OCR.Confidence
	}
	if v, ok := structField(invoice, field); ok {
		return v
	}
	return nil
}

func structField(v interface{}, field string) (interface{}, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	value, ok := m[field]
	return value, ok
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
