package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// GenerationHandler runs the full documentation pipeline and serves the
// run records and versioned artifacts it leaves behind.
type GenerationHandler struct {
	orchestrator interfaces.OrchestratorService
	records      interfaces.GenerationStorage
	versions     interfaces.VersionService
	logger       arbor.ILogger
}

func NewGenerationHandler(orchestrator interfaces.OrchestratorService, records interfaces.GenerationStorage, versions interfaces.VersionService, logger arbor.ILogger) *GenerationHandler {
	return &GenerationHandler{
		orchestrator: orchestrator,
		records:      records,
		versions:     versions,
		logger:       logger,
	}
}

// generateRequest is the POST /api/generate body: the full project input
// plus run options. InvoiceID switches to the single-expense flow.
type generateRequest struct {
	Project       pkgmodels.ProjectInput `json:"project"`
	InvoiceID     string                 `json:"invoice_id,omitempty"`
	UseModel      bool                   `json:"use_model"`
	RenderPDF     bool                   `json:"render_pdf"`
	MaxIterations int                    `json:"max_iterations,omitempty"`
	NotifyEmail   string                 `json:"notify_email,omitempty"`
	StopOnError   bool                   `json:"stop_on_error"`
}

// GenerateHandler handles POST /api/generate. The pipeline contains its own
// failures: a run that validates badly still answers 200 with status failed,
// only malformed input and internal faults produce error codes.
func (h *GenerationHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req generateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Project.ProjectID == "" {
		WriteError(w, http.StatusBadRequest, "project.project_id is required")
		return
	}

	opts := interfaces.OrchestratorOptions{
		UseModel:      req.UseModel,
		RenderPDF:     req.RenderPDF,
		MaxIterations: req.MaxIterations,
		NotifyEmail:   req.NotifyEmail,
		StopOnError:   req.StopOnError,
	}
	if req.MaxIterations == 0 {
		opts.MaxIterations = -1
	}

	var (
		result *pkgmodels.GenerationResult
		err    error
	)
	if req.InvoiceID != "" {
		result, err = h.orchestrator.GenerateExpenseDocument(r.Context(), &req.Project, req.InvoiceID, opts)
	} else {
		result, err = h.orchestrator.GenerateDocumentation(r.Context(), &req.Project, opts)
	}
	if err != nil {
		if errors.Is(err, interfaces.ErrInvoiceNotFound) {
			WriteJSON(w, http.StatusNotFound, map[string]string{
				"detail": fmt.Sprintf("Nie znaleziono faktury o identyfikatorze %s", req.InvoiceID),
			})
			return
		}
		h.logger.Error().Err(err).Str("project_id", req.Project.ProjectID).Msg("Documentation run rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// GenerationsHandler handles GET /api/generations and
// GET /api/generations/{id}
func (h *GenerationHandler) GenerationsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/generations"), "/")
	if id != "" {
		record, err := h.records.GetRecord(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown generation %q", id))
			return
		}
		WriteJSON(w, http.StatusOK, record)
		return
	}

	limit := GetLimitParam(r, 50, 500)
	projectID := r.URL.Query().Get("project_id")

	var (
		records interface{}
		err     error
	)
	if projectID != "" {
		records, err = h.records.ListRecordsByProject(r.Context(), projectID, limit)
	} else {
		records, err = h.records.ListRecords(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Generation record listing failed")
		WriteError(w, http.StatusInternalServerError, "Failed to list generation records")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"generations": records,
		"limit":       limit,
	})
}

// ProjectDocumentsHandler serves the versioned artifact store for one
// project:
//
//	GET /api/project/{pid}/documents                      artifact listing
//	GET /api/project/{pid}/documents/{file}               current content (?version=tag for a revision)
//	GET /api/project/{pid}/documents/{file}/history       revision list, newest first
func (h *GenerationHandler) ProjectDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/project/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) < 2 || segments[1] != "documents" {
		WriteError(w, http.StatusBadRequest, "Expected /api/project/{pid}/documents")
		return
	}
	projectID := segments[0]

	if len(segments) == 2 {
		artifacts, err := h.versions.ListArtifacts(projectID)
		if err != nil {
			h.logger.Error().Err(err).Str("project_id", projectID).Msg("Artifact listing failed")
			WriteError(w, http.StatusInternalServerError, "Failed to list artifacts")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"project_id": projectID,
			"documents":  artifacts,
			"total":      len(artifacts),
		})
		return
	}

	tail := segments[2:]
	wantHistory := tail[len(tail)-1] == "history" && len(tail) > 1
	if wantHistory {
		tail = tail[:len(tail)-1]
	}
	artifactPath := path.Join(append([]string{projectID}, tail...)...)

	if wantHistory {
		history, err := h.versions.History(artifactPath, GetLimitParam(r, 0, 0))
		if err != nil {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown artifact %q", artifactPath))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"path":     artifactPath,
			"versions": history,
		})
		return
	}

	version := r.URL.Query().Get("version")
	if version == "" {
		history, err := h.versions.History(artifactPath, 1)
		if err != nil || len(history) == 0 {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown artifact %q", artifactPath))
			return
		}
		version = history[0].Version
	}

	content, err := h.versions.ReadAt(artifactPath, version)
	if err != nil {
		if errors.Is(err, interfaces.ErrVersionNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown version %q of %q", version, artifactPath))
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to read revision")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(artifactPath))
	w.Header().Set("X-Document-Version", version)
	w.Write(content)
}

func contentTypeFor(artifactPath string) string {
	switch strings.ToLower(path.Ext(artifactPath)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
