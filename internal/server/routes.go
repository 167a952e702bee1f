package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (log and progress streaming)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Variable API: every scalar a generated document cites is addressable
	mux.HandleFunc("/api/variables", s.app.VariableHandler.ListVariablesHandler)
	mux.HandleFunc("/api/project/", s.handleProjectRoutes)
	mux.HandleFunc("/api/invoice/", s.app.VariableHandler.InvoiceHandler)

	// Document generation API (templates, demos, previews)
	mux.HandleFunc("/doc-generator/templates", s.app.DocGenHandler.TemplatesHandler)
	mux.HandleFunc("/doc-generator/templates/", s.app.DocGenHandler.TemplatesHandler)
	mux.HandleFunc("/doc-generator/demo/", s.app.DocGenHandler.DemoHandler)
	mux.HandleFunc("/doc-generator/preview-data", s.app.DocGenHandler.PreviewDataHandler)
	mux.HandleFunc("/doc-generator/generate", s.app.DocGenHandler.GenerateHandler)
	mux.HandleFunc("/doc-generator/render-html", s.app.DocGenHandler.RenderHTMLHandler)

	// Full pipeline: generate, validate, refine, render, commit
	mux.HandleFunc("/api/generate", s.app.GenerationHandler.GenerateHandler)
	mux.HandleFunc("/api/generations", s.app.GenerationHandler.GenerationsHandler)
	mux.HandleFunc("/api/generations/", s.app.GenerationHandler.GenerationsHandler)

	// Key/value store (API keys, SMTP credentials, operator settings)
	mux.HandleFunc("/api/kv", s.handleKVCollection)
	mux.HandleFunc("/api/kv/", s.handleKVItem)

	// Scheduler
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.JobsHandler)
	mux.HandleFunc("/api/scheduler/jobs/", s.app.SchedulerHandler.JobActionHandler)

	// System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/config", s.app.ConfigHandler.GetConfig)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleProjectRoutes splits /api/project/{pid}/... between the variable
// handler and the versioned document store.
func (s *Server) handleProjectRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/project/")
	segments := strings.SplitN(strings.Trim(rest, "/"), "/", 3)
	if len(segments) >= 2 && segments[1] == "documents" {
		s.app.GenerationHandler.ProjectDocumentsHandler(w, r)
		return
	}
	s.app.VariableHandler.ProjectHandler(w, r)
}

// handleKVCollection routes /api/kv (list and create)
func (s *Server) handleKVCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.KVHandler.ListKVHandler, s.app.KVHandler.CreateKVHandler)
}

// handleKVItem routes /api/kv/{key} (get, upsert, delete)
func (s *Server) handleKVItem(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r, s.app.KVHandler.GetKVHandler, s.app.KVHandler.UpdateKVHandler, s.app.KVHandler.DeleteKVHandler)
}
