package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/status"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	statusService *status.Service
	invoices      interfaces.InvoiceStorage
	models        interfaces.ModelService
	logger        arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(statusService *status.Service, invoices interfaces.InvoiceStorage, models interfaces.ModelService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		invoices:      invoices,
		models:        models,
		logger:        logger,
	}
}

// GetStatusHandler handles GET /api/status. Component checks are best
// effort: a dead invoice store reports degraded, it never fails the route.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	result := h.statusService.GetStatus()

	components := map[string]interface{}{}

	if h.invoices != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.invoices.Ping(ctx); err != nil {
			components["invoice_store"] = map[string]interface{}{"healthy": false, "error": err.Error()}
		} else {
			components["invoice_store"] = map[string]interface{}{"healthy": true}
		}
	} else {
		components["invoice_store"] = map[string]interface{}{"healthy": false, "error": "not configured"}
	}

	if h.models != nil {
		components["model_chain"] = map[string]interface{}{
			"available": h.models.Available(),
			"endpoints": len(h.models.Endpoints()),
		}
	}

	result["components"] = components
	WriteJSON(w, http.StatusOK, result)
}
