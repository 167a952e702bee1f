package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
)

// SchedulerHandler exposes the background job table: FX refresh, version
// pruning, and summary regeneration.
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// JobsHandler handles GET /api/scheduler/jobs - lists all registered jobs
func (h *SchedulerHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	statuses := h.scheduler.GetAllJobStatuses()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.scheduler.IsRunning(),
		"jobs":    statuses,
	})
}

// JobActionHandler dispatches POST /api/scheduler/jobs/{name}/{action}
// where action is trigger, enable, or disable. PUT with the same prefix
// updates the job's cron schedule.
func (h *SchedulerHandler) JobActionHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/scheduler/jobs/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		WriteError(w, http.StatusBadRequest, "Missing job name")
		return
	}
	name := segments[0]

	if r.Method == http.MethodGet && len(segments) == 1 {
		status, err := h.scheduler.GetJobStatus(name)
		if err != nil {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown job %q", name))
			return
		}
		WriteJSON(w, http.StatusOK, status)
		return
	}

	if r.Method == http.MethodPut && len(segments) == 1 {
		h.updateSchedule(w, r, name)
		return
	}

	if r.Method != http.MethodPost || len(segments) != 2 {
		WriteError(w, http.StatusMethodNotAllowed, "Expected POST /api/scheduler/jobs/{name}/{action}")
		return
	}

	var err error
	switch segments[1] {
	case "trigger":
		err = h.scheduler.TriggerJob(name)
	case "enable":
		err = h.scheduler.EnableJob(name)
	case "disable":
		err = h.scheduler.DisableJob(name)
	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown action %q", segments[1]))
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("job", name).Str("action", segments[1]).Msg("Scheduler action failed")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"job":    name,
		"action": segments[1],
	})
}

func (h *SchedulerHandler) updateSchedule(w http.ResponseWriter, r *http.Request, name string) {
	var req struct {
		Schedule string `json:"schedule"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Schedule == "" {
		WriteError(w, http.StatusBadRequest, "schedule is required")
		return
	}

	if err := h.scheduler.UpdateJobSchedule(name, req.Schedule); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"job":      name,
		"schedule": req.Schedule,
	})
}
