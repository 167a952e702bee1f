package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/services/events"
	"github.com/ternarybob/scribo/internal/services/scheduler"
)

func newSchedulerHandler(t *testing.T) (*SchedulerHandler, *scheduler.Service, *int32) {
	t.Helper()
	logger := arbor.NewLogger()
	svc := scheduler.NewService(events.NewService(logger), logger)

	var runs int32
	err := svc.RegisterJob("fx_refresh", "0 6 * * *", "NBP exchange-rate cache refresh", func() error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	require.NoError(t, err)

	return NewSchedulerHandler(svc, logger), svc, &runs
}

func TestJobsListing(t *testing.T) {
	handler, _, _ := newSchedulerHandler(t)

	req := httptest.NewRequest("GET", "/api/scheduler/jobs", nil)
	rec := httptest.NewRecorder()
	handler.JobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Running bool                       `json:"running"`
		Jobs    map[string]json.RawMessage `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.False(t, response.Running)
	assert.Contains(t, response.Jobs, "fx_refresh")
}

func TestJobStatusByName(t *testing.T) {
	handler, _, _ := newSchedulerHandler(t)

	req := httptest.NewRequest("GET", "/api/scheduler/jobs/fx_refresh", nil)
	rec := httptest.NewRecorder()
	handler.JobActionHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/api/scheduler/jobs/bogus", nil)
	rec = httptest.NewRecorder()
	handler.JobActionHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobTrigger(t *testing.T) {
	handler, _, runs := newSchedulerHandler(t)

	req := httptest.NewRequest("POST", "/api/scheduler/jobs/fx_refresh/trigger", nil)
	rec := httptest.NewRecorder()
	handler.JobActionHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(runs))
}

func TestJobUnknownAction(t *testing.T) {
	handler, _, _ := newSchedulerHandler(t)

	req := httptest.NewRequest("POST", "/api/scheduler/jobs/fx_refresh/explode", nil)
	rec := httptest.NewRecorder()
	handler.JobActionHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobScheduleUpdate(t *testing.T) {
	handler, svc, _ := newSchedulerHandler(t)

	body := bytes.NewReader([]byte(`{"schedule":"30 7 * * *"}`))
	req := httptest.NewRequest("PUT", "/api/scheduler/jobs/fx_refresh", body)
	rec := httptest.NewRecorder()
	handler.JobActionHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	status, err := svc.GetJobStatus("fx_refresh")
	require.NoError(t, err)
	assert.Equal(t, "30 7 * * *", status.Schedule)
}

func TestJobScheduleUpdateRejectsInvalid(t *testing.T) {
	handler, _, _ := newSchedulerHandler(t)

	body := bytes.NewReader([]byte(`{"schedule":"not-cron"}`))
	req := httptest.NewRequest("PUT", "/api/scheduler/jobs/fx_refresh", body)
	rec := httptest.NewRecorder()
	handler.JobActionHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
