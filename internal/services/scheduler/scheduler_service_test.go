package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/versions"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

func TestRegisterAndTrigger(t *testing.T) {
	svc := NewService(nil, arbor.NewLogger())

	var runs int32
	require.NoError(t, svc.RegisterJob("demo", "0 3 * * *", "test job", func() error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))

	require.NoError(t, svc.TriggerJob("demo"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	status, err := svc.GetJobStatus("demo")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.NotNil(t, status.LastRun)
	assert.Empty(t, status.LastError)
}

func TestTriggerRecordsError(t *testing.T) {
	svc := NewService(nil, arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("broken", "0 3 * * *", "", func() error {
		return fmt.Errorf("disk full")
	}))

	err := svc.TriggerJob("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	status, err := svc.GetJobStatus("broken")
	require.NoError(t, err)
	assert.Equal(t, "disk full", status.LastError)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := NewService(nil, arbor.NewLogger())

	assert.Error(t, svc.RegisterJob("", "0 3 * * *", "", func() error { return nil }))
	assert.Error(t, svc.RegisterJob("x", "not-cron", "", func() error { return nil }))
	assert.Error(t, svc.RegisterJob("x", "0 3 * * *", "", nil))

	require.NoError(t, svc.RegisterJob("x", "0 3 * * *", "", func() error { return nil }))
	assert.Error(t, svc.RegisterJob("x", "0 3 * * *", "", func() error { return nil }), "duplicate name")
}

func TestEnableDisable(t *testing.T) {
	svc := NewService(nil, arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("j", "@daily", "", func() error { return nil }))
	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.True(t, svc.IsRunning())

	require.NoError(t, svc.DisableJob("j"))
	status, _ := svc.GetJobStatus("j")
	assert.False(t, status.Enabled)
	assert.Nil(t, status.NextRun)

	require.NoError(t, svc.EnableJob("j"))
	status, _ = svc.GetJobStatus("j")
	assert.True(t, status.Enabled)
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now()))

	assert.Error(t, svc.EnableJob("missing"))
}

func TestUpdateJobSchedule(t *testing.T) {
	svc := NewService(nil, arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("j", "0 3 * * *", "", func() error { return nil }))

	assert.Error(t, svc.UpdateJobSchedule("j", "nope"))
	require.NoError(t, svc.UpdateJobSchedule("j", "30 4 * * *"))

	status, _ := svc.GetJobStatus("j")
	assert.Equal(t, "30 4 * * *", status.Schedule)
}

func TestTriggerPublishesEvent(t *testing.T) {
	bus := &captureBus{}
	svc := NewService(bus, arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("j", "@daily", "", func() error { return nil }))
	require.NoError(t, svc.TriggerJob("j"))

	require.Len(t, bus.events, 1)
	assert.Equal(t, interfaces.EventScheduleTriggered, bus.events[0].Type)
	payload := bus.events[0].Payload.(map[string]interface{})
	assert.Equal(t, "j", payload["job"])
}

type captureBus struct {
	events []interfaces.Event
}

func (c *captureBus) Subscribe(interfaces.EventType, interfaces.EventHandler) error { return nil }

func (c *captureBus) Unsubscribe(interfaces.EventType, interfaces.EventHandler) error { return nil }

func (c *captureBus) Publish(_ context.Context, e interfaces.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *captureBus) PublishSync(ctx context.Context, e interfaces.Event) error {
	return c.Publish(ctx, e)
}

func (c *captureBus) Close() error { return nil }

// --- default job handlers ---

type fxSources struct {
	mid      float64
	date     string
	fail     bool
	requests []map[string]interface{}
}

func (f *fxSources) Fetch(_ context.Context, name string, params map[string]interface{}) *models.DataSourceResult {
	f.requests = append(f.requests, params)
	if f.fail {
		return &models.DataSourceResult{Source: name, Error: "404 NotFound"}
	}
	return &models.DataSourceResult{
		Source: name,
		Payload: map[string]interface{}{
			"code": params["currency"],
			"rates": []interface{}{
				map[string]interface{}{"no": "162/A/NBP/2025", "effectiveDate": f.date, "mid": f.mid},
			},
		},
	}
}

func (f *fxSources) FetchMultiple(ctx context.Context, configs []models.SourceFetchConfig) *models.SourceResults {
	out := models.NewSourceResults()
	for _, cfg := range configs {
		out.Add(cfg.Source, f.Fetch(ctx, cfg.Source, cfg.Params))
	}
	return out
}

func (f *fxSources) List() []models.DataSourceDescriptor { return nil }

func (f *fxSources) Get(string) (*models.DataSourceDescriptor, error) { return nil, nil }

type memoryKV struct {
	values map[string]string
}

func newMemoryKV() *memoryKV { return &memoryKV{values: map[string]string{}} }

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", interfaces.ErrKeyNotFound
}

func (m *memoryKV) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	v, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &interfaces.KeyValuePair{Key: key, Value: v}, nil
}

func (m *memoryKV) Set(_ context.Context, key, value, _ string) error {
	m.values[key] = value
	return nil
}

func (m *memoryKV) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	_, existed := m.values[key]
	return !existed, m.Set(ctx, key, value, description)
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memoryKV) DeleteAll(context.Context) error {
	m.values = map[string]string{}
	return nil
}

func (m *memoryKV) List(context.Context) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	for k, v := range m.values {
		pairs = append(pairs, interfaces.KeyValuePair{Key: k, Value: v})
	}
	return pairs, nil
}

func (m *memoryKV) GetAll(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memoryKV) ListByPrefix(_ context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	for k, v := range m.values {
		if strings.HasPrefix(k, prefix) {
			pairs = append(pairs, interfaces.KeyValuePair{Key: k, Value: v})
		}
	}
	return pairs, nil
}

func TestRefreshFXRates(t *testing.T) {
	kv := newMemoryKV()
	sources := &fxSources{mid: 4.2757, date: "2025-08-22"}

	require.NoError(t, refreshFXRates(sources, kv))

	assert.Equal(t, "4.2757", kv.values["fx_rate_EUR"])
	assert.Equal(t, "2025-08-22", kv.values["fx_rate_EUR_date"])
	assert.Equal(t, "4.2757", kv.values["fx_rate_USD"])
	assert.Len(t, sources.requests, 2)
}

func TestRefreshFXRatesCustomCurrencies(t *testing.T) {
	kv := newMemoryKV()
	kv.values[fxCurrenciesKey] = "chf, gbp"
	sources := &fxSources{mid: 4.81, date: "2025-08-22"}

	require.NoError(t, refreshFXRates(sources, kv))
	assert.Contains(t, kv.values, "fx_rate_CHF")
	assert.Contains(t, kv.values, "fx_rate_GBP")
	assert.NotContains(t, kv.values, "fx_rate_EUR")
}

func TestRefreshFXRatesSkipsFreshCache(t *testing.T) {
	kv := newMemoryKV()
	kv.values[fxCurrenciesKey] = "EUR"
	// a rate dated today can never be stale
	kv.values["fx_rate_EUR_date"] = time.Now().Format("2006-01-02")
	sources := &fxSources{mid: 4.0, date: "2025-08-22"}

	require.NoError(t, refreshFXRates(sources, kv))
	assert.Empty(t, sources.requests)
}

func TestRefreshFXRatesReportsFailures(t *testing.T) {
	kv := newMemoryKV()
	kv.values[fxCurrenciesKey] = "EUR"
	sources := &fxSources{fail: true}

	err := refreshFXRates(sources, kv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EUR")
	assert.Contains(t, err.Error(), "404")
}

func TestExtractMidRate(t *testing.T) {
	mid, date, ok := extractMidRate(map[string]interface{}{
		"rates": []interface{}{
			map[string]interface{}{"mid": 4.20, "effectiveDate": "2025-08-21"},
			map[string]interface{}{"mid": 4.25, "effectiveDate": "2025-08-22"},
		},
	})
	require.True(t, ok)
	assert.Equal(t, 4.25, mid, "newest quote wins")
	assert.Equal(t, "2025-08-22", date)

	_, _, ok = extractMidRate(nil)
	assert.False(t, ok)
	_, _, ok = extractMidRate(map[string]interface{}{"rates": []interface{}{}})
	assert.False(t, ok)
}

type recordLister struct {
	rows []*models.GenerationRecord
}

func (r *recordLister) SaveRecord(context.Context, *models.GenerationRecord) error { return nil }

func (r *recordLister) GetRecord(context.Context, string) (*models.GenerationRecord, error) {
	return nil, nil
}

func (r *recordLister) ListRecords(context.Context, int) ([]*models.GenerationRecord, error) {
	return r.rows, nil
}

func (r *recordLister) ListRecordsByProject(context.Context, string, int) ([]*models.GenerationRecord, error) {
	return nil, nil
}

func (r *recordLister) CountRecords(context.Context) (int, error) { return len(r.rows), nil }

func (r *recordLister) ClearAll(context.Context) error { return nil }

func TestPruneVersions(t *testing.T) {
	logger := arbor.NewLogger()
	store, err := versions.NewService(versions.Config{BaseDir: t.TempDir()}, logger)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.Commit("prj-1/BR_SUMMARY_20250331.md", []byte(fmt.Sprintf("rev %d", i)), "test")
		require.NoError(t, err)
	}
	records := &recordLister{rows: []*models.GenerationRecord{{ID: "g1", ProjectID: "prj-1"}}}

	require.NoError(t, pruneVersions(store, records, 2))

	history, err := store.History("prj-1/BR_SUMMARY_20250331.md", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

type regenOrchestrator struct {
	calls  int
	input  *pkgmodels.ProjectInput
	status pkgmodels.GenerationStatus
}

func (o *regenOrchestrator) GenerateDocumentation(_ context.Context, input *pkgmodels.ProjectInput, _ interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
	o.calls++
	o.input = input
	return &pkgmodels.GenerationResult{Status: o.status}, nil
}

func (o *regenOrchestrator) GenerateExpenseDocument(context.Context, *pkgmodels.ProjectInput, string, interfaces.OrchestratorOptions) (*pkgmodels.GenerationResult, error) {
	return nil, fmt.Errorf("not used")
}

func TestRegenerateSummary(t *testing.T) {
	kv := newMemoryKV()
	orch := &regenOrchestrator{status: pkgmodels.GenerationPassed}

	// no stored input is a no-op
	require.NoError(t, regenerateSummary(orch, kv))
	assert.Equal(t, 0, orch.calls)

	input := pkgmodels.ProjectInput{ProjectID: "prj-7", Name: "Projekt", FiscalYear: 2025}
	data, err := json.Marshal(input)
	require.NoError(t, err)
	kv.values[regenInputKey] = string(data)

	require.NoError(t, regenerateSummary(orch, kv))
	assert.Equal(t, 1, orch.calls)
	assert.Equal(t, "prj-7", orch.input.ProjectID)

	orch.status = pkgmodels.GenerationFailed
	assert.Error(t, regenerateSummary(orch, kv))

	kv.values[regenInputKey] = "{not json"
	assert.Error(t, regenerateSummary(orch, kv))
}

func TestRegisterDefaultJobs(t *testing.T) {
	cfg := common.NewDefaultConfig()
	svc := NewService(nil, arbor.NewLogger())

	store, err := versions.NewService(versions.Config{BaseDir: t.TempDir()}, arbor.NewLogger())
	require.NoError(t, err)

	require.NoError(t, RegisterDefaultJobs(svc, cfg, JobDeps{
		Sources:      &fxSources{mid: 4.0, date: "2025-08-22"},
		KV:           newMemoryKV(),
		Versions:     store,
		Records:      &recordLister{},
		Orchestrator: &regenOrchestrator{status: pkgmodels.GenerationPassed},
	}))

	statuses := svc.GetAllJobStatuses()
	assert.Contains(t, statuses, JobFXRefresh)
	assert.Contains(t, statuses, JobVersionPrune)
	assert.Contains(t, statuses, JobSummaryRegen)
	assert.Equal(t, cfg.Schedule.FXRefresh, statuses[JobFXRefresh].Schedule)
}

func TestRegisterDefaultJobsSkipsMissingDeps(t *testing.T) {
	cfg := common.NewDefaultConfig()
	svc := NewService(nil, arbor.NewLogger())

	require.NoError(t, RegisterDefaultJobs(svc, cfg, JobDeps{}))
	assert.Empty(t, svc.GetAllJobStatuses())
}
