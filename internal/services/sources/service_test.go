package sources

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

type stubRunner struct {
	payload interface{}
	query   string
	err     error
	delay   time.Duration
	calls   int32
}

func (r *stubRunner) Run(ctx context.Context, params map[string]interface{}) (interface{}, string, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, r.query, ctx.Err()
		}
	}
	return r.payload, r.query, r.err
}

func TestDefaultSourcesRegistered(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)

	var names []string
	for _, d := range svc.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"project_info",
		"expenses_summary",
		"expenses_by_category",
		"timesheet_summary",
		"nexus_calculation",
		"revenues",
		"nbp_exchange_rate",
	}, names)
}

func TestDefaultSourceKinds(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)

	nexus, err := svc.Get("nexus_calculation")
	require.NoError(t, err)
	assert.Equal(t, models.SourceKindSQL, nexus.Kind)
	assert.Contains(t, nexus.Params, "project_id")

	nbp, err := svc.Get("nbp_exchange_rate")
	require.NoError(t, err)
	assert.Equal(t, models.SourceKindREST, nbp.Kind)
	assert.Contains(t, nbp.Params, "currency")
	assert.Contains(t, nbp.Params, "date")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)

	err := svc.Register(models.DataSourceDescriptor{Name: "project_info", Kind: models.SourceKindSQL}, &stubRunner{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	err = svc.Register(models.DataSourceDescriptor{Name: ""}, &stubRunner{})
	require.Error(t, err)

	err = svc.Register(models.DataSourceDescriptor{Name: "custom"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no runner")
}

func TestFetchUnknownSourceContained(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)

	result := svc.Fetch(context.Background(), "no_such_source", nil)
	require.NotNil(t, result)
	assert.False(t, result.OK())
	assert.Contains(t, result.Error, "unknown data source 'no_such_source'")
	assert.Equal(t, "no_such_source", result.Source)
	assert.False(t, result.FetchedAt.IsZero())
}

func TestFetchRunnerErrorContained(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)
	require.NoError(t, svc.Register(models.DataSourceDescriptor{
		Name: "broken",
		Kind: models.SourceKindREST,
	}, &stubRunner{query: "GET http://example.invalid", err: errors.New("connection refused")}))

	result := svc.Fetch(context.Background(), "broken", nil)
	assert.False(t, result.OK())
	assert.Contains(t, result.Error, "connection refused")
	assert.Equal(t, models.SourceKindREST, result.Kind)
	assert.Equal(t, "GET http://example.invalid", result.Query)
	assert.Nil(t, result.Payload)
}

func TestFetchSuccessDerivesVariables(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)
	require.NoError(t, svc.Register(models.DataSourceDescriptor{
		Name: "totals",
		Kind: models.SourceKindSQL,
	}, &stubRunner{
		payload: map[string]interface{}{"total_gross": 29730.0, "total_hours": 352.5},
		query:   "SELECT ...",
	}))

	result := svc.Fetch(context.Background(), "totals", nil)
	require.True(t, result.OK(), "unexpected error: %s", result.Error)
	assert.Equal(t, 29730.0, result.Variables["total_gross"])
	assert.Equal(t, 352.5, result.Variables["total_hours"])
}

func TestFetchSQLDefaultWithoutPool(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)

	result := svc.Fetch(context.Background(), "project_info", map[string]interface{}{"project_id": "prj-1"})
	assert.False(t, result.OK())
	assert.Contains(t, result.Error, "database not configured")
}

func TestFetchMultiplePreservesOrderAndDedupes(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)
	first := &stubRunner{payload: "one", delay: 30 * time.Millisecond}
	second := &stubRunner{payload: "two"}
	require.NoError(t, svc.Register(models.DataSourceDescriptor{Name: "slow"}, first))
	require.NoError(t, svc.Register(models.DataSourceDescriptor{Name: "fast"}, second))

	results := svc.FetchMultiple(context.Background(), []models.SourceFetchConfig{
		{Source: "slow"},
		{Source: "fast"},
		{Source: "slow"}, // duplicate, first occurrence wins
		{Source: ""},     // ignored
	})

	assert.Equal(t, []string{"slow", "fast"}, results.Names())
	assert.Equal(t, int32(1), atomic.LoadInt32(&first.calls), "duplicates fetch once")

	slow, ok := results.Get("slow")
	require.True(t, ok)
	assert.Equal(t, "one", slow.Payload)
}

func TestFetchMultipleIsolatesFailures(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)
	require.NoError(t, svc.Register(models.DataSourceDescriptor{Name: "good"}, &stubRunner{payload: "ok"}))
	require.NoError(t, svc.Register(models.DataSourceDescriptor{Name: "bad"}, &stubRunner{err: errors.New("boom")}))

	results := svc.FetchMultiple(context.Background(), []models.SourceFetchConfig{
		{Source: "good"}, {Source: "bad"},
	})

	require.Equal(t, 2, results.Len())
	good, _ := results.Get("good")
	assert.True(t, good.OK())
	assert.Equal(t, []string{"bad"}, results.Failed())
}

func TestGetUnknownSource(t *testing.T) {
	svc := NewService(arbor.NewLogger(), nil)
	_, err := svc.Get("missing")
	assert.ErrorIs(t, err, interfaces.ErrSourceNotFound)
}
