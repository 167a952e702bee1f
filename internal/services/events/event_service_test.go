package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

func TestPublishReachesSubscriber(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var calls int64
	done := make(chan struct{})
	err := svc.Subscribe(interfaces.EventGenerationStarted, func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt64(&calls, 1)
		close(done)
		return nil
	})
	require.NoError(t, err)

	err = svc.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventGenerationStarted,
		Payload: map[string]interface{}{"run_id": "run-1"},
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestPublishSyncWaitsForAllHandlers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var mu sync.Mutex
	seen := 0
	for i := 0; i < 3; i++ {
		err := svc.Subscribe(interfaces.EventGenerationCompleted, func(ctx context.Context, event interfaces.Event) error {
			mu.Lock()
			seen++
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventGenerationCompleted})
	require.NoError(t, err)

	// PublishSync returns only after every handler completed
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, seen)
}

func TestPublishSyncAggregatesHandlerErrors(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	err := svc.Subscribe(interfaces.EventGenerationStage, func(ctx context.Context, event interfaces.Event) error {
		return assert.AnError
	})
	require.NoError(t, err)

	err = svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventGenerationStage})
	assert.Error(t, err)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	err := svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventScheduleTriggered})
	assert.NoError(t, err)
	err = svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventScheduleTriggered})
	assert.NoError(t, err)
}

func TestSubscribeNilHandlerRejected(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	err := svc.Subscribe(interfaces.EventGenerationStarted, nil)
	assert.Error(t, err)
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var calls int64
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventGenerationStarted, handler))
	require.NoError(t, svc.Unsubscribe(interfaces.EventGenerationStarted, handler))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventGenerationStarted})
	require.NoError(t, err)
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
}

func TestUnsubscribeUnknownHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	err := svc.Unsubscribe(interfaces.EventGenerationStarted, func(ctx context.Context, event interfaces.Event) error {
		return nil
	})
	assert.Error(t, err)
}
