package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
)

// AppState represents the application state
type AppState string

const (
	StateIdle       AppState = "idle"
	StateGenerating AppState = "generating"
	StateOffline    AppState = "offline"
)

// Service tracks application state. It follows the generation event stream,
// so the state reflects whether a documentation run is in flight without the
// orchestrator knowing this service exists.
type Service struct {
	state        AppState
	mu           sync.RWMutex
	eventService interfaces.EventService
	logger       arbor.ILogger
	metadata     map[string]interface{}
	startedAt    time.Time
}

// NewService creates the status service and subscribes it to generation
// lifecycle events.
func NewService(eventService interfaces.EventService, logger arbor.ILogger) *Service {
	s := &Service{
		state:        StateIdle,
		eventService: eventService,
		logger:       logger,
		metadata:     make(map[string]interface{}),
		startedAt:    time.Now().UTC(),
	}

	if eventService != nil {
		eventService.Subscribe(interfaces.EventGenerationStarted, func(ctx context.Context, event interfaces.Event) error {
			s.SetState(StateGenerating, eventMetadata(event))
			return nil
		})
		eventService.Subscribe(interfaces.EventGenerationCompleted, func(ctx context.Context, event interfaces.Event) error {
			s.SetState(StateIdle, eventMetadata(event))
			return nil
		})
	}

	return s
}

// GetState returns the current application state (thread-safe)
func (s *Service) GetState() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState updates the application state and broadcasts the change
func (s *Service) SetState(state AppState, metadata map[string]interface{}) {
	s.mu.Lock()
	oldState := s.state
	s.state = state
	if metadata != nil {
		s.metadata = metadata
	} else {
		s.metadata = make(map[string]interface{})
	}
	s.mu.Unlock()

	if oldState == state {
		return
	}

	s.logger.Debug().
		Str("old_state", string(oldState)).
		Str("new_state", string(state)).
		Msg("Application state changed")

	if s.eventService != nil {
		s.eventService.Publish(context.Background(), interfaces.Event{
			Type: interfaces.EventStatusChanged,
			Payload: map[string]interface{}{
				"state":     string(state),
				"metadata":  metadata,
				"timestamp": time.Now().UTC(),
			},
		})
	}
}

// GetStatus returns the full status including state, metadata, and uptime
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"state":          string(s.state),
		"metadata":       s.metadata,
		"started_at":     s.startedAt,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"timestamp":      time.Now().UTC(),
	}
}

func eventMetadata(event interfaces.Event) map[string]interface{} {
	if m, ok := event.Payload.(map[string]interface{}); ok {
		return m
	}
	return nil
}
