package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// completer executes one completion against a concrete provider endpoint.
type completer interface {
	complete(ctx context.Context, req *models.ModelRequest) (*models.ModelResponse, error)
}

// Service walks a priority-ordered endpoint chain until one completion
// succeeds. Endpoint failures never surface as Go errors; an exhausted chain
// returns a response with Error set so callers can fall back.
type Service struct {
	endpoints  []models.ModelConfig
	breakers   map[string]*gobreaker.CircuitBreaker
	completers map[string]completer
	mu         sync.RWMutex
	retry      *RetryConfig
	kvStorage  interfaces.KeyValueStorage
	audit      interfaces.AuditStorage
	logger     arbor.ILogger
}

var _ interfaces.ModelService = (*Service)(nil)

// NewService builds the chain from configuration. Unusable endpoint entries
// are skipped with a warning; an empty chain is valid and reports unavailable.
func NewService(cfg *common.Config, kvStorage interfaces.KeyValueStorage, audit interfaces.AuditStorage, logger arbor.ILogger) *Service {
	s := &Service{
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		completers: make(map[string]completer),
		retry:      NewDefaultRetryConfig(),
		kvStorage:  kvStorage,
		audit:      audit,
		logger:     logger,
	}

	for _, ep := range cfg.Models.Endpoints {
		provider := strings.ToLower(strings.TrimSpace(ep.Provider))
		model := strings.TrimSpace(ep.Model)
		if provider == "local" && model == "" {
			model = "llama-server"
		}
		if provider == "" || model == "" {
			logger.Warn().
				Str("provider", ep.Provider).
				Str("model", ep.Model).
				Msg("Skipping incomplete model endpoint")
			continue
		}

		timeout, retries := endpointDefaults(provider)
		if ep.Timeout != "" {
			if d, err := time.ParseDuration(ep.Timeout); err == nil && d > 0 {
				timeout = d
			} else {
				logger.Warn().
					Str("timeout", ep.Timeout).
					Str("provider", provider).
					Msg("Invalid endpoint timeout, using provider default")
			}
		}
		if ep.MaxRetries > 0 {
			retries = ep.MaxRetries
		}

		s.endpoints = append(s.endpoints, models.ModelConfig{
			Provider:   provider,
			Model:      model,
			APIKey:     ep.APIKey,
			BaseURL:    ep.BaseURL,
			Priority:   ep.Priority,
			Timeout:    timeout,
			MaxRetries: retries,
		})
	}

	sort.SliceStable(s.endpoints, func(i, j int) bool {
		return s.endpoints[i].Priority < s.endpoints[j].Priority
	})

	for _, ep := range s.endpoints {
		key := endpointKey(ep)
		s.breakers[key] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        key,
			MaxRequests: 1,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}

	logger.Info().Int("endpoints", len(s.endpoints)).Msg("Model chain initialised")
	return s
}

// endpointDefaults returns per-provider timeout and retry defaults. Local
// llama-server completions run long on CPU hosts.
func endpointDefaults(provider string) (time.Duration, int) {
	switch provider {
	case "openai":
		return 30 * time.Second, 0
	case "local":
		return 120 * time.Second, 2
	default:
		return 60 * time.Second, 0
	}
}

func endpointKey(ep models.ModelConfig) string {
	return ep.Provider + "/" + ep.Model
}

// Available reports whether at least one endpoint is configured.
func (s *Service) Available() bool {
	return len(s.endpoints) > 0
}

// Endpoints returns the chain configuration in priority order.
func (s *Service) Endpoints() []models.ModelConfig {
	out := make([]models.ModelConfig, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}

// Complete walks the chain and returns the first usable completion. An open
// breaker skips its endpoint without a call.
func (s *Service) Complete(ctx context.Context, req *models.ModelRequest) *models.ModelResponse {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return &models.ModelResponse{Error: "empty prompt"}
	}
	if len(s.endpoints) == 0 {
		return &models.ModelResponse{Error: "no model endpoints configured"}
	}

	var lastErr error
	for _, ep := range s.endpoints {
		key := endpointKey(ep)

		result, err := s.breakers[key].Execute(func() (interface{}, error) {
			return s.callEndpoint(ctx, ep, req)
		})
		if err == nil {
			resp := result.(*models.ModelResponse)
			s.logger.Debug().
				Str("endpoint", key).
				Int64("latency_ms", resp.Latency.Milliseconds()).
				Msg("Model completion succeeded")
			return resp
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Debug().Str("endpoint", key).Msg("Circuit open, skipping endpoint")
			lastErr = fmt.Errorf("%s: circuit open", key)
			continue
		}

		lastErr = fmt.Errorf("%s: %w", key, err)
		s.logger.Warn().Str("endpoint", key).Err(err).Msg("Model endpoint failed")

		if ctx.Err() != nil {
			break
		}
	}

	return &models.ModelResponse{Error: lastErr.Error()}
}

// callEndpoint runs one endpoint with its per-call timeout and retry policy.
// Every attempt is written to the audit store.
func (s *Service) callEndpoint(ctx context.Context, ep models.ModelConfig, req *models.ModelRequest) (*models.ModelResponse, error) {
	comp, err := s.completerFor(ctx, ep)
	if err != nil {
		return nil, err
	}

	var resp *models.ModelResponse
	var callErr error

	for attempt := 0; attempt <= ep.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, ep.Timeout)
		start := time.Now()
		resp, callErr = comp.complete(callCtx, req)
		latency := time.Since(start)
		cancel()

		s.recordCall(ep, req, resp, latency, callErr)

		if callErr == nil {
			resp.Provider = ep.Provider
			resp.Model = ep.Model
			resp.Latency = latency
			return resp, nil
		}

		if attempt == ep.MaxRetries || ctx.Err() != nil {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(callErr) {
			backoff = s.retry.CalculateBackoff(attempt, ExtractRetryDelay(callErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		s.logger.Warn().
			Str("endpoint", endpointKey(ep)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(callErr).
			Msg("Retrying model call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, callErr
}

// completerFor returns the memoised client for an endpoint, building it on
// first use.
func (s *Service) completerFor(ctx context.Context, ep models.ModelConfig) (completer, error) {
	key := endpointKey(ep)

	s.mu.RLock()
	comp, ok := s.completers[key]
	s.mu.RUnlock()
	if ok {
		return comp, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if comp, ok := s.completers[key]; ok {
		return comp, nil
	}

	comp, err := s.buildCompleter(ctx, ep)
	if err != nil {
		return nil, err
	}
	s.completers[key] = comp
	return comp, nil
}

func (s *Service) buildCompleter(ctx context.Context, ep models.ModelConfig) (completer, error) {
	switch ep.Provider {
	case "anthropic":
		apiKey, err := common.ResolveAPIKey(ctx, s.kvStorage, "anthropic_api_key", ep.APIKey)
		if err != nil {
			return nil, err
		}
		return newAnthropicProvider(apiKey, ep.BaseURL, ep.Model), nil

	case "gemini":
		apiKey, err := common.ResolveAPIKey(ctx, s.kvStorage, "gemini_api_key", ep.APIKey)
		if err != nil {
			return nil, err
		}
		return newGeminiProvider(ctx, apiKey, ep.Model)

	case "openai":
		apiKey, err := common.ResolveAPIKey(ctx, s.kvStorage, "openai_api_key", ep.APIKey)
		if err != nil {
			return nil, err
		}
		return newOpenAIProvider(ep.BaseURL, apiKey, ep.Model), nil

	case "local":
		if ep.BaseURL == "" {
			return nil, fmt.Errorf("local endpoint requires base_url")
		}
		return newLocalProvider(ep.BaseURL, ep.Model), nil

	default:
		return nil, fmt.Errorf("unknown provider '%s'", ep.Provider)
	}
}

// recordCall persists one audit record. Audit failures are logged, never
// propagated; a cancelled request context must not lose its record.
func (s *Service) recordCall(ep models.ModelConfig, req *models.ModelRequest, resp *models.ModelResponse, latency time.Duration, callErr error) {
	if s.audit == nil {
		return
	}

	record := &models.ModelCallRecord{
		ID:          uuid.New().String(),
		Provider:    ep.Provider,
		Model:       ep.Model,
		Purpose:     req.Purpose,
		PromptChars: len(req.Prompt) + len(req.SystemPrompt),
		LatencyMS:   latency.Milliseconds(),
		Success:     callErr == nil,
		CreatedAt:   time.Now(),
	}
	if callErr != nil {
		record.Error = callErr.Error()
	}
	if resp != nil {
		record.InputTokens = resp.InputTokens
		record.OutputTokens = resp.OutputTokens
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.RecordModelCall(ctx, record); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record model call")
	}
}
