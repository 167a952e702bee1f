package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// Runner executes one data source kind against its backend.
type Runner interface {
	// Run returns the payload, a query descriptor string for diagnostics,
	// and the transport or parse error if any.
	Run(ctx context.Context, params map[string]interface{}) (interface{}, string, error)
}

type registration struct {
	descriptor models.DataSourceDescriptor
	runner     Runner
}

// Service is the process-wide data source registry. Registration happens at
// startup and the table is read-only afterwards, so fetches need no locking.
type Service struct {
	registrations map[string]*registration
	order         []string
	logger        arbor.ILogger
}

var _ interfaces.DataSourceService = (*Service)(nil)

// NewService builds the registry with the default source set bound to the
// given read-model pool. A nil pool leaves SQL sources registered but
// failing with a configuration error at fetch time.
func NewService(logger arbor.ILogger, pool *pgxpool.Pool) *Service {
	s := &Service{
		registrations: make(map[string]*registration),
		logger:        logger,
	}
	s.registerDefaults(pool)

	logger.Info().Int("sources", len(s.order)).Msg("Data source registry initialised")
	return s
}

// Register adds a named source. Names are unique; re-registration is a
// wiring bug and fails loudly.
func (s *Service) Register(descriptor models.DataSourceDescriptor, runner Runner) error {
	if descriptor.Name == "" {
		return fmt.Errorf("data source name is required")
	}
	if runner == nil {
		return fmt.Errorf("data source '%s' has no runner", descriptor.Name)
	}
	if _, exists := s.registrations[descriptor.Name]; exists {
		return fmt.Errorf("data source '%s' already registered", descriptor.Name)
	}

	s.registrations[descriptor.Name] = &registration{descriptor: descriptor, runner: runner}
	s.order = append(s.order, descriptor.Name)
	return nil
}

// Fetch executes the named source. Failures are contained in the result.
func (s *Service) Fetch(ctx context.Context, name string, params map[string]interface{}) *models.DataSourceResult {
	result := &models.DataSourceResult{
		Source:    name,
		FetchedAt: time.Now(),
	}

	reg, ok := s.registrations[name]
	if !ok {
		result.Error = fmt.Sprintf("unknown data source '%s'", name)
		return result
	}
	result.Kind = reg.descriptor.Kind

	payload, query, err := reg.runner.Run(ctx, params)
	result.Query = query
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn().
			Str("source", name).
			Err(err).
			Msg("Data source fetch failed")
		return result
	}

	result.Payload = payload
	deriveVariables(result)

	s.logger.Debug().
		Str("source", name).
		Int("variables", len(result.Variables)).
		Msg("Data source fetched")
	return result
}

// FetchMultiple fans out across distinct sources concurrently. Input order
// is preserved in the result set; a failing source never cancels the rest.
func (s *Service) FetchMultiple(ctx context.Context, configs []models.SourceFetchConfig) *models.SourceResults {
	results := models.NewSourceResults()

	// Dedupe by name, first occurrence wins.
	var distinct []models.SourceFetchConfig
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.Source == "" || seen[cfg.Source] {
			continue
		}
		seen[cfg.Source] = true
		distinct = append(distinct, cfg)
	}

	fetched := make([]*models.DataSourceResult, len(distinct))
	var wg sync.WaitGroup
	for i, cfg := range distinct {
		wg.Add(1)
		go func(slot int, cfg models.SourceFetchConfig) {
			defer wg.Done()
			fetched[slot] = s.Fetch(ctx, cfg.Source, cfg.Params)
		}(i, cfg)
	}
	wg.Wait()

	for i, cfg := range distinct {
		results.Add(cfg.Source, fetched[i])
	}
	return results
}

// List returns descriptors in registration order.
func (s *Service) List() []models.DataSourceDescriptor {
	descriptors := make([]models.DataSourceDescriptor, 0, len(s.order))
	for _, name := range s.order {
		descriptors = append(descriptors, s.registrations[name].descriptor)
	}
	return descriptors
}

// Get returns the descriptor for a registered source.
func (s *Service) Get(name string) (*models.DataSourceDescriptor, error) {
	reg, ok := s.registrations[name]
	if !ok {
		return nil, interfaces.ErrSourceNotFound
	}
	descriptor := reg.descriptor
	return &descriptor, nil
}
