package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
)

// jobEntry is one registered job with its runtime state.
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	enabled     bool
	cronID      cron.EntryID
	lastRun     *time.Time
	nextRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service runs background jobs on cron schedules. Jobs never overlap: one
// global lock serialises execution, which is fine for the small nightly
// maintenance set this service carries.
type Service struct {
	events  interfaces.EventService
	cron    *cron.Cron
	logger  arbor.ILogger
	jobMu   sync.Mutex // protects jobs map and entry state
	execMu  sync.Mutex // serialises job execution
	jobs    map[string]*jobEntry
	running bool
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates the scheduler. Events may be nil.
func NewService(events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		events: events,
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// Start begins executing registered jobs on their schedules.
func (s *Service) Start() error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	for _, job := range s.jobs {
		if !job.enabled {
			continue
		}
		if err := s.scheduleLocked(job); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true
	s.refreshNextRunsLocked()

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Service) Stop() error {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return nil
	}
	s.running = false
	s.jobMu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active.
func (s *Service) IsRunning() bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.running
}

// RegisterJob registers a job. Registration before Start is the normal
// path; registering on a running scheduler schedules immediately.
func (s *Service) RegisterJob(name string, schedule string, description string, handler func() error) error {
	if name == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("job %s has no handler", name)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s is already registered", name)
	}

	job := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		enabled:     true,
	}
	s.jobs[name] = job

	if s.running {
		if err := s.scheduleLocked(job); err != nil {
			delete(s.jobs, name)
			return err
		}
		s.refreshNextRunsLocked()
	}

	s.logger.Debug().Str("job", name).Str("schedule", schedule).Msg("Job registered")
	return nil
}

// TriggerJob runs a registered job immediately, outside its schedule, and
// returns the handler error.
func (s *Service) TriggerJob(name string) error {
	s.jobMu.Lock()
	job, exists := s.jobs[name]
	s.jobMu.Unlock()
	if !exists {
		return fmt.Errorf("job %s is not registered", name)
	}
	return s.execute(job)
}

// EnableJob enables a disabled job.
func (s *Service) EnableJob(name string) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s is not registered", name)
	}
	if job.enabled {
		return nil
	}
	job.enabled = true
	if s.running {
		if err := s.scheduleLocked(job); err != nil {
			job.enabled = false
			return err
		}
		s.refreshNextRunsLocked()
	}
	return nil
}

// DisableJob disables an enabled job.
func (s *Service) DisableJob(name string) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s is not registered", name)
	}
	if !job.enabled {
		return nil
	}
	job.enabled = false
	if job.cronID != 0 {
		s.cron.Remove(job.cronID)
		job.cronID = 0
	}
	job.nextRun = nil
	return nil
}

// UpdateJobSchedule changes the cron expression of a registered job.
func (s *Service) UpdateJobSchedule(name string, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s is not registered", name)
	}

	job.schedule = schedule
	if s.running && job.enabled {
		if job.cronID != 0 {
			s.cron.Remove(job.cronID)
			job.cronID = 0
		}
		if err := s.scheduleLocked(job); err != nil {
			return err
		}
		s.refreshNextRunsLocked()
	}
	return nil
}

// GetJobStatus returns the status of a specific job.
func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s is not registered", name)
	}
	return statusOf(job), nil
}

// GetAllJobStatuses returns all job statuses keyed by name.
func (s *Service) GetAllJobStatuses() map[string]*interfaces.JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	out := make(map[string]*interfaces.JobStatus, len(s.jobs))
	for name, job := range s.jobs {
		out[name] = statusOf(job)
	}
	return out
}

func statusOf(job *jobEntry) *interfaces.JobStatus {
	status := &interfaces.JobStatus{
		Name:        job.name,
		Enabled:     job.enabled,
		Schedule:    job.schedule,
		Description: job.description,
		IsRunning:   job.isRunning,
		LastError:   job.lastError,
	}
	if job.lastRun != nil {
		t := *job.lastRun
		status.LastRun = &t
	}
	if job.nextRun != nil {
		t := *job.nextRun
		status.NextRun = &t
	}
	return status
}

// scheduleLocked adds the job to cron. Caller holds jobMu.
func (s *Service) scheduleLocked(job *jobEntry) error {
	id, err := s.cron.AddFunc(job.schedule, func() {
		if err := s.execute(job); err != nil {
			s.logger.Warn().Err(err).Str("job", job.name).Msg("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.name, err)
	}
	job.cronID = id
	return nil
}

// refreshNextRunsLocked pulls the next fire times from cron entries.
// Caller holds jobMu.
func (s *Service) refreshNextRunsLocked() {
	for _, job := range s.jobs {
		if job.cronID == 0 {
			job.nextRun = nil
			continue
		}
		entry := s.cron.Entry(job.cronID)
		if entry.Next.IsZero() {
			job.nextRun = nil
		} else {
			next := entry.Next
			job.nextRun = &next
		}
	}
}

// execute runs one job under the global execution lock and records its
// outcome.
func (s *Service) execute(job *jobEntry) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.jobMu.Lock()
	job.isRunning = true
	s.jobMu.Unlock()

	started := time.Now()
	s.logger.Debug().Str("job", job.name).Msg("Job started")

	err := job.handler()

	s.jobMu.Lock()
	job.isRunning = false
	job.lastRun = &started
	if err != nil {
		job.lastError = err.Error()
	} else {
		job.lastError = ""
	}
	if s.running {
		s.refreshNextRunsLocked()
	}
	s.jobMu.Unlock()

	if s.events != nil {
		payload := map[string]interface{}{
			"job":      job.name,
			"duration": time.Since(started).String(),
		}
		if err != nil {
			payload["error"] = err.Error()
		}
		_ = s.events.Publish(context.Background(), interfaces.Event{
			Type:    interfaces.EventScheduleTriggered,
			Payload: payload,
		})
	}

	if err != nil {
		return fmt.Errorf("job %s failed: %w", job.name, err)
	}
	s.logger.Info().Str("job", job.name).Str("duration", time.Since(started).String()).Msg("Job finished")
	return nil
}
