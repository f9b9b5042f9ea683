package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/rendis/graphflow/pkg/schema"
)

// WorkflowRunner is the interface the scheduler uses to run workflows.
// Satisfied by engine.Service (avoids import cycle).
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, workflowID string, inputs map[string]any) (*schema.ExecutionRecord, error)
}

// ScheduledJob triggers a stored workflow on a cron expression.
type ScheduledJob struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	CronExpression string         `json:"cron_expression"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Enabled        bool           `json:"enabled"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	LastRunStatus  string         `json:"last_run_status,omitempty"`
}

// Scheduler keeps a job table and runs workflows that are due.
type Scheduler struct {
	runner WorkflowRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]*ScheduledJob

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner WorkflowRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		jobs:     make(map[string]*ScheduledJob),
		inflight: make(map[string]struct{}),
	}
}

// AddJob registers a job and computes its first run time. A missing ID is
// assigned; the cron expression must parse.
func (s *Scheduler) AddJob(job *ScheduledJob) (*ScheduledJob, error) {
	if job == nil || job.WorkflowID == "" {
		return nil, fmt.Errorf("scheduled job needs a workflow id")
	}
	next, err := s.CalculateNextRun(job.CronExpression, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	cp := *job
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.NextRunAt = &next

	s.jobsMu.Lock()
	s.jobs[cp.ID] = &cp
	s.jobsMu.Unlock()

	out := cp
	return &out, nil
}

// RemoveJob drops a job from the table. Returns false when it was not there.
func (s *Scheduler) RemoveJob(id string) bool {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// SetEnabled flips a job on or off.
func (s *Scheduler) SetEnabled(id string, enabled bool) bool {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Enabled = enabled
	return true
}

// Jobs returns copies of all registered jobs, sorted by ID.
func (s *Scheduler) Jobs() []*ScheduledJob {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	out := make([]*ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every enabled job whose next run time has passed. A missing
// next run time counts as overdue.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, job := range s.dueJobs(now) {
		if !s.tryAcquire(job.ID) {
			continue // already running (dedup)
		}
		if err := s.runJob(ctx, job, now); err != nil {
			s.logger.Error("failed to run scheduled job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		s.releaseJob(job.ID)
	}
}

// dueJobs snapshots the enabled jobs that are due at the given instant.
func (s *Scheduler) dueJobs(now time.Time) []*ScheduledJob {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	var due []*ScheduledJob
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if job.NextRunAt == nil || !job.NextRunAt.After(now) {
			cp := *job
			due = append(due, &cp)
		}
	}
	return due
}

// runJob executes a scheduled job and updates its timestamps.
func (s *Scheduler) runJob(ctx context.Context, job *ScheduledJob, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("workflow_id", job.WorkflowID),
	)

	rec, err := s.runner.RunWorkflow(ctx, job.WorkflowID, job.Inputs)
	status := "success"
	switch {
	case err != nil:
		status = "error"
		s.logger.Error("scheduled job execution failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	case rec != nil && rec.Status != schema.ExecutionStatusCompleted:
		status = string(rec.Status)
	}

	return s.updateJobStatus(job.ID, job.CronExpression, now, status)
}

func (s *Scheduler) updateJobStatus(jobID, cronExpr string, now time.Time, status string) error {
	nextRun, err := s.CalculateNextRun(cronExpr, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", jobID, err)
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil // removed while running
	}
	job.LastRunAt = &now
	job.NextRunAt = &nextRun
	job.LastRunStatus = status
	return nil
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
