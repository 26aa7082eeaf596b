// Package cron wraps gronx cron-expression evaluation with a small
// persisted job store, used to drive the hygiene scheduler without
// pulling in a full scheduler daemon.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// CronSchedule wraps a standard 5-field cron expression.
type CronSchedule struct {
	Expr string
}

// CronJob is one scheduled unit of work.
type CronJob struct {
	ID       string
	Name     string
	Schedule CronSchedule
	LastRun  time.Time
	Fn       func(ctx context.Context) error `json:"-"`
}

type persistedJob struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Expr    string    `json:"expr"`
	LastRun time.Time `json:"last_run"`
}

// ErrorHandler is invoked with any error a job's Fn returns.
type ErrorHandler func(jobID string, err error)

// CronService evaluates due jobs against gronx expressions and
// persists last-run times to storePath so schedules survive a
// process restart.
type CronService struct {
	storePath string
	onError   ErrorHandler
	gron      *gronx.Gronx

	mu   sync.Mutex
	jobs map[string]*CronJob
}

// NewCronService builds a service persisting job state to storePath.
// onError may be nil, in which case job errors are silently dropped.
func NewCronService(storePath string, onError ErrorHandler) *CronService {
	s := &CronService{
		storePath: storePath,
		onError:   onError,
		gron:      gronx.New(),
		jobs:      make(map[string]*CronJob),
	}
	s.load()
	return s
}

// AddJob validates expr and registers job for due-checking.
func (s *CronService) AddJob(job CronJob) error {
	if !gronx.IsValid(job.Schedule.Expr) {
		return fmt.Errorf("invalid cron expression %q for job %q", job.Schedule.Expr, job.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[job.ID]; ok {
		job.LastRun = existing.LastRun
	}
	s.jobs[job.ID] = &job
	return nil
}

// RunDue evaluates every registered job against the current minute
// (seconds ignored) and runs Fn for each one due, persisting LastRun on
// completion (success or error).
func (s *CronService) RunDue(ctx context.Context) {
	s.mu.Lock()
	due := make([]*CronJob, 0, len(s.jobs))
	now := time.Now().Truncate(time.Minute)
	for _, job := range s.jobs {
		ok, err := s.gron.IsDue(job.Schedule.Expr, now)
		if err != nil || !ok {
			continue
		}
		due = append(due, job)
	}
	s.mu.Unlock()

	for _, job := range due {
		var err error
		if job.Fn != nil {
			err = job.Fn(ctx)
		}
		s.mu.Lock()
		job.LastRun = time.Now().UTC()
		s.mu.Unlock()
		if err != nil && s.onError != nil {
			s.onError(job.ID, err)
		}
	}
	s.persist()
}

func (s *CronService) persist() {
	if s.storePath == "" {
		return
	}
	s.mu.Lock()
	out := make([]persistedJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, persistedJob{ID: job.ID, Name: job.Name, Expr: job.Schedule.Expr, LastRun: job.LastRun})
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.storePath), 0o755)
	_ = os.WriteFile(s.storePath, data, 0o644)
}

func (s *CronService) load() {
	if s.storePath == "" {
		return
	}
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		return
	}
	var stored []persistedJob
	if err := json.Unmarshal(data, &stored); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range stored {
		s.jobs[p.ID] = &CronJob{ID: p.ID, Name: p.Name, Schedule: CronSchedule{Expr: p.Expr}, LastRun: p.LastRun}
	}
}
