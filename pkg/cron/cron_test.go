package cron

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestAddJobRejectsInvalidExpression(t *testing.T) {
	s := NewCronService("", nil)
	err := s.AddJob(CronJob{ID: "bad", Schedule: CronSchedule{Expr: "not a cron expr"}})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestRunDueRunsEveryMinuteJob(t *testing.T) {
	s := NewCronService("", nil)
	ran := false
	err := s.AddJob(CronJob{
		ID:       "tick",
		Schedule: CronSchedule{Expr: "* * * * *"},
		Fn: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.RunDue(context.Background())
	if !ran {
		t.Fatal("expected the every-minute job to run")
	}
}

func TestRunDueInvokesErrorHandlerOnFailure(t *testing.T) {
	var gotID string
	var gotErr error
	s := NewCronService("", func(jobID string, err error) {
		gotID = jobID
		gotErr = err
	})

	wantErr := errors.New("boom")
	err := s.AddJob(CronJob{
		ID:       "failing",
		Schedule: CronSchedule{Expr: "* * * * *"},
		Fn: func(ctx context.Context) error {
			return wantErr
		},
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.RunDue(context.Background())
	if gotID != "failing" || !errors.Is(gotErr, wantErr) {
		t.Fatalf("expected error handler invoked with (failing, boom), got (%s, %v)", gotID, gotErr)
	}
}

func TestCronServicePersistsLastRunAcrossRestart(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "cron_state.json")

	first := NewCronService(storePath, nil)
	if err := first.AddJob(CronJob{
		ID:       "tick",
		Schedule: CronSchedule{Expr: "* * * * *"},
		Fn:       func(ctx context.Context) error { return nil },
	}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	first.RunDue(context.Background())

	second := NewCronService(storePath, nil)
	second.mu.Lock()
	job, ok := second.jobs["tick"]
	second.mu.Unlock()
	if !ok {
		t.Fatal("expected job state to survive restart via the store file")
	}
	if job.LastRun.IsZero() {
		t.Fatal("expected LastRun to be persisted and reloaded")
	}
}
