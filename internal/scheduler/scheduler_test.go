package scheduler

import (
	"context"
	"testing"
	"time"

	"avt-guide/internal/logger"
)

func TestRegister_RejectsBadSpec(t *testing.T) {
	s := New(time.UTC, logger.Discard())
	defer s.Stop()
	if err := s.Register("not a spec", "x", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for bad spec")
	}
	if err := s.Register("", "disabled", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("empty spec should disable the job: %v", err)
	}
	s.Start()
	if s.IsRunning() {
		t.Fatalf("no job registered, scheduler must stay idle")
	}
}

func TestJobRuns(t *testing.T) {
	s := New(time.UTC, logger.Discard())
	ran := make(chan struct{}, 1)
	if err := s.Register("@every 1s", "tick", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()
	if !s.IsRunning() {
		t.Fatalf("scheduler should be running")
	}
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not run")
	}
	s.Stop()
	if s.IsRunning() {
		t.Fatalf("scheduler should be stopped")
	}
}
