package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "valid daily schedule", schedule: "0 3 * * *", wantRunning: true},
		{name: "valid every 30 minutes", schedule: "*/30 * * * *", wantRunning: true},
		{name: "empty schedule", schedule: "", wantError: true},
		{name: "invalid schedule", schedule: "invalid cron", wantError: true},
		{name: "seconds field rejected", schedule: "0 0 3 * * *", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.schedule, func(context.Context) error { return nil }, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Expected error=%v, got %v", tt.wantError, err)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("Expected running=%v, got %v", tt.wantRunning, s.IsRunning())
			}

			if tt.wantRunning {
				next := s.NextRun()
				if next == nil {
					t.Fatal("Expected next run for a running scheduler")
				}
				if !next.After(time.Now()) {
					t.Errorf("Expected next run in the future, got %v", next)
				}
				s.Stop()
				if s.IsRunning() {
					t.Error("Expected scheduler stopped")
				}
			}
		})
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New("0 3 * * *", func(context.Context) error { return nil }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(ctx); err == nil {
		t.Error("Expected error on second start")
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := New("0 3 * * *", func(context.Context) error { return nil }, nil)
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("Expected scheduler to stop after context cancellation")
	}
}

func TestScheduler_RunLogsJobError(t *testing.T) {
	calls := 0
	s := New("0 3 * * *", func(context.Context) error {
		calls++
		return errors.New("database unavailable")
	}, nil)

	s.run(context.Background())
	if calls != 1 {
		t.Errorf("Expected job called once, got %d", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.run(ctx)
	if calls != 1 {
		t.Errorf("Expected no run after cancellation, got %d calls", calls)
	}
}
