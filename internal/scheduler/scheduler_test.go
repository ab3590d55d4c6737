package scheduler

import (
	"testing"
	"time"
)

func TestSchedulerStartStop(t *testing.T) {
	s := New("0 3 * * *", 24*time.Hour, func(olderThan time.Duration) (int64, error) {
		return 0, nil
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatalf("scheduler not running after start")
	}
	s.Stop()
}

func TestSchedulerWithoutPurgeFunc(t *testing.T) {
	s := New("0 3 * * *", 24*time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("scheduler must stay idle without a purge function")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New("not a cron spec", 24*time.Hour, func(time.Duration) (int64, error) { return 0, nil })
	if err := s.Start(); err == nil {
		t.Fatalf("bad cron spec must be rejected")
	}
}
