package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"
)

type stubService struct {
	name     string
	startErr error
	block    bool
	stopped  atomic.Bool
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	if s.block {
		<-ctx.Done()
	}
	return nil
}

func (s *stubService) Stop(context.Context) error {
	s.stopped.Store(true)
	return nil
}

func TestRunnerStopsAllServicesWhenOneFails(t *testing.T) {
	failing := &stubService{name: "http", startErr: errors.New("bind failed")}
	blocking := &stubService{name: "worker", block: true}

	err := NewRunner(failing, blocking).Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "bind failed" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.stopped.Load() || !blocking.stopped.Load() {
		t.Fatalf("expected every service to be stopped")
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	blocking := &stubService{name: "worker", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewRunner(blocking).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
	if !blocking.stopped.Load() {
		t.Fatalf("expected service stopped")
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
}

type stubSweeper struct {
	rounds   atomic.Int32
	perRound []int
}

func (s *stubSweeper) SweepExpiredOrders(ctx context.Context, limit int) (int, error) {
	n := int(s.rounds.Add(1)) - 1
	if n < len(s.perRound) {
		return s.perRound[n], nil
	}
	return 0, nil
}

func TestSweeperDrainsFullBatchesThenStops(t *testing.T) {
	sweeper := &stubSweeper{perRound: []int{2, 2, 1}}
	svc := NewSweeperService(sweeper, time.Hour, 2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	deadline := time.Now().Add(time.Second)
	for sweeper.rounds.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("sweeper should exit cleanly, got %v", err)
	}
	if got := sweeper.rounds.Load(); got != 3 {
		t.Fatalf("want 3 rounds in first tick, got %d", got)
	}
}

func TestSweeperDisabledWaitsForCancel(t *testing.T) {
	svc := NewSweeperService(nil, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("disabled sweeper should return nil, got %v", err)
	}
}

func TestBuildRunnerRejectsUnknownMode(t *testing.T) {
	if _, err := BuildRunner(&config.Config{}, "cron"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}
