package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/agent"
)

func testLanes() LanesConfig {
	return LanesConfig{
		LaneMain: {Concurrency: 4},
		LaneCron: {Concurrency: 1},
	}
}

func TestScheduleRunsAndReturnsResult(t *testing.T) {
	s := NewScheduler(testLanes(), DefaultQueueConfig(), func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		return &agent.RunResult{Content: "hi " + req.Message}, nil
	})
	defer s.Stop()

	outCh := s.Schedule(context.Background(), LaneMain, agent.RunRequest{SessionKey: "sess-1", RunID: "r1", Message: "world"})
	outcome := <-outCh
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.Result.Content != "hi world" {
		t.Fatalf("unexpected result: %+v", outcome.Result)
	}
}

func TestSameSessionRunsSerializeByDefault(t *testing.T) {
	var concurrent int32
	var maxObserved int32
	release := make(chan struct{})

	s := NewScheduler(testLanes(), DefaultQueueConfig(), func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			m := atomic.LoadInt32(&maxObserved)
			if n <= m || atomic.CompareAndSwapInt32(&maxObserved, m, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&concurrent, -1)
		return &agent.RunResult{Content: "ok"}, nil
	})
	defer s.Stop()

	var wg sync.WaitGroup
	outs := make([]<-chan Outcome, 3)
	for i := 0; i < 3; i++ {
		outs[i] = s.ScheduleWithOpts(context.Background(), LaneMain, agent.RunRequest{
			SessionKey: "sess-serial", RunID: "r" + string(rune('a'+i)),
		}, ScheduleOpts{})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Add(len(outs))
	for _, ch := range outs {
		go func(c <-chan Outcome) {
			defer wg.Done()
			<-c
		}(ch)
	}
	wg.Wait()

	if atomic.LoadInt32(&maxObserved) != 1 {
		t.Fatalf("expected same-session runs to never overlap, max observed concurrency = %d", maxObserved)
	}
}

func TestGroupSessionAllowsConfiguredConcurrency(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})

	s := NewScheduler(testLanes(), DefaultQueueConfig(), func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		started <- struct{}{}
		<-release
		return &agent.RunResult{Content: "ok"}, nil
	})
	defer s.Stop()

	for i := 0; i < 3; i++ {
		s.ScheduleWithOpts(context.Background(), LaneMain, agent.RunRequest{
			SessionKey: "sess-group", RunID: "r" + string(rune('a'+i)),
		}, ScheduleOpts{MaxConcurrent: 3})
	}

	for i := 0; i < 3; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatalf("expected 3 concurrent runs to start, only %d did", i)
		}
	}
	close(release)
}

func TestCancelOneSessionCancelsOldestActive(t *testing.T) {
	entered := make(chan string, 2)
	s := NewScheduler(testLanes(), DefaultQueueConfig(), func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		entered <- req.RunID
		<-ctx.Done()
		return nil, ctx.Err()
	})
	defer s.Stop()

	outCh := s.ScheduleWithOpts(context.Background(), LaneMain, agent.RunRequest{
		SessionKey: "sess-cancel", RunID: "run-1",
	}, ScheduleOpts{MaxConcurrent: 1})

	<-entered // wait for it to actually start running

	if !s.CancelOneSession("sess-cancel") {
		t.Fatalf("expected CancelOneSession to find an active run")
	}
	outcome := <-outCh
	if outcome.Err == nil {
		t.Fatalf("expected cancelled run to return an error")
	}
}

func TestCancelSessionOnUnknownSessionReturnsFalse(t *testing.T) {
	s := NewScheduler(testLanes(), DefaultQueueConfig(), func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		return &agent.RunResult{}, nil
	})
	defer s.Stop()

	if s.CancelSession("never-scheduled") {
		t.Fatalf("expected no cancellation for a session that was never scheduled")
	}
	if s.CancelOneSession("never-scheduled") {
		t.Fatalf("expected no cancellation for a session that was never scheduled")
	}
}

func TestUnknownLaneFallsBackToMain(t *testing.T) {
	s := NewScheduler(testLanes(), DefaultQueueConfig(), func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		return &agent.RunResult{Content: "fallback"}, nil
	})
	defer s.Stop()

	outCh := s.Schedule(context.Background(), Lane("bogus"), agent.RunRequest{SessionKey: "sess-x", RunID: "r1"})
	outcome := <-outCh
	if outcome.Err != nil || outcome.Result == nil || outcome.Result.Content != "fallback" {
		t.Fatalf("expected unknown lane to fall back to main lane, got %+v", outcome)
	}
}
