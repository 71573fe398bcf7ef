package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsJobsInOrder(t *testing.T) {
	q := NewQueue(nil)
	var mu sync.Mutex
	var order []int

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		q.Enqueue(Job{Name: "job", Run: func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestQueueSurvivesPanickingJob(t *testing.T) {
	q := NewQueue(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var ran atomic.Bool
	q.Enqueue(Job{Name: "boom", Run: func(context.Context) error { panic("boom") }})
	q.Enqueue(Job{Name: "after", Run: func(context.Context) error { ran.Store(true); return nil }})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ran.Load() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected job after a panicking job to still run")
}

func TestQueueDepth(t *testing.T) {
	q := NewQueue(nil)
	block := make(chan struct{})
	q.Enqueue(Job{Name: "blocker", Run: func(context.Context) error { <-block; return nil }})
	q.Enqueue(Job{Name: "waiting", Run: func(context.Context) error { return nil }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	if d := q.Depth(); d != 1 {
		t.Fatalf("expected depth 1 while blocker runs, got %d", d)
	}
	close(block)
}
