package async

import (
	"container/list"
	"context"
	"sync"
)

// Job is a background unit of work, analogous to the coroutine factories the
// teacher's async helpers schedule. Jobs never propagate errors to a caller;
// a Queue logs and drops a failed job, per spec §7 ("background tasks must
// never propagate").
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue is a single-consumer, unbounded FIFO queue (spec §5/§9: "a single
// background consumer drains an unbounded FIFO queue in the same process").
// Enqueue never blocks the caller. Because there is exactly one consumer,
// jobs run strictly in arrival order — this is what gives per-user persona
// writes (spec §5) their serialization guarantee for free, with no
// additional locking.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool
	logger PanicLogger
}

// NewQueue creates a background queue. logger receives panic/error reports;
// nil is safe (panics are swallowed).
func NewQueue(logger PanicLogger) *Queue {
	q := &Queue{items: list.New(), logger: logger}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job. Never blocks.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items.PushBack(job)
	q.cond.Signal()
}

// Depth reports the number of jobs queued but not yet started (a job in
// flight is not counted), used by the orchestrator's background-queue-depth
// metric.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Run drains the queue on the calling goroutine until ctx is cancelled or
// Close is called. Intended to be launched once via async.Go at process
// startup.
func (q *Queue) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		q.Close()
	}()

	for {
		job, ok := q.pop()
		if !ok {
			return
		}
		q.runOne(ctx, job)
	}
}

func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.items.Len() == 0 {
		return Job{}, false
	}
	front := q.items.Front()
	q.items.Remove(front)
	return front.Value.(Job), true
}

func (q *Queue) runOne(ctx context.Context, job Job) {
	defer Recover(q.logger, job.Name)
	if err := job.Run(ctx); err != nil && q.logger != nil {
		q.logger.Error("background job %q failed: %v", job.Name, err)
	}
}

// Close stops the queue: later Enqueue calls are ignored, jobs already
// buffered still run, and Run returns once the buffer is empty.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
