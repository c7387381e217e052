/*
queue.go - In-process grade calculation queue

PURPOSE:
  Carries grade-calculation jobs from the lifecycle to the background
  worker. Delivery is at-least-once within the process: a job that
  fails is retried with a short backoff until the attempt limit, after
  which it is dropped with a log line. The task token in the database
  is the source of truth, so a duplicate or stale delivery resolves as
  a no-op in the engine.

DESIGN:
  - Buffered channel between producer and consumer
  - Single consumer goroutine with Start/Stop lifecycle
  - Enqueue fails when the buffer is full or the queue is closed,
    which rolls back the transition that produced the job

USAGE:
  q := queue.New(128)
  consumer := queue.NewConsumer(q, worker)
  consumer.Start()
  // ... later
  consumer.Stop()
  q.Close()

SEE ALSO:
  - assessment/worker.go: job handler
  - assessment/lifecycle.go: producer side
*/
package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tenet/assessment-engine/assessment"
)

// Queue is a bounded in-process job queue.
type Queue struct {
	jobs   chan assessment.GradeCalculationJob
	mu     sync.Mutex
	closed bool
}

// New creates a queue with the given buffer size.
func New(size int) *Queue {
	if size <= 0 {
		size = 128
	}
	return &Queue{jobs: make(chan assessment.GradeCalculationJob, size)}
}

// Enqueue adds a job without blocking. A full buffer is a transient
// error; callers run Enqueue inside their transaction so the
// transition rolls back rather than losing the grading run.
func (q *Queue) Enqueue(_ context.Context, job assessment.GradeCalculationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return assessment.InvalidStatef("queue is closed")
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return assessment.Transientf(nil, "grade calculation queue is full")
	}
}

// Close stops accepting jobs and lets the consumer drain what remains.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// Depth returns the number of jobs waiting.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// =============================================================================
// CONSUMER
// =============================================================================

// Handler processes one delivered job.
type Handler interface {
	Handle(ctx context.Context, job assessment.GradeCalculationJob) error
}

// Consumer pulls jobs off the queue and hands them to the worker.
type Consumer struct {
	Queue       *Queue
	Handler     Handler
	MaxAttempts int
	RetryDelay  time.Duration

	stop chan bool
	wg   sync.WaitGroup
	mu   sync.Mutex
	on   bool
}

// NewConsumer creates a consumer with default retry settings.
func NewConsumer(q *Queue, h Handler) *Consumer {
	return &Consumer{
		Queue:       q,
		Handler:     h,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		stop:        make(chan bool),
	}
}

// Start begins consuming in a background goroutine.
func (c *Consumer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.on {
		return
	}
	c.on = true
	c.wg.Add(1)
	go c.run()
	log.Println("[Worker] Started")
}

// Stop halts the consumer after the in-flight job finishes.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.on {
		return
	}
	c.on = false
	close(c.stop)
	c.wg.Wait()
	log.Println("[Worker] Stopped")
}

func (c *Consumer) run() {
	defer c.wg.Done()
	for {
		select {
		case job, ok := <-c.Queue.jobs:
			if !ok {
				return
			}
			c.process(job)
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) process(job assessment.GradeCalculationJob) {
	ctx := context.Background()
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		err := c.Handler.Handle(ctx, job)
		if err == nil {
			log.Printf("[Worker] Graded assessment %s (task %s, trigger %s)",
				job.AssessmentID, job.TaskID, job.Trigger)
			return
		}
		if !assessment.IsRetryable(err) {
			log.Printf("[Worker] Dropping job for assessment %s: %v", job.AssessmentID, err)
			return
		}
		log.Printf("[Worker] Attempt %d/%d for assessment %s failed: %v",
			attempt, c.MaxAttempts, job.AssessmentID, err)
		if attempt < c.MaxAttempts {
			time.Sleep(c.RetryDelay)
		}
	}
	log.Printf("[Worker] Giving up on assessment %s after %d attempts",
		job.AssessmentID, c.MaxAttempts)
}
