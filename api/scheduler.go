/*
scheduler.go - Automated assessment expiry scheduler

PURPOSE:
  Periodically sweeps assessments whose audit period ended without a
  submission and marks them Expired. Expired is a system-only state;
  the status endpoint rejects it as a manual target.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Expires ToDo, InProgress and Declined cycles past their end date
  - Submitted and in-review cycles are never expired; the review side
    finishes on its own clock

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewExpiryScheduler(store)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: UpdateStatus (manual transitions)
  - store/sqlite: ExpireOverdue
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// ExpiryStore is the sweep the scheduler runs each tick.
type ExpiryStore interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryScheduler closes out audit cycles that ran past their period.
type ExpiryScheduler struct {
	Store         ExpiryStore
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpiryScheduler creates a scheduler with the default interval.
func NewExpiryScheduler(store ExpiryStore) *ExpiryScheduler {
	return &ExpiryScheduler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (es *ExpiryScheduler) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if !es.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)

	go es.run()

	log.Printf("[Scheduler] Started with check interval: %v", es.CheckInterval)
}

// Stop stops the scheduler.
func (es *ExpiryScheduler) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		close(es.stop)
		es.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (es *ExpiryScheduler) run() {
	defer es.wg.Done()

	// Run immediately on start
	es.sweep()

	for {
		select {
		case <-es.ticker.C:
			es.sweep()
		case <-es.stop:
			return
		}
	}
}

func (es *ExpiryScheduler) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	expired, err := es.Store.ExpireOverdue(ctx, now)
	if err != nil {
		log.Printf("[Scheduler] Error expiring overdue assessments: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("[Scheduler] Expired %d overdue assessment(s)", expired)
	}
}
