package analyzer

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go-naturalness-inspector/internal/logger"
)

// WorkerPool runs patch feature extraction jobs on a fixed set of
// goroutines shared by every scoring call.
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	active    atomic.Int64
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Workers   int   `json:"workers"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
	Active    int64 `json:"active"`
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		wp.run(job)
	}
}

func (wp *WorkerPool) run(job func()) {
	wp.active.Add(1)
	defer func() {
		if r := recover(); r != nil {
			wp.panicked.Add(1)
			logger.WithField("panic", r).Error("worker pool job panicked")
		}
		wp.active.Add(-1)
		wp.completed.Add(1)
		wp.wg.Done()
	}()
	job()
}

// Submit queues a job, starting the workers on first use. It returns false
// once the pool is closed; the job is then not run.
func (wp *WorkerPool) Submit(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	wp.Start()
	wp.wg.Add(1)
	wp.submitted.Add(1)
	wp.jobQueue <- job
	return true
}

// Wait waits for all submitted jobs to complete
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.workers }

// GetStats returns current counters.
func (wp *WorkerPool) GetStats() PoolStats {
	return PoolStats{
		Workers:   wp.workers,
		Submitted: wp.submitted.Load(),
		Completed: wp.completed.Load(),
		Panicked:  wp.panicked.Load(),
		Active:    wp.active.Load(),
	}
}

// Close shuts down the worker pool. Queued jobs still run. Close is
// idempotent.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return
	}
	wp.closed = true
	close(wp.jobQueue)
}
