// Package workerpool runs image encode jobs on a bounded goroutine pool.
// Saving one captured frame to several formats, or keeping up with a
// capture loop, submits each encode as a task; the pool caps the encoder
// parallelism and collects the failures.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/hdrcap/internal/logging"
)

var log = logging.L("workerpool")

// Task is one encode job. A non-nil result is collected and returned by
// Wait.
type Task func() error

// Pool is a fixed-size worker pool with a bounded queue. Submit never
// blocks: when the queue is full the task is rejected, which lets a
// capture loop drop encodes instead of stalling the grab path.
type Pool struct {
	queue     chan Task
	wg        sync.WaitGroup
	accepting atomic.Bool
	closeOnce sync.Once

	mu   sync.Mutex
	errs []error
}

// New starts workers goroutines serving a queue of queueSize tasks.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{queue: make(chan Task, queueSize)}
	p.accepting.Store(true)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Debug("encode pool started", "workers", workers, "queueSize", queueSize)
	return p
}

// Submit enqueues a task. It returns false when the pool is already
// waiting or the queue is full; the task then never runs.
// The wg.Add happens before the enqueue so Wait cannot observe a queued
// task it is not counting.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done() // not enqueued
		log.Debug("encode queue full, task rejected")
		return false
	}
}

// Wait stops accepting, waits for queued and in-flight tasks up to the
// context deadline, and returns every error the tasks produced. On
// deadline the remaining tasks keep draining in the background and a
// context error is included in the result. Wait must not be called
// concurrently with Submit.
func (p *Pool) Wait(ctx context.Context) []error {
	p.accepting.Store(false)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Debug("encode pool drained")
	case <-ctx.Done():
		log.Warn("encode pool drain timed out", logging.KeyError, ctx.Err())
		p.record(fmt.Errorf("drain encode pool: %w", ctx.Err()))
	}

	// Close the queue so the workers exit once it is empty.
	p.closeOnce.Do(func() { close(p.queue) })

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

func (p *Pool) record(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

func (p *Pool) worker() {
	for task := range p.queue {
		p.run(task)
	}
}

// run executes one task with panic recovery; the wg.Done matches the Add
// in Submit.
func (p *Pool) run(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("encode task panicked", "panic", r, "stack", string(debug.Stack()))
			p.record(fmt.Errorf("encode task panic: %v", r))
		}
	}()
	if err := task(); err != nil {
		p.record(err)
	}
}
