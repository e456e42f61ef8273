package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrQueueFull = errors.New("worker queue is full")

// Pool is the single bounded worker pool shared by the process. Background
// work (sync sweeps, benefit evaluation) goes through here so the
// interactive path never blocks on it.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(size, queueDepth int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueDepth <= 0 {
		queueDepth = size
	}

	p := &Pool{
		tasks: make(chan func(), queueDepth),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}

	return p
}

// Submit enqueues a task without blocking. A full queue is reported to the
// caller instead of stalling the submitter.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("worker pool is shut down")
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for in-flight work, bounded by
// the context.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
