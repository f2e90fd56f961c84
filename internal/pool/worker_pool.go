// Package pool provides the bounded worker pool that runs conversion jobs.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrQueueFull  = errors.New("job queue is full")
)

// Task is one unit of conversion work.
type Task func(ctx context.Context) error

// WorkerPool runs tasks on a fixed number of workers with a bounded queue.
// Independent jobs run concurrently; nothing about ordering between them is
// guaranteed.
type WorkerPool struct {
	queue  chan taskWrapper
	wg     sync.WaitGroup
	closed atomic.Bool

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	panicHandler func(any)
}

type taskWrapper struct {
	task   Task
	ctx    context.Context
	result chan error
}

// Config sizes the pool.
type Config struct {
	Workers      int       `json:"workers"`
	QueueSize    int       `json:"queue_size"`
	PanicHandler func(any) `json:"-"`
}

// New creates the pool and starts its workers immediately. Conversion load
// is bursty but long-running, so workers are not spun down on idle.
func New(cfg Config) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	p := &WorkerPool{
		queue:        make(chan taskWrapper, cfg.QueueSize),
		panicHandler: cfg.PanicHandler,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a task without waiting for it to run. A full queue
// rejects immediately so callers can fail fast instead of blocking intake.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	select {
	case p.queue <- taskWrapper{task: task, ctx: ctx}:
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

// SubmitWait enqueues a task and blocks until it finishes or ctx expires.
func (p *WorkerPool) SubmitWait(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	wrapper := taskWrapper{task: task, ctx: ctx, result: make(chan error, 1)}
	select {
	case p.queue <- wrapper:
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	}

	select {
	case err := <-wrapper.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for wrapper := range p.queue {
		p.active.Add(1)
		err := p.run(wrapper)
		p.active.Add(-1)

		if wrapper.result != nil {
			wrapper.result <- err
			close(wrapper.result)
		}
		if err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
	}
}

func (p *WorkerPool) run(wrapper taskWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			err = errors.New("job panicked")
		}
	}()
	if err := wrapper.ctx.Err(); err != nil {
		return err
	}
	return wrapper.task(wrapper.ctx)
}

// Close stops intake and waits for in-flight jobs to finish.
func (p *WorkerPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.queue)
	p.wg.Wait()
}

// Stats reports pool counters.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats are point-in-time pool counters.
type Stats struct {
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
