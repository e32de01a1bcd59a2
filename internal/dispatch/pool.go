// Package dispatch runs fire-and-forget work on a bounded worker pool.
//
// Submissions are not ordered with respect to each other: two jobs submitted
// back to back may complete in either order. Callers that need ordering must
// serialize their own submissions, or wait on the returned Result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/pprof"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned through the Result when the queue is at capacity.
	ErrQueueFull = errors.New("dispatch: queue full")
	// ErrClosed is returned through the Result after Close.
	ErrClosed = errors.New("dispatch: pool closed")
)

// Options configures the pool.
type Options struct {
	Workers   int // concurrent jobs
	QueueSize int // jobs buffered before Submit starts rejecting
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:   4,
		QueueSize: 64,
	}
}

type job struct {
	name   string
	fn     func(ctx context.Context) error
	result *Result
}

// Pool is a fixed set of workers draining a bounded queue.
type Pool struct {
	logger logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex // guards closed and sends on jobs
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
}

// NewPool starts the workers. A nil logger gets a default logrus logger.
func NewPool(opts Options, logger logrus.FieldLogger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues fn without blocking. The returned Result resolves when fn
// returns; callers that do not care may drop it.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) *Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return Resolved(ErrClosed)
	}

	r := newResult()
	select {
	case p.jobs <- job{name: name, fn: fn, result: r}:
		return r
	default:
		p.logger.WithField("task", name).Warn("[DISPATCH] queue full, dropping job")
		r.resolve(ErrQueueFull)
		return r
	}
}

// Close stops accepting work, runs what is already queued and waits for
// the workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.result.resolve(p.run(j))
	}
}

// run executes one job under a pprof label so stuck writes are easy to spot
// in goroutine dumps.
func (p *Pool) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: %s panicked: %v", j.name, r)
			p.logger.WithField("task", j.name).Error("[DISPATCH] job panicked")
		}
	}()
	pprof.Do(p.ctx, pprof.Labels("task", j.name), func(ctx context.Context) {
		err = j.fn(ctx)
	})
	return err
}
