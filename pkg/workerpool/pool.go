// Package workerpool provides a bounded worker pool for fire-and-forget
// background work. Submission never blocks: when the queue is full the task
// is rejected and the caller decides what to do with it.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("task queue is full")
	// ErrStopped is returned by Submit after Stop has been called.
	ErrStopped = errors.New("pool is shutting down")
)

// Task represents a unit of work to be processed
type Task struct {
	ID      string
	Payload any
	Context context.Context
}

// WorkerFunc processes one task. Errors wrapped with Permanent are not retried.
type WorkerFunc func(ctx context.Context, task *Task) error

// ResultFunc observes the final outcome of every task.
type ResultFunc func(task *Task, err error)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Config holds worker pool configuration
type Config struct {
	// Workers is the number of concurrent workers
	Workers int
	// QueueSize is the size of the task queue
	QueueSize int
	// MaxRetries is the maximum number of retries for failed tasks
	MaxRetries int
	// RetryDelay is the base delay between retries, multiplied by the attempt number
	RetryDelay time.Duration
}

// DefaultConfig returns defaults sized for a single API process
func DefaultConfig() Config {
	return Config{
		Workers:    4,
		QueueSize:  1024,
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
	}
}

type counters struct {
	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	queued    atomic.Int64
}

// Pool runs tasks on a fixed set of goroutines fed by a bounded queue.
type Pool struct {
	cfg      Config
	run      WorkerFunc
	onResult ResultFunc
	logger   *zap.Logger

	// mu orders Submit against the close of queue in Stop.
	mu      sync.RWMutex
	closed  bool
	queue   chan *Task
	workers sync.WaitGroup

	// base is cancelled when Stop gives up waiting.
	base  context.Context
	abort context.CancelFunc

	n counters
}

// Option configures a Pool
type Option func(*Pool)

// WithResultFunc registers a callback invoked once per task after its last attempt.
func WithResultFunc(fn ResultFunc) Option {
	return func(p *Pool) { p.onResult = fn }
}

// New builds a pool. Zero Workers or QueueSize take the defaults.
func New(cfg Config, fn WorkerFunc, logger *zap.Logger, opts ...Option) (*Pool, error) {
	if fn == nil {
		return nil, errors.New("worker function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	base, abort := context.WithCancel(context.Background())
	p := &Pool{
		cfg:    cfg,
		run:    fn,
		logger: logger,
		queue:  make(chan *Task, cfg.QueueSize),
		base:   base,
		abort:  abort,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	c.MaxRetries = max(c.MaxRetries, 0)
	return c
}

// Start launches the workers
func (p *Pool) Start() {
	p.workers.Add(p.cfg.Workers)
	for i := range p.cfg.Workers {
		go func(id int) {
			defer p.workers.Done()
			for task := range p.queue {
				p.n.queued.Add(-1)
				p.handle(id, task)
			}
		}(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue_size", p.cfg.QueueSize))
}

// Submit enqueues task or fails at once with ErrQueueFull or ErrStopped.
func (p *Pool) Submit(task *Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.n.rejected.Add(1)
		return ErrStopped
	}
	select {
	case p.queue <- task:
		p.n.submitted.Add(1)
		p.n.queued.Add(1)
		return nil
	default:
		p.n.rejected.Add(1)
		return ErrQueueFull
	}
}

// Stop rejects new tasks and waits for queued ones to drain until ctx is
// done. Tasks still running when ctx expires have their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Info("draining worker pool", zap.Int64("queued", p.n.queued.Load()))

	drained := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("drain worker pool: %w", ctx.Err())
		p.logger.Warn("worker pool drain timed out, cancelling running tasks")
	}
	p.abort()
	<-drained
	return err
}

func (p *Pool) handle(workerID int, task *Task) {
	ctx := p.base
	if task.Context != nil {
		var release context.CancelFunc
		ctx, release = mergeCancel(task.Context, p.base)
		defer release()
	}

	err := p.attempt(ctx, task)
	if err != nil {
		p.n.failed.Add(1)
		p.logger.Warn("task failed",
			zap.String("task_id", task.ID),
			zap.Int("worker_id", workerID),
			zap.Error(err))
	} else {
		p.n.completed.Add(1)
	}
	if p.onResult != nil {
		p.onResult(task, err)
	}
}

// attempt runs task up to MaxRetries+1 times, sleeping RetryDelay*n before
// the n-th retry.
func (p *Pool) attempt(ctx context.Context, task *Task) error {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.run(ctx, task)
		if err == nil || IsPermanent(err) {
			return err
		}
		if n > p.cfg.MaxRetries {
			return fmt.Errorf("task failed after %d retries: %w", p.cfg.MaxRetries, err)
		}

		p.n.retried.Add(1)
		p.logger.Debug("retrying task",
			zap.String("task_id", task.ID),
			zap.Int("attempt", n),
			zap.Error(err))

		wait := time.NewTimer(p.cfg.RetryDelay * time.Duration(n))
		select {
		case <-ctx.Done():
			wait.Stop()
		case <-wait.C:
		}
	}
}

// mergeCancel returns a context carrying the values of parent that is also
// cancelled when other is.
func mergeCancel(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Stats is a snapshot of the pool's counters
type Stats struct {
	TasksSubmitted int64
	TasksRejected  int64
	TasksCompleted int64
	TasksFailed    int64
	TasksRetried   int64
	QueueDepth     int64
	QueueCapacity  int
	Workers        int
}

func (p *Pool) Stats() Stats {
	return Stats{
		TasksSubmitted: p.n.submitted.Load(),
		TasksRejected:  p.n.rejected.Load(),
		TasksCompleted: p.n.completed.Load(),
		TasksFailed:    p.n.failed.Load(),
		TasksRetried:   p.n.retried.Load(),
		QueueDepth:     p.n.queued.Load(),
		QueueCapacity:  p.cfg.QueueSize,
		Workers:        p.cfg.Workers,
	}
}
