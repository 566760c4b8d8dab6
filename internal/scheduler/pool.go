// Package scheduler provides the bounded worker pool executing job run tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrQueueFull indicates the submission queue is at capacity and admission
// was rejected.
var ErrQueueFull = errors.New("scheduler queue full")

// ErrPoolClosed indicates the pool is no longer accepting tasks.
var ErrPoolClosed = errors.New("scheduler pool closed")

const (
	defaultWidth      = 2
	defaultQueueDepth = 64
)

// Task is one unit of work bound to a single job for its entire lifetime.
// Fail is invoked when the task panics, so an internal fault is converted
// into a failed job instead of crashing the pool.
type Task struct {
	JobID string
	Run   func(ctx context.Context)
	Fail  func(msg string)
}

// Options configure the worker pool.
type Options struct {
	Width      int          // number of workers; default 2
	QueueDepth int          // FIFO admission queue capacity; default 64
	Logger     *slog.Logger // optional
}

// Pool executes run tasks on a fixed number of workers. At most Width jobs
// run concurrently; additional submissions queue FIFO up to QueueDepth and
// are rejected beyond that.
type Pool struct {
	tasks  chan Task
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
	width   int
}

// NewPool constructs a Pool with the given options.
func NewPool(opts Options) *Pool {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "scheduler")
	}
	return &Pool{
		tasks:  make(chan Task, depth),
		logger: logger,
		width:  width,
	}
}

// Start launches the workers. They run until ctx is cancelled and the queue
// has been drained of tasks admitted before cancellation.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.width; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	if p.logger != nil {
		p.logger.Info("worker pool started", "width", p.width, "queue_depth", cap(p.tasks))
	}
}

// Submit admits a task FIFO. It never blocks: when the queue is at capacity
// it returns ErrQueueFull so the caller can reject the request. The send
// happens under the pool lock so it can never race Shutdown's channel close.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops admission and waits for in-flight tasks to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	if p.logger != nil {
		p.logger.Info("worker pool stopped")
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(ctx, id, task)
		}
	}
}

// runTask executes one task, converting a panic into a failed job so a
// faulty task never takes down the pool or affects other jobs.
func (p *Pool) runTask(ctx context.Context, workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Error("task panic",
					slog.String("job_id", task.JobID),
					slog.Int("worker", workerID),
					slog.Any("error", r),
					slog.String("stack", string(debug.Stack())))
			}
			if task.Fail != nil {
				task.Fail(fmt.Sprintf("internal fault: %v", r))
			}
		}
	}()
	task.Run(ctx)
}
