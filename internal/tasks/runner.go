package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soundpack/backend/internal/logging"
)

// Task is one detached unit of work: an audit write, a welcome email. It runs
// outside any request lifecycle with its own error boundary; a failing task
// is logged and dropped, never propagated.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config controls the concurrency characteristics of the runner.
type Config struct {
	QueueSize int
	Workers   int
	// Timeout bounds each task execution.
	Timeout time.Duration
}

// Runner executes fire-and-forget tasks on a bounded worker pool.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration

	jobs   chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner constructs a background worker pool for detached tasks.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan Task, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}

	return r
}

// Enqueue schedules a task without blocking the caller beyond queue
// admission. A full or closed queue drops the task with a log line; callers
// never depend on the outcome.
func (r *Runner) Enqueue(task Task) {
	if task.Fn == nil {
		return
	}

	select {
	case <-r.ctx.Done():
		r.logger.Warn("task dropped, runner closed", "task", task.Name)
		return
	default:
	}

	select {
	case r.jobs <- task:
	default:
		r.logger.Warn("task dropped, queue full", "task", task.Name)
	}
}

// Shutdown waits for the worker pool to drain outstanding tasks.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.once.Do(func() {
		r.cancel()
		close(r.jobs)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for task := range r.jobs {
		r.run(task)
	}
}

func (r *Runner) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ctx = logging.WithLogger(ctx, r.logger.With("task", task.Name))
	ctx, span := logging.StartSpan(ctx, "tasks."+task.Name)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task panicked", "task", task.Name, "panic", rec)
		}
	}()

	if err := task.Fn(ctx); err != nil {
		r.logger.Error("task failed", "task", task.Name, "error", err)
	}
}
