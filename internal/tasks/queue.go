package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options sizes the worker pool.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Queue accepts submissions and runs them on a fixed pool of workers.
type Queue struct {
	store    Store
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
	jobs     chan Task
	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool
	started  bool
	group    *errgroup.Group
	now      func() time.Time
}

func NewQueue(store Store, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		store:    store,
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		jobs:     make(chan Task, opts.QueueSize),
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
}

// Register binds a handler to a task kind. Registering a kind twice replaces the handler.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Submit records the task as queued and hands it to the pool without waiting for it to run.
func (q *Queue) Submit(ctx context.Context, kind string, payload map[string]string) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", ErrQueueClosed
	}
	if _, ok := q.handlers[kind]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	task := Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		Status:    StatusQueued,
		CreatedAt: q.now().UTC(),
	}
	if err := q.store.Put(ctx, task); err != nil {
		return "", fmt.Errorf("record task: %w", err)
	}
	select {
	case q.jobs <- task:
		q.logger.Debug("task queued", "task_id", task.ID, "kind", kind)
		return task.ID, nil
	default:
		task.Status = StatusFailed
		task.Error = ErrQueueFull.Error()
		if err := q.store.Put(ctx, task); err != nil {
			q.logger.Error("record rejected task", "task_id", task.ID, "error", err)
		}
		return "", ErrQueueFull
	}
}

// Get returns the stored state of a task.
func (q *Queue) Get(ctx context.Context, id string) (Task, error) {
	return q.store.Get(ctx, id)
}

// Start launches the workers. Tasks run under ctx; cancelling it aborts in-flight work.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		q.group.Go(func() error {
			for task := range q.jobs {
				q.run(ctx, task)
			}
			return nil
		})
	}
	q.logger.Info("task workers started", "workers", q.workers)
}

// Stop closes intake and waits until queued and in-flight tasks finish.
func (q *Queue) Stop() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	g := q.group
	q.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

func (q *Queue) run(ctx context.Context, task Task) {
	q.mu.RLock()
	h := q.handlers[task.Kind]
	q.mu.RUnlock()

	started := q.now().UTC()
	task.Status = StatusRunning
	task.StartedAt = &started
	q.put(ctx, task)

	runCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	result, err := q.invoke(runCtx, h, task)

	finished := q.now().UTC()
	task.FinishedAt = &finished
	if err != nil {
		task.Status = StatusFailed
		task.Error = err.Error()
		q.logger.Error("task failed", "task_id", task.ID, "kind", task.Kind, "error", err)
	} else {
		task.Status = StatusSucceeded
		task.Result = result
		q.logger.Info("task succeeded", "task_id", task.ID, "kind", task.Kind, "duration", finished.Sub(started))
	}
	// Record the outcome even when the pool context is already cancelled.
	q.put(context.WithoutCancel(ctx), task)
}

func (q *Queue) invoke(ctx context.Context, h Handler, task Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "task_id", task.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if h == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, task.Kind)
	}
	return h(ctx, task.Payload)
}

func (q *Queue) put(ctx context.Context, task Task) {
	if err := q.store.Put(ctx, task); err != nil {
		q.logger.Error("update task state", "task_id", task.ID, "status", task.Status, "error", err)
	}
}
