// Package scheduler runs one workflow at a time on a background goroutine so
// the interactive surface never blocks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrBusy is returned by Start while another task is active.
var ErrBusy = errors.New("a task is already running")

// Task is a started workflow. It doubles as its own completion future.
type Task struct {
	Description string
	StartedAt   time.Time

	done     chan struct{}
	err      error
	finished time.Time
}

// Done returns a channel closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Err returns the task error once Done is closed, and nil before.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Duration returns the run time of a finished task.
func (t *Task) Duration() time.Duration {
	select {
	case <-t.done:
		return t.finished.Sub(t.StartedAt)
	default:
		return 0
	}
}

// PanicError wraps a value recovered from a panicking routine.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Scheduler owns the single worker slot.
type Scheduler struct {
	mu       sync.Mutex
	active   *Task
	controls func(enabled bool)
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New returns a Scheduler. controls, if non-nil, is called with false when a
// task starts and with true once it finishes.
func New(controls func(enabled bool)) *Scheduler {
	return &Scheduler{controls: controls, logger: slog.Default()}
}

// WithLogger sets the structured logger.
func (s *Scheduler) WithLogger(l *slog.Logger) *Scheduler {
	s.logger = l
	return s
}

// Busy reports whether a task is running.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active != nil
}

// Active returns the running task, or nil.
func (s *Scheduler) Active() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// Start runs routine on a new goroutine. The routine's context carries the
// caller's values but is never canceled: started work runs to completion.
func (s *Scheduler) Start(ctx context.Context, description string, routine func(ctx context.Context) error) (*Task, error) {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, s.active.Description)
	}

	task := &Task{
		Description: description,
		StartedAt:   time.Now(),
		done:        make(chan struct{}),
	}
	s.active = task
	s.mu.Unlock()

	if s.controls != nil {
		s.controls(false)
	}

	s.logger.DebugContext(ctx, "task started", "task", description)

	runCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		task.err = s.invoke(runCtx, routine)
		task.finished = time.Now()

		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()

		if s.controls != nil {
			s.controls(true)
		}

		s.logger.DebugContext(runCtx, "task finished",
			"task", description,
			"duration_ms", task.finished.Sub(task.StartedAt).Milliseconds(),
			"error", task.err,
		)

		close(task.done)
	}()

	return task, nil
}

// Shutdown waits for the active task, if any, to finish.
func (s *Scheduler) Shutdown() {
	s.wg.Wait()
}

func (s *Scheduler) invoke(ctx context.Context, routine func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.logger.ErrorContext(ctx, "task panicked", "panic", r, "stack", string(stack))
			err = &PanicError{Value: r, Stack: stack}
		}
	}()

	return routine(ctx)
}
