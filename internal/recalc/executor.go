package recalc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rpgo/btc-annuity/internal/domain"
)

// ErrCancelled is returned by Await on a future that was cancelled.
var ErrCancelled = errors.New("calculation cancelled")

// Task computes scenario results.
type Task func(ctx context.Context) (domain.ScenarioResults, error)

// Future is a handle on a submitted task.
type Future interface {
	// Await blocks until the task finishes, the future is cancelled or ctx
	// is done.
	Await(ctx context.Context) (domain.ScenarioResults, error)
	// Cancel abandons the task immediately. Its result is discarded.
	Cancel()
}

// Executor runs tasks.
type Executor interface {
	Submit(ctx context.Context, task Task) Future
}

// SyncExecutor runs each task in the caller's goroutine during Submit.
type SyncExecutor struct{}

func (SyncExecutor) Submit(ctx context.Context, task Task) Future {
	f := newFuture(func() {})
	f.complete(runTask(ctx, task))
	return f
}

// GoExecutor runs each task in its own goroutine.
type GoExecutor struct{}

func (GoExecutor) Submit(ctx context.Context, task Task) Future {
	taskCtx, cancel := context.WithCancel(ctx)
	f := newFuture(cancel)
	go func() {
		defer cancel()
		f.complete(runTask(taskCtx, task))
	}()
	return f
}

// runTask converts a panicking task into an error.
func runTask(ctx context.Context, task Task) (results domain.ScenarioResults, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("calculation panicked: %v", r)
		}
	}()
	return task(ctx)
}

type future struct {
	once      sync.Once
	done      chan struct{}
	cancelled chan struct{}
	cancel    context.CancelFunc
	cancelOne sync.Once

	results domain.ScenarioResults
	err     error
}

func newFuture(cancel context.CancelFunc) *future {
	return &future{
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
		cancel:    cancel,
	}
}

func (f *future) complete(results domain.ScenarioResults, err error) {
	f.once.Do(func() {
		f.results, f.err = results, err
		close(f.done)
	})
}

func (f *future) Cancel() {
	f.cancelOne.Do(func() {
		close(f.cancelled)
		f.cancel()
	})
}

func (f *future) Await(ctx context.Context) (domain.ScenarioResults, error) {
	select {
	case <-f.cancelled:
		return nil, ErrCancelled
	default:
	}

	select {
	case <-f.cancelled:
		return nil, ErrCancelled
	case <-f.done:
		select {
		case <-f.cancelled:
			return nil, ErrCancelled
		default:
		}
		return f.results, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
