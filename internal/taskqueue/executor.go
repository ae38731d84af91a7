// File: internal/taskqueue/executor.go
// Package taskqueue provides a small background task executor shared by
// the lifecycle engine's asynchronous firmware load (component D) and the
// name-service handler's dispatch of channel create/destroy events
// (component I).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapted from the teacher's internal/concurrency.Executor: a single
// worker goroutine draining an eapache/queue.Queue guarded by a condition
// variable. The teacher used this to fan work out across NUMA-pinned
// workers; this module has no NUMA axis, so one worker per Executor is
// enough to guarantee in-order completion per processor, which the
// lifecycle engine's "at most one in-flight load" invariant depends on.

package taskqueue

import (
	"sync"

	"github.com/eapache/queue"
)

// Task is a unit of deferred work.
type Task func()

// Executor runs submitted tasks on a single background goroutine, in
// submission order.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
	done   chan struct{}
}

// NewExecutor starts the worker goroutine.
func NewExecutor() *Executor {
	e := &Executor{
		q:    queue.New(),
		done: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// Submit enqueues task for execution, returning ErrClosed if the executor
// has been closed.
func (e *Executor) Submit(task Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.q.Add(task)
	e.cond.Signal()
	return nil
}

// Close stops the worker after any currently queued tasks drain.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
	<-e.done
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for e.q.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.q.Length() == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		task := e.q.Remove().(Task)
		e.mu.Unlock()

		task()
	}
}
