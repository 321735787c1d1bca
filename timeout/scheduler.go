// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package timeout multiplexes protocol timers onto a single worker.
//
// Every task is registered under a key. Scheduling a key that already has
// a live task replaces it, so a key has at most one pending task at any
// time. Cancellation marks a task inert; a task the worker has already
// dequeued still runs, but as a no-op.
package timeout

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/clog"
)

// Task is a scheduled callback.
type Task struct {
	key       any
	due       time.Time
	fn        func()
	sched     *Scheduler
	index     int // position in the heap, -1 once removed
	cancelled atomic.Bool
	executed  atomic.Bool
}

// Due returns the time the task is scheduled for.
func (t *Task) Due() time.Time { return t.due }

// Cancelled reports whether the task was cancelled or replaced.
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Executed reports whether the callback ran.
func (t *Task) Executed() bool { return t.executed.Load() }

// Cancel marks the task inert and removes it from the queue if it is still
// there. It is safe to call more than once.
func (t *Task) Cancel() {
	if t.sched != nil {
		t.sched.cancelTask(t)
		return
	}
	t.cancelled.Store(true)
}

func (t *Task) run(log *clog.Clog) {
	if t.cancelled.Load() {
		return
	}
	t.executed.Store(true)
	defer func() {
		if r := recover(); r != nil {
			log.Critical("timeout task %v panic: %v", t.key, r)
		}
	}()
	t.fn()
}

// taskQueue implements heap.Interface ordered by due time.
type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool { return q[i].due.Before(q[j].due) }

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Scheduler runs tasks in due order on one goroutine.
type Scheduler struct {
	clog.Clog

	mu      sync.Mutex
	queue   taskQueue
	handles map[any]*Task

	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	running atomic.Bool
	stopped atomic.Bool
}

// New returns a scheduler. Call Start to run the worker.
func New() *Scheduler {
	return &Scheduler{
		Clog:    clog.NewLogger("timeout => "),
		handles: make(map[any]*Task),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling it again is a no-op.
func (s *Scheduler) Start() {
	if s.stopped.Load() || !s.running.CompareAndSwap(false, true) {
		return
	}
	go s.worker()
}

// Stop halts the worker and cancels every pending task. A stopped
// scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.quit)
	if s.running.Load() {
		<-s.done
	}
	s.mu.Lock()
	for _, t := range s.queue {
		t.cancelled.Store(true)
		t.index = -1
	}
	s.queue = nil
	s.handles = make(map[any]*Task)
	s.mu.Unlock()
}

// Schedule runs fn after d under key, replacing any live task with the
// same key. key must be comparable.
func (s *Scheduler) Schedule(key any, d time.Duration, fn func()) *Task {
	return s.ScheduleAt(key, time.Now().Add(d), fn)
}

// ScheduleAt runs fn at due under key, replacing any live task with the
// same key.
func (s *Scheduler) ScheduleAt(key any, due time.Time, fn func()) *Task {
	t := &Task{key: key, due: due, fn: fn, sched: s, index: -1}
	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		t.cancelled.Store(true)
		return t
	}
	if old, ok := s.handles[key]; ok {
		s.removeLocked(old)
	}
	s.handles[key] = t
	heap.Push(&s.queue, t)
	s.mu.Unlock()
	s.notify()
	return t
}

// Cancel cancels the live task registered under key and reports whether
// there was one.
func (s *Scheduler) Cancel(key any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.handles[key]
	if ok {
		s.removeLocked(t)
	}
	return ok
}

// Pending reports whether key has a live task.
func (s *Scheduler) Pending(key any) bool {
	s.mu.Lock()
	_, ok := s.handles[key]
	s.mu.Unlock()
	return ok
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) cancelTask(t *Task) {
	s.mu.Lock()
	s.removeLocked(t)
	s.mu.Unlock()
}

// removeLocked cancels t and drops it from the queue and handle table.
func (s *Scheduler) removeLocked(t *Task) {
	t.cancelled.Store(true)
	if cur, ok := s.handles[t.key]; ok && cur == t {
		delete(s.handles, t.key)
	}
	if t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) worker() {
	defer close(s.done)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	var ready []*Task
	for {
		ready = ready[:0]
		wait := time.Duration(-1)
		now := time.Now()

		s.mu.Lock()
		for len(s.queue) > 0 {
			t := s.queue[0]
			if t.due.After(now) {
				wait = t.due.Sub(now)
				break
			}
			heap.Pop(&s.queue)
			if cur, ok := s.handles[t.key]; ok && cur == t {
				delete(s.handles, t.key)
			}
			ready = append(ready, t)
		}
		s.mu.Unlock()

		for _, t := range ready {
			t.run(&s.Clog)
		}
		if len(ready) > 0 {
			continue
		}

		var fire <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			fire = timer.C
		}
		select {
		case <-s.quit:
			return
		case <-s.wake:
		case <-fire:
		}
		timer.Stop()
	}
}
