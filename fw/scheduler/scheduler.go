/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package scheduler implements the single-threaded cooperative event loop
// the forwarding core runs on: one goroutine pops the earliest-due timer off a
// priority queue and runs its callback to completion before touching the
// next one. There is no async/await and no recursion through the call
// stack; a callback that wants to run again schedules a new timer.
package scheduler

import (
	"time"

	pq "github.com/named-data/yanfd/std/types/priority_queue"
)

// EventId is a scoped handle for a scheduled callback. Calling Cancel
// stops the callback from firing; dropping a handle in a language with
// destructors would cancel implicitly, which Go cannot do, so Cancel is
// explicit.
type EventId struct {
	item *pq.Item[*event, int64]
}

type event struct {
	fire      func()
	cancelled bool
}

// Scheduler owns the timer queue for one Forwarder instance. Nothing here
// is a package-level singleton; the Forwarder owns one, which also makes
// multi-instance testing possible. Events are ordered by fire time in nanoseconds since the Unix
// epoch.
type Scheduler struct {
	queue pq.Queue[*event, int64]
	now   func() time.Time
}

// New constructs an empty Scheduler using wall-clock time.
func New() *Scheduler {
	return &Scheduler{queue: pq.New[*event, int64](), now: time.Now}
}

// NewWithClock constructs a Scheduler using a caller-supplied clock, for
// deterministic tests that need to fast-forward virtual time.
func NewWithClock(now func() time.Time) *Scheduler {
	return &Scheduler{queue: pq.New[*event, int64](), now: now}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Schedule arranges for f to run after d, returning a handle that cancels
// the callback if invoked before it fires. Callbacks must re-acquire any
// weak reference to their target entry, since the entry may have been
// erased in the meantime.
func (s *Scheduler) Schedule(d time.Duration, f func()) EventId {
	ev := &event{fire: f}
	item := s.queue.Push(ev, s.now().Add(d).UnixNano())
	return EventId{item: item}
}

// Cancel stops a scheduled callback from firing. Safe to call more than
// once, and safe to call after the event already fired.
func (s *Scheduler) Cancel(id EventId) {
	if id.item == nil {
		return
	}
	id.item.Value().cancelled = true
}

// RunUntil drains every event due at or before now, in fire-time order.
// A callback that schedules new events will see them picked up by the same
// call if their fire time is still <= now; this mirrors a real event loop
// processing a backlog after being descheduled (e.g. in tests).
func (s *Scheduler) RunUntil(now time.Time) {
	for s.queue.Len() > 0 && s.queue.PeekPriority() <= now.UnixNano() {
		ev := s.queue.Pop()
		if ev.cancelled {
			continue
		}
		ev.fire()
	}
}

// Empty reports whether any events remain scheduled.
func (s *Scheduler) Empty() bool {
	return s.queue.Len() == 0
}

// NextFireTime returns the fire time of the earliest pending event.
func (s *Scheduler) NextFireTime() (time.Time, bool) {
	if s.queue.Len() == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, s.queue.PeekPriority()), true
}

// Run blocks, sleeping until each event's fire time and then running it, in
// fire-time order, until the queue is empty. This is the production event
// loop; tests typically prefer RunUntil with an injected clock instead.
func (s *Scheduler) Run() {
	for s.queue.Len() > 0 {
		next := time.Unix(0, s.queue.PeekPriority())
		if d := next.Sub(s.now()); d > 0 {
			time.Sleep(d)
		}
		ev := s.queue.Pop()
		if ev.cancelled {
			continue
		}
		ev.fire()
	}
}
