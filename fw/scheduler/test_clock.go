/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package scheduler

import "time"

// TestClock is a manually advanced clock for deterministic tests: pair it
// with NewWithClock and drive the loop with Advance, which also runs every
// event that came due.
type TestClock struct {
	now   time.Time
	sched *Scheduler
}

// NewTestClock constructs a clock starting at start, plus a Scheduler
// bound to it.
func NewTestClock(start time.Time) (*TestClock, *Scheduler) {
	c := &TestClock{now: start}
	c.sched = NewWithClock(c.Now)
	return c, c.sched
}

// Now returns the clock's current time.
func (c *TestClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d and drains every event that came
// due, in fire-time order. The clock steps to each event's fire time before
// running it, so a callback sees the time it was scheduled for, and an event
// it schedules that falls within the window also runs before Advance returns.
func (c *TestClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		next, ok := c.sched.NextFireTime()
		if !ok || next.After(target) {
			break
		}
		if next.After(c.now) {
			c.now = next
		}
		c.sched.RunUntil(c.now)
	}
	c.now = target
}
