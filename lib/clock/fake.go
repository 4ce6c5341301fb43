// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Timers created by After
// stay pending until an Advance reaches their deadline. Safe for
// concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time

	// timers is ordered by deadline, ties in registration order.
	timers []fakeTimer

	// registered is closed and replaced each time a timer is added,
	// waking WaitForTimers callers.
	registered chan struct{}
}

type fakeTimer struct {
	deadline time.Time
	fire     chan time.Time
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start, registered: make(chan struct{})}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	fire := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		fire <- c.now
		return fire
	}
	timer := fakeTimer{deadline: c.now.Add(d), fire: fire}
	index, _ := slices.BinarySearchFunc(c.timers, timer.deadline, func(existing fakeTimer, deadline time.Time) int {
		if existing.deadline.After(deadline) {
			return 1
		}
		return -1
	})
	c.timers = slices.Insert(c.timers, index, timer)
	close(c.registered)
	c.registered = make(chan struct{})
	return fire
}

// Advance moves the clock forward by d and fires every timer whose
// deadline has been reached, earliest first.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := 0
	for due < len(c.timers) && !c.timers[due].deadline.After(now) {
		due++
	}
	fired := slices.Clone(c.timers[:due])
	c.timers = slices.Delete(c.timers, 0, due)
	c.mu.Unlock()

	for _, timer := range fired {
		timer.fire <- now
	}
}

// WaitForTimers blocks until at least n timers are pending. Tests call
// it before Advance so the advance cannot land before the code under
// test has started waiting.
func (c *FakeClock) WaitForTimers(n int) {
	for {
		c.mu.Lock()
		if len(c.timers) >= n {
			c.mu.Unlock()
			return
		}
		registered := c.registered
		c.mu.Unlock()
		<-registered
	}
}

// Pending returns the number of timers that have not fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
