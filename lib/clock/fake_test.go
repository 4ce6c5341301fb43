// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var start = time.Unix(1_700_000_000, 0)

func fired(channel <-chan time.Time) bool {
	select {
	case <-channel:
		return true
	default:
		return false
	}
}

func TestFakeAdvanceMovesNow(t *testing.T) {
	fake := Fake(start)
	fake.Advance(250 * time.Millisecond)
	if want := start.Add(250 * time.Millisecond); !fake.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", fake.Now(), want)
	}
}

func TestFakeTimerFiresAtDeadline(t *testing.T) {
	fake := Fake(start)
	retry := fake.After(250 * time.Millisecond)

	fake.Advance(249 * time.Millisecond)
	if fired(retry) {
		t.Fatal("timer fired a millisecond early")
	}
	fake.Advance(time.Millisecond)
	if !fired(retry) {
		t.Fatal("timer did not fire at its deadline")
	}
	if fake.Pending() != 0 {
		t.Fatalf("Pending() = %d after firing, want 0", fake.Pending())
	}
}

func TestFakeAdvanceFiresOnlyDueTimers(t *testing.T) {
	fake := Fake(start)
	late := fake.After(3 * time.Second)
	early := fake.After(time.Second)
	middle := fake.After(2 * time.Second)

	fake.Advance(2 * time.Second)
	if !fired(early) || !fired(middle) {
		t.Fatal("due timers did not fire")
	}
	if fired(late) {
		t.Fatal("timer fired before its deadline")
	}
	if fake.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", fake.Pending())
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	fake := Fake(start)
	if !fired(fake.After(0)) || !fired(fake.After(-time.Second)) {
		t.Fatal("After(<=0) should fire without an Advance")
	}
	if fake.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", fake.Pending())
	}
}

func TestWaitForTimersBlocksUntilRegistered(t *testing.T) {
	fake := Fake(start)
	waited := make(chan struct{})
	go func() {
		fake.WaitForTimers(2)
		close(waited)
	}()

	fake.After(time.Second)
	select {
	case <-waited:
		t.Fatal("WaitForTimers(2) returned with one timer pending")
	case <-time.After(20 * time.Millisecond): //nolint:realclock give the waiter a chance to return early
	}

	fake.After(time.Second)
	select {
	case <-waited:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("WaitForTimers(2) did not return after the second timer")
	}
}
