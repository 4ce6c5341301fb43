// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the slice of the time package the broker and the terminal
// tools depend on.
type Clock interface {
	Now() time.Time

	// After delivers the clock's time on the returned channel once d
	// has elapsed; immediately when d <= 0.
	After(d time.Duration) <-chan time.Time
}

// Real returns the wall clock.
func Real() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
