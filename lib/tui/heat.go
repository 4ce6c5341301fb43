// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// HeatDecayDuration is how long a field glows after a reading.
// Heat starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 2 * time.Second

// HeatTickInterval is the re-render interval while any field is hot.
const HeatTickInterval = 100 * time.Millisecond

// HeatTracker maps field indices to the time of their last reading for
// animated change highlighting. Each reading "ignites" a field, which
// then decays from full intensity to zero over [HeatDecayDuration].
//
// Not safe for concurrent use; bubbletea models own one each.
type HeatTracker struct {
	ignitions map[int]time.Time
}

// NewHeatTracker creates an empty heat tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{
		ignitions: make(map[int]time.Time),
	}
}

// Ignite records a reading for field. Resets the decay timer if the
// field was already hot.
func (tracker *HeatTracker) Ignite(field int, now time.Time) {
	tracker.ignitions[field] = now
}

// Heat returns the current intensity for field: 1.0 at ignition,
// linearly decaying to 0.0 over [HeatDecayDuration].
func (tracker *HeatTracker) Heat(field int, now time.Time) float64 {
	ignition, exists := tracker.ignitions[field]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(ignition)
	if elapsed >= HeatDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(HeatDecayDuration)
}

// HasHot reports whether any field still has heat, meaning the tick
// timer should keep running. Fully decayed fields are forgotten.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	hot := false
	for field, ignition := range tracker.ignitions {
		if now.Sub(ignition) >= HeatDecayDuration {
			delete(tracker.ignitions, field)
			continue
		}
		hot = true
	}
	return hot
}
