// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time be injected. The broker's "no data yet"
// back-off and arduino-watch's reading ages go through a Clock, so
// tests can drive them with a FakeClock:
//
//	fake := clock.Fake(time.Unix(1_700_000_000, 0))
//	relay, _ := broker.New(broker.Config{Clock: fake, ...})
//	go relay.Run(ctx)
//	fake.WaitForTimers(1) // parked in the retry wait
//	fake.Advance(broker.DefaultRetryInterval)
package clock
