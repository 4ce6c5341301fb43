// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"log/slog"
	"sync/atomic"

	"github.com/arduino-utils/arduino/lib/netutil"
)

// Broadcaster delivers field events to the registry's subscribers.
// Delivery is best effort: a subscriber whose write fails for any
// reason is pruned from every field and closed. There is no retry and
// no buffering on the daemon side.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger

	failed []Subscriber

	deliveries atomic.Uint64
	dropped    atomic.Uint64
	bytes      atomic.Uint64
}

// NewBroadcaster returns a broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{registry: registry, logger: logger}
}

// Broadcast writes event.Line to every subscriber of event.Field, then
// prunes the ones that failed. It returns the number of successful
// deliveries and the number of subscribers dropped.
func (b *Broadcaster) Broadcast(event Event) (delivered, dropped int) {
	if event.Field < 0 || event.Field >= len(b.registry.fields) {
		return 0, 0
	}

	// Failures are collected first: pruning while iterating the field's
	// set would mutate the map under the range.
	b.failed = b.failed[:0]
	for _, subscriber := range b.registry.fields[event.Field] {
		if err := subscriber.TryWrite(event.Line); err != nil {
			b.logFailure(subscriber, event.Field, err)
			b.failed = append(b.failed, subscriber)
			continue
		}
		delivered++
	}

	for _, subscriber := range b.failed {
		if b.registry.Prune(subscriber) {
			dropped++
		}
		subscriber.Close()
	}
	clear(b.failed)

	b.deliveries.Add(uint64(delivered))
	b.dropped.Add(uint64(dropped))
	b.bytes.Add(uint64(delivered * len(event.Line)))
	return delivered, dropped
}

func (b *Broadcaster) logFailure(subscriber Subscriber, field int, err error) {
	switch {
	case netutil.IsExpectedCloseError(err):
		b.logger.Debug("subscriber disconnected",
			"subscriber", subscriber.ID(), "field", field, "error", err)
	case netutil.IsBackpressure(err):
		b.logger.Warn("dropping subscriber that is not draining its socket",
			"subscriber", subscriber.ID(), "field", field, "error", err)
	default:
		b.logger.Warn("dropping subscriber after write failure",
			"subscriber", subscriber.ID(), "field", field, "error", err)
	}
}

// Deliveries returns the number of lines written to subscribers.
func (b *Broadcaster) Deliveries() uint64 { return b.deliveries.Load() }

// Dropped returns the number of subscribers pruned after a failed write.
func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }

// BytesDelivered returns the total bytes written to subscribers.
func (b *Broadcaster) BytesDelivered() uint64 { return b.bytes.Load() }
