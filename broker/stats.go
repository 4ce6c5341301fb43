// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

// Stats is a point-in-time view of the broker's counters. Counters are
// monotonic over the broker's lifetime; subscriber counts are the
// registry sizes as of the last commit or prune.
type Stats struct {
	State string `json:"state"`

	Rows         uint64 `json:"rows"`
	Fields       uint64 `json:"fields"`
	Overflows    uint64 `json:"line_overflows"`
	ExcessFields uint64 `json:"excess_fields"`

	Deliveries         uint64 `json:"deliveries"`
	BytesDelivered     uint64 `json:"bytes_delivered"`
	DroppedSubscribers uint64 `json:"dropped_subscribers"`

	Connections        uint64 `json:"connections"`
	SubscribeRequests  uint64 `json:"subscribe_requests"`
	SendRequests       uint64 `json:"send_requests"`
	HandshakeFailures  uint64 `json:"handshake_failures"`
	DeviceBytesWritten uint64 `json:"device_bytes_written"`

	// Subscribers holds the per-field set sizes, index = field.
	Subscribers          []int64 `json:"subscribers"`
	UniqueSubscribers    int64   `json:"unique_subscribers"`
	PendingSubscriptions int     `json:"pending_subscriptions"`
}

// Stats returns a snapshot of the broker's counters. Safe to call from
// any goroutine.
func (b *Broker) Stats() Stats {
	subscribers := make([]int64, len(b.subscribers))
	for field := range b.subscribers {
		subscribers[field] = b.subscribers[field].Load()
	}
	return Stats{
		State:                b.State().String(),
		Rows:                 b.parser.Rows(),
		Fields:               b.parser.Fields(),
		Overflows:            b.parser.Overflows(),
		ExcessFields:         b.parser.ExcessFields(),
		Deliveries:           b.broadcaster.Deliveries(),
		BytesDelivered:       b.broadcaster.BytesDelivered(),
		DroppedSubscribers:   b.broadcaster.Dropped(),
		Connections:          b.acceptor.Connections(),
		SubscribeRequests:    b.acceptor.SubscribeRequests(),
		SendRequests:         b.acceptor.SendRequests(),
		HandshakeFailures:    b.acceptor.HandshakeFailures(),
		DeviceBytesWritten:   b.acceptor.BytesForwarded(),
		Subscribers:          subscribers,
		UniqueSubscribers:    b.unique.Load(),
		PendingSubscriptions: b.queue.Len(),
	}
}
