// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"sync"

	"github.com/arduino-utils/arduino/lib/handshake"
)

// Request is a completed subscribe handshake waiting to be committed to
// the registry.
type Request struct {
	Subscriber Subscriber
	Mask       handshake.Mask
}

// PendingQueue hands subscribe requests from handshake goroutines to the
// main loop. The main loop commits them only at row boundaries, so a
// subscriber never sees the tail of a row it joined midway.
type PendingQueue struct {
	mu       sync.Mutex
	requests []Request
	closed   bool
}

// Enqueue appends request. It returns false once the queue is closed;
// the caller then owns the subscriber and must close it.
func (q *PendingQueue) Enqueue(request Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.requests = append(q.requests, request)
	return true
}

// Drain removes and returns every queued request in arrival order.
func (q *PendingQueue) Drain() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.requests) == 0 {
		return nil
	}
	requests := q.requests
	q.requests = nil
	return requests
}

// Len returns the number of queued requests.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close rejects further requests and returns the ones still queued.
func (q *PendingQueue) Close() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	requests := q.requests
	q.requests = nil
	return requests
}
