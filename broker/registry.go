// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"cmp"
	"errors"
	"slices"

	"github.com/arduino-utils/arduino/lib/handshake"
)

// Subscriber is a connected client receiving pushes for one or more
// fields.
type Subscriber interface {
	// ID identifies the subscriber for the lifetime of the process.
	ID() uint64

	// TryWrite delivers line without blocking. Any error, including a
	// write that would block or a partial write, means the subscriber
	// is no longer served.
	TryWrite(line []byte) error

	// Close releases the connection.
	Close() error
}

// Registry maps each field index to the set of subscribers receiving
// it. It is owned by the broker's main loop and is not safe for
// concurrent use.
type Registry struct {
	fields  [handshake.MaxFields]map[uint64]Subscriber
	members map[uint64]Subscriber
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	registry := &Registry{members: make(map[uint64]Subscriber)}
	for i := range registry.fields {
		registry.fields[i] = make(map[uint64]Subscriber)
	}
	return registry
}

// Subscribe adds subscriber to the set of every field in mask.
// Subscribing the same subscriber again with an overlapping mask does
// not duplicate it.
func (r *Registry) Subscribe(subscriber Subscriber, mask handshake.Mask) {
	if mask == 0 {
		return
	}
	id := subscriber.ID()
	for _, field := range mask.Fields() {
		r.fields[field][id] = subscriber
	}
	r.members[id] = subscriber
}

// Subscribers returns the members of field's set ordered by ID. Field
// indices outside 0..7 have no members.
func (r *Registry) Subscribers(field int) []Subscriber {
	if field < 0 || field >= handshake.MaxFields {
		return nil
	}
	subscribers := make([]Subscriber, 0, len(r.fields[field]))
	for _, subscriber := range r.fields[field] {
		subscribers = append(subscribers, subscriber)
	}
	slices.SortFunc(subscribers, func(a, b Subscriber) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return subscribers
}

// Contains reports whether subscriber is in field's set.
func (r *Registry) Contains(field int, subscriber Subscriber) bool {
	if field < 0 || field >= handshake.MaxFields {
		return false
	}
	_, ok := r.fields[field][subscriber.ID()]
	return ok
}

// Prune removes subscriber from every field. It reports whether the
// subscriber was registered. The caller closes it.
func (r *Registry) Prune(subscriber Subscriber) bool {
	id := subscriber.ID()
	if _, ok := r.members[id]; !ok {
		return false
	}
	for i := range r.fields {
		delete(r.fields[i], id)
	}
	delete(r.members, id)
	return true
}

// Len returns the number of distinct subscribers.
func (r *Registry) Len() int {
	return len(r.members)
}

// FieldLen returns the size of field's set.
func (r *Registry) FieldLen(field int) int {
	if field < 0 || field >= handshake.MaxFields {
		return 0
	}
	return len(r.fields[field])
}

// CloseAll closes every subscriber once and empties the registry.
func (r *Registry) CloseAll() error {
	var errs []error
	for id, subscriber := range r.members {
		if err := subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.members, id)
	}
	for i := range r.fields {
		clear(r.fields[i])
	}
	return errors.Join(errs...)
}
