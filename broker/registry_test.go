// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"testing"

	"github.com/arduino-utils/arduino/lib/handshake"
)

func TestRegistryMembershipFollowsMaskBits(t *testing.T) {
	for mask := 1; mask <= 255; mask++ {
		registry := NewRegistry()
		subscriber := &recordingSubscriber{id: 1}
		registry.Subscribe(subscriber, handshake.Mask(mask))

		for field := 0; field < handshake.MaxFields; field++ {
			want := mask&(1<<field) != 0
			if got := registry.Contains(field, subscriber); got != want {
				t.Fatalf("mask %08b: Contains(field %d) = %v, want %v", mask, field, got, want)
			}
		}
		if registry.Len() != 1 {
			t.Fatalf("mask %08b: Len() = %d, want 1", mask, registry.Len())
		}
	}
}

func TestRegistrySubscribeIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	subscriber := &recordingSubscriber{id: 7}

	registry.Subscribe(subscriber, 0b0000_0011)
	registry.Subscribe(subscriber, 0b0000_0110)

	for field, want := range []int{1, 1, 1, 0, 0, 0, 0, 0} {
		if got := registry.FieldLen(field); got != want {
			t.Errorf("FieldLen(%d) = %d, want %d", field, got, want)
		}
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", registry.Len())
	}
}

func TestRegistryZeroMaskRegistersNothing(t *testing.T) {
	registry := NewRegistry()
	registry.Subscribe(&recordingSubscriber{id: 1}, 0)
	if registry.Len() != 0 {
		t.Fatalf("Len() = %d after zero mask, want 0", registry.Len())
	}
}

func TestRegistryPruneRemovesFromEveryField(t *testing.T) {
	registry := NewRegistry()
	kept := &recordingSubscriber{id: 1}
	pruned := &recordingSubscriber{id: 2}
	registry.Subscribe(kept, 0b1000_0001)
	registry.Subscribe(pruned, 0b1111_1111)

	if !registry.Prune(pruned) {
		t.Fatal("Prune() = false for a registered subscriber")
	}
	if registry.Prune(pruned) {
		t.Fatal("second Prune() = true, want false")
	}
	for field := 0; field < handshake.MaxFields; field++ {
		if registry.Contains(field, pruned) {
			t.Errorf("pruned subscriber still in field %d", field)
		}
	}
	if !registry.Contains(0, kept) || !registry.Contains(7, kept) {
		t.Error("Prune removed an unrelated subscriber")
	}
	if pruned.closeCount() != 0 {
		t.Error("Prune closed the subscriber; closing is the caller's job")
	}
}

func TestRegistrySubscribersOrderedByID(t *testing.T) {
	registry := NewRegistry()
	for _, id := range []uint64{5, 3, 9, 1} {
		registry.Subscribe(&recordingSubscriber{id: id}, 0b0000_0100)
	}
	subscribers := registry.Subscribers(2)
	if len(subscribers) != 4 {
		t.Fatalf("Subscribers(2) has %d members, want 4", len(subscribers))
	}
	for i, want := range []uint64{1, 3, 5, 9} {
		if subscribers[i].ID() != want {
			t.Errorf("Subscribers(2)[%d].ID() = %d, want %d", i, subscribers[i].ID(), want)
		}
	}
	if registry.Subscribers(8) != nil || registry.Subscribers(-1) != nil {
		t.Error("out of range fields should have no subscribers")
	}
}

func TestRegistryCloseAllClosesEachSubscriberOnce(t *testing.T) {
	registry := NewRegistry()
	subscribers := []*recordingSubscriber{{id: 1}, {id: 2}, {id: 3}}
	for _, subscriber := range subscribers {
		registry.Subscribe(subscriber, 0b1111_1111)
	}

	if err := registry.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	for _, subscriber := range subscribers {
		if subscriber.closeCount() != 1 {
			t.Errorf("subscriber %d closed %d times, want 1", subscriber.id, subscriber.closeCount())
		}
	}
	if registry.Len() != 0 || registry.FieldLen(0) != 0 {
		t.Error("registry not empty after CloseAll")
	}
}
