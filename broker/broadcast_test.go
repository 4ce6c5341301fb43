// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/arduino-utils/arduino/lib/handshake"
	"github.com/arduino-utils/arduino/lib/testutil"
)

func TestBroadcastDeliversOnlyToFieldSubscribers(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, nil)

	first := &recordingSubscriber{id: 1}
	third := &recordingSubscriber{id: 2}
	both := &recordingSubscriber{id: 3}
	registry.Subscribe(first, 0b001)
	registry.Subscribe(third, 0b100)
	registry.Subscribe(both, 0b101)

	for field, line := range []string{"12\n", "34\n", "56\n"} {
		broadcaster.Broadcast(Event{Field: field, Line: []byte(line), RowEnd: field == 2})
	}

	assertLines(t, "first", first.received(), "12\n")
	assertLines(t, "third", third.received(), "56\n")
	assertLines(t, "both", both.received(), "12\n", "56\n")

	if broadcaster.Deliveries() != 4 {
		t.Errorf("Deliveries() = %d, want 4", broadcaster.Deliveries())
	}
	if broadcaster.BytesDelivered() != 12 {
		t.Errorf("BytesDelivered() = %d, want 12", broadcaster.BytesDelivered())
	}
}

func TestBroadcastFailurePrunesFromAllFieldsAndCloses(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, nil)

	healthy := &recordingSubscriber{id: 1}
	broken := &recordingSubscriber{id: 2, failWith: errBrokenPipe}
	registry.Subscribe(healthy, 0b1111_1111)
	registry.Subscribe(broken, 0b1111_1111)

	delivered, dropped := broadcaster.Broadcast(Event{Field: 0, Line: []byte("a\n")})
	if delivered != 1 || dropped != 1 {
		t.Fatalf("Broadcast = (%d delivered, %d dropped), want (1, 1)", delivered, dropped)
	}
	for field := 0; field < handshake.MaxFields; field++ {
		if registry.Contains(field, broken) {
			t.Errorf("failed subscriber still registered for field %d", field)
		}
	}
	if broken.closeCount() != 1 {
		t.Errorf("failed subscriber closed %d times, want 1", broken.closeCount())
	}

	// The next field goes to the healthy subscriber only; nothing is
	// retried on the dropped one.
	broken.failWith = nil
	broadcaster.Broadcast(Event{Field: 1, Line: []byte("b\n")})
	assertLines(t, "healthy", healthy.received(), "a\n", "b\n")
	assertLines(t, "broken", broken.received())
	if broadcaster.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", broadcaster.Dropped())
	}
}

func TestBroadcastOutOfRangeFieldIsIgnored(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, nil)
	registry.Subscribe(&recordingSubscriber{id: 1}, 0b1111_1111)

	if delivered, dropped := broadcaster.Broadcast(Event{Field: 8, Line: []byte("x\n")}); delivered != 0 || dropped != 0 {
		t.Fatalf("Broadcast(field 8) = (%d, %d), want (0, 0)", delivered, dropped)
	}
}

func TestConnSubscriberFailsInsteadOfBlockingOnFullSocket(t *testing.T) {
	server, client := unixPair(t)
	subscriber := newConnSubscriber(1, server)
	defer subscriber.Close()

	// The client never reads, so the socket buffer fills and a push
	// must fail fast rather than block.
	line := make([]byte, 512)
	deadline := time.Now().Add(10 * time.Second) //nolint:realclock test hang prevention
	for {
		if err := subscriber.TryWrite(line); err != nil {
			break
		}
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatal("TryWrite never failed on a socket nobody reads")
		}
	}
	client.Close()
}

func TestConnSubscriberWritesWholeLine(t *testing.T) {
	server, client := unixPair(t)
	subscriber := newConnSubscriber(1, server)
	defer subscriber.Close()

	if err := subscriber.TryWrite([]byte("12\n")); err != nil {
		t.Fatalf("TryWrite: %v", err)
	}
	if got := readExactly(t, client, 3); got != "12\n" {
		t.Fatalf("client read %q, want %q", got, "12\n")
	}

	if err := subscriber.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := subscriber.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// unixPair returns the accepted and dialed ends of a unix socket
// connection.
func unixPair(t *testing.T) (server, client net.Conn) {
	t.Helper()
	running := startListener(t)
	client = dial(t, running.path, nil)
	server = testutil.RequireReceive(t, running.accepted, 5*time.Second, "accepting test connection")
	t.Cleanup(func() { server.Close() })
	return server, client
}

type testListener struct {
	path     string
	accepted chan net.Conn
}

func startListener(t *testing.T) *testListener {
	t.Helper()
	path := filepath.Join(testutil.SocketDir(t), "pair.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	running := &testListener{path: path, accepted: make(chan net.Conn, 1)}
	go func() {
		connection, err := listener.Accept()
		if err == nil {
			running.accepted <- connection
		}
	}()
	return running
}

func assertLines(t *testing.T, name string, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s received %q, want %q", name, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s line %d = %q, want %q", name, i, got[i], want[i])
		}
	}
}
