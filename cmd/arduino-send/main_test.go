// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/arduino-utils/arduino/lib/handshake"
	"github.com/arduino-utils/arduino/lib/process"
	"github.com/arduino-utils/arduino/lib/testutil"
)

// receivingBroker accepts one connection and reports the decoded
// handshake.
func receivingBroker(t *testing.T) (string, <-chan handshake.Request) {
	t.Helper()
	socketPath := testutil.SocketPath(t, "arduino.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	requests := make(chan handshake.Request, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		request, err := handshake.ReadRequest(conn)
		if err != nil {
			return
		}
		requests <- request
	}()
	return socketPath, requests
}

func TestSendForwardsSingleArgument(t *testing.T) {
	socketPath, requests := receivingBroker(t)

	if err := run([]string{"--socket", socketPath, "-n", "LED on"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	request := testutil.RequireReceive(t, requests, 5*time.Second, "send handshake")
	if request.Kind != handshake.Send {
		t.Fatalf("kind = %v, want send", request.Kind)
	}
	if string(request.Payload) != "LED on\n" {
		t.Fatalf("payload = %q, want %q", request.Payload, "LED on\n")
	}
}

func TestSendRejectsExtraArguments(t *testing.T) {
	socketPath, requests := receivingBroker(t)

	var exitErr *process.ExitError
	if err := run([]string{"-s", socketPath, "LED", "on"}); !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("run with two arguments = %v, want exit 1", err)
	}
	select {
	case request := <-requests:
		t.Fatalf("broker received %+v for a rejected command line", request)
	default:
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	socketPath := testutil.SocketPath(t, "unused.sock")
	err := run([]string{"-s", socketPath, strings.Repeat("x", handshake.MaxPayload+1)})
	if !errors.Is(err, handshake.ErrPayloadTooLarge) {
		t.Fatalf("run with oversized payload = %v, want ErrPayloadTooLarge", err)
	}
}

func TestSendWithoutDataIsUsageError(t *testing.T) {
	var exitErr *process.ExitError
	if err := run(nil); !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("run without data = %v, want exit 1", err)
	}
}

func TestSendFailsWhenBrokerIsDown(t *testing.T) {
	socketPath := testutil.SocketPath(t, "absent.sock")
	if err := run([]string{"-s", socketPath, "x"}); err == nil {
		t.Fatal("run succeeded without a broker")
	}
}
