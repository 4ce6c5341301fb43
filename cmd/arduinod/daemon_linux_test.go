// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/arduino-utils/arduino/lib/client"
	"github.com/arduino-utils/arduino/lib/config"
	"github.com/arduino-utils/arduino/lib/testutil"
)

// TestDaemonRelaysFIFO runs the whole daemon against a FIFO standing in
// for the serial port.
func TestDaemonRelaysFIFO(t *testing.T) {
	directory := testutil.SocketDir(t)
	fifoPath := filepath.Join(directory, "arduino.fifo")
	if err := unix.Mkfifo(fifoPath, 0o600); err != nil {
		t.Fatalf("Mkfifo: %v", err)
	}
	board, err := os.OpenFile(fifoPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("opening FIFO: %v", err)
	}
	defer board.Close()

	cfg := config.Default()
	cfg.Socket.Path = filepath.Join(directory, "arduino.sock")
	cfg.Control.SocketPath = filepath.Join(directory, "control.sock")
	cfg.Device.Path = fifoPath
	cfg.Device.ReadTimeout = config.Duration(20 * time.Millisecond)
	cfg.Device.RetryInterval = config.Duration(time.Millisecond)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- (&daemon{config: cfg, logger: slog.New(slog.DiscardHandler)}).run(ctx)
	}()

	// Sync the broker so it starts accepting.
	if _, err := board.WriteString("junk\n"); err != nil {
		t.Fatalf("writing to FIFO: %v", err)
	}

	var subscription *client.Subscription
	testutil.Eventually(t, 5*time.Second, func() bool {
		subscription, err = client.Subscribe(ctx, cfg.Socket.Path, 0b0000_0010)
		return err == nil
	}, "subscribing")
	defer subscription.Close()

	testutil.Eventually(t, 5*time.Second, func() bool {
		stats, err := client.Status(ctx, cfg.Control.SocketPath)
		return err == nil && stats.UniqueSubscribers == 1
	}, "subscriber registered")

	if _, err := board.WriteString("21.5\r48\r1013\n"); err != nil {
		t.Fatalf("writing row: %v", err)
	}
	subscription.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:realclock socket deadline
	line, err := subscription.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "48" {
		t.Fatalf("ReadLine = %q, want %q", line, "48")
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "daemon stopped"); err != nil {
		t.Fatalf("daemon run = %v, want nil after cancellation", err)
	}
	for _, path := range []string{cfg.Socket.Path, cfg.Control.SocketPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s left behind after shutdown", path)
		}
	}
}
