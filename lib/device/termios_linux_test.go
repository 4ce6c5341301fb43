// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// openFIFO creates a named pipe and opens it with the termios driver.
// The daemon opens devices O_RDWR, so writes through the device loop
// back to its own reads.
func openFIFO(t *testing.T) Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arduino")
	if err := unix.Mkfifo(path, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	opened, err := Open(Config{
		Path:         path,
		Driver:       DriverTermios,
		BaudRate:     9600,
		ReadTimeout:  20 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { opened.Close() })
	return opened
}

func TestTermiosReadReturnsNoDataOnTimeout(t *testing.T) {
	fifo := openFIFO(t)

	buffer := make([]byte, 16)
	n, err := fifo.Read(buffer)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Read on idle device: n=%d err=%v, want ErrNoData", n, err)
	}
}

func TestTermiosWriteThenRead(t *testing.T) {
	fifo := openFIFO(t)

	if _, err := fifo.Write([]byte("12\r34\r56\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var received []byte
	buffer := make([]byte, 4)
	for len(received) < 9 {
		n, err := fifo.Read(buffer)
		if errors.Is(err, ErrNoData) {
			t.Fatalf("ErrNoData after %q, data should be pending", received)
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		received = append(received, buffer[:n]...)
	}
	if !bytes.Equal(received, []byte("12\r34\r56\n")) {
		t.Errorf("received %q", received)
	}
}

func TestTermiosWriteGivesUpWhenDeviceStopsDraining(t *testing.T) {
	fifo := openFIFO(t)

	// Nothing reads the FIFO, so the pipe buffer (64 KiB on Linux)
	// fills and the remaining bytes can never be accepted.
	payload := bytes.Repeat([]byte("x"), 1<<20)
	done := make(chan error, 1)
	go func() {
		_, err := fifo.Write(payload)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrWriteTimeout) {
			t.Fatalf("Write to a full device = %v, want ErrWriteTimeout", err)
		}
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("Write to a full device did not return")
	}
}

func TestTermiosCloseIsIdempotent(t *testing.T) {
	fifo := openFIFO(t)
	if err := fifo.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := fifo.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpenMissingPath(t *testing.T) {
	_, err := Open(Config{Path: filepath.Join(t.TempDir(), "missing"), Driver: DriverTermios})
	if err == nil {
		t.Fatal("expected error opening a missing device")
	}
	if !errors.Is(err, unix.ENOENT) {
		t.Errorf("err = %v, want ENOENT", err)
	}
}
