// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// ErrNoData is returned by Read when no input arrived within the read
// timeout. It is not a stream failure.
var ErrNoData = errors.New("device: no data available")

// ErrWriteTimeout is returned by Write when the device stopped draining
// output for longer than the write timeout.
var ErrWriteTimeout = errors.New("device: write timed out")

// Driver names accepted by Open.
const (
	DriverTermios = "termios"
	DriverSerial  = "serial"
)

// DefaultReadTimeout matches the two second VTIME the original daemon
// configured on the port.
const DefaultReadTimeout = 2 * time.Second

// DefaultWriteTimeout bounds how long one Write waits for a full
// output buffer to drain.
const DefaultWriteTimeout = 5 * time.Second

// Device is an open byte stream. Read waits at most the configured read
// timeout and returns ErrNoData when nothing arrived.
type Device interface {
	io.ReadWriteCloser
}

// Config selects and configures a driver.
type Config struct {
	// Path is the device node, e.g. /dev/arduino or /dev/ttyACM0.
	Path string

	// Driver is DriverTermios or DriverSerial. Empty means termios.
	Driver string

	// BaudRate is the line speed applied to ttys.
	BaudRate int

	// ReadTimeout bounds each Read. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration

	// WriteTimeout bounds each Write on the termios driver. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// Open opens the device described by config.
func Open(config Config) (Device, error) {
	if config.Path == "" {
		return nil, errors.New("device: path is required")
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	switch config.Driver {
	case "", DriverTermios:
		return openTermios(config)
	case DriverSerial:
		return openSerial(config)
	default:
		return nil, fmt.Errorf("device: unknown driver %q", config.Driver)
	}
}

// ListPorts returns the serial ports visible to go.bug.st/serial.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("device: listing serial ports: %w", err)
	}
	return ports, nil
}
