// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"

	"go.bug.st/serial"
)

type serialDevice struct {
	port serial.Port
}

func openSerial(config Config) (Device, error) {
	port, err := serial.Open(config.Path, &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("device: opening %s: %w", config.Path, err)
	}
	if err := port.SetReadTimeout(config.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("device: setting read timeout on %s: %w", config.Path, err)
	}
	return &serialDevice{port: port}, nil
}

// Read returns ErrNoData when the port's read timeout expires, which
// go.bug.st/serial reports as a zero-length read with no error.
func (d *serialDevice) Read(p []byte) (int, error) {
	n, err := d.port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, ErrNoData
	}
	return n, nil
}

func (d *serialDevice) Write(p []byte) (int, error) {
	return d.port.Write(p)
}

func (d *serialDevice) Close() error {
	return d.port.Close()
}
