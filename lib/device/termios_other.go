// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package device

import "errors"

func openTermios(Config) (Device, error) {
	return nil, errors.New("device: the termios driver is only available on linux; use the serial driver")
}
